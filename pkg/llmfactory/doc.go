// Package llmfactory creates the chat model from the provider list of the configuration.
// Models are resolved per assistant, falling back to the provider default model.
package llmfactory

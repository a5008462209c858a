package llms

import (
	"context"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderOpenAI is the OpenAI API.
	ProviderOpenAI ProviderType = "OPENAI"
	// ProviderAzure is the Azure OpenAI API.
	ProviderAzure ProviderType = "AZURE"
	// ProviderPerplexity is the OpenAI compatible Perplexity API.
	ProviderPerplexity ProviderType = "PERPLEXITY"
)

// Model is an interface chat models implement.
type Model interface {
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GetName returns the default model name.
	GetName() string
	// GenerateContent asks the model to generate content from a sequence of
	// messages.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic text or chat generation
	CapabilityText Capability = 1 << iota
	// CapabilityFunctionCalling is function/tool calling
	CapabilityFunctionCalling
	// CapabilityParallelToolCallsControl allows to disable parallel tool calls
	CapabilityParallelToolCallsControl
	// CapabilityDeveloperRole supports the developer role for instructions
	CapabilityDeveloperRole
	// CapabilityResponsesAPI supports the stateless Responses API
	CapabilityResponsesAPI
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityParallelToolCallsControl |
		CapabilityDeveloperRole |
		CapabilityResponsesAPI,

	ProviderAzure: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityParallelToolCallsControl,

	ProviderPerplexity: CapabilityText,
}

// ProviderCapabilities returns the capabilities of the provider
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider supports the capability
func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}

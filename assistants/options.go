package assistants

// Option configures the Assistant
type Option func(*Config)

// Config of the Assistant
type Config struct {
	// Name is used in logs and metrics
	Name string
	// Instructions are sent as the developer message before the query.
	// When empty, the query itself is sent as the developer message.
	Instructions string
	// Model overrides the default model of the LLM
	Model string
	// Temperature for sampling, zero keeps the provider default
	Temperature float64
	// CallbackHandler receives the run events
	CallbackHandler Callback
}

// NewConfig returns the config with the options applied
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Name: DefaultName,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName sets the name of the Assistant
func WithName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Name = name
		}
	}
}

// WithInstructions sets the developer instructions
func WithInstructions(instructions string) Option {
	return func(c *Config) {
		c.Instructions = instructions
	}
}

// WithModel sets the model name
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temperature float64) Option {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithCallback sets the callback handler
func WithCallback(callback Callback) Option {
	return func(c *Config) {
		c.CallbackHandler = callback
	}
}

package config

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains the HTTP control surface settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ExecutorConfig contains the task executor settings.
type ExecutorConfig struct {
	// MaxConcurrency bounds how many tasks may run simultaneously.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"required,gt=0"`

	// EventBuffer is the per-subscriber channel buffer on the event bus.
	EventBuffer int `mapstructure:"event_buffer" validate:"gte=0"`
}

// AuthConfig contains the settings for the optional bearer-token guard on
// the HTTP surface. An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// LLMConfig contains the settings for the Gemini-backed generation handler.
// An empty API key disables the handler.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

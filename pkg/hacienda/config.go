package hacienda

import "time"

// Config represents the configuration for the Hacienda reception API client
type Config struct {
	// TestBaseURL is the host for the certification (test) environment
	TestBaseURL string

	// ProductionBaseURL is the host for the production environment
	ProductionBaseURL string

	// AuthTimeout bounds the /seguridad/auth call
	AuthTimeout time.Duration

	// SubmitTimeout bounds document, batch, void and contingency submissions
	SubmitTimeout time.Duration

	// QueryTimeout bounds status queries
	QueryTimeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TestBaseURL == "" {
		return ErrInvalidConfig
	}
	if c.ProductionBaseURL == "" {
		return ErrInvalidConfig
	}
	if c.TestBaseURL == c.ProductionBaseURL {
		// Cross-wiring test and production is the one mistake this client
		// must make impossible.
		return ErrInvalidConfig
	}
	return nil
}

// BaseURL returns the host for the given environment.
func (c *Config) BaseURL(env Environment) string {
	if env == EnvironmentProduction {
		return c.ProductionBaseURL
	}
	return c.TestBaseURL
}

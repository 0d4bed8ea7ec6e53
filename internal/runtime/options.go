package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/portfolio-pulse/internal/config"
	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
)

// Option is a functional option for configuring a Portfolio.
type Option func(*Portfolio) error

// WithFileConfig loads configuration from path, the environment, and .env.
func WithFileConfig(path string) Option {
	return func(p *Portfolio) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		p.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(p *Portfolio) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		p.cfg = cfg
		return nil
	}
}

// WithStateStore overrides the store opened from the state config.
func WithStateStore(s localstate.Store) Option {
	return func(p *Portfolio) error {
		p.state = s
		return nil
	}
}

// WithMemoryState keeps local state in memory for the life of the process.
func WithMemoryState() Option {
	return WithStateStore(localstate.NewMemory())
}

// WithHTTPClient sets the client for request/response calls. Streams use
// their own client without an overall timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Portfolio) error {
		p.httpClient = c
		return nil
	}
}

// WithStreamHTTPClient sets the client for the chat and log streams.
func WithStreamHTTPClient(c *http.Client) Option {
	return func(p *Portfolio) error {
		p.streamClient = c
		return nil
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Portfolio) error {
		p.logger = logger
		return nil
	}
}

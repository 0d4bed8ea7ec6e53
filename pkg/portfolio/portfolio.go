// Package portfolio provides the public API for embedding the portfolio
// clients. This is the stable API for external consumers.
package portfolio

import (
	"github.com/tjfontaine/portfolio-pulse/internal/runtime"
)

// Portfolio bundles the tracker, chat, processing log, and admin clients.
// See internal/runtime.Portfolio for full documentation.
type Portfolio = runtime.Portfolio

// Option is a functional option for configuring a Portfolio.
type Option = runtime.Option

// New creates a new Portfolio with the given options.
// Example:
//
//	p, err := portfolio.New(
//	    portfolio.WithFileConfig("portfolio.yaml"),
//	    portfolio.WithMemoryState(),
//	)
var New = runtime.New

var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Local state
	WithStateStore  = runtime.WithStateStore
	WithMemoryState = runtime.WithMemoryState

	// Transport
	WithHTTPClient       = runtime.WithHTTPClient
	WithStreamHTTPClient = runtime.WithStreamHTTPClient

	WithLogger = runtime.WithLogger
)

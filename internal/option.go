package internal

import (
	"io"

	"github.com/starford/glimpse/internal/generate"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	version   string
	output    io.Writer
	logOutput io.Writer
	generator generate.Generator
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithOutput sets where query results are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}

// WithLogOutput sets the destination of structured logs.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithGenerator replaces the HTTP generator built from the config.
func WithGenerator(g generate.Generator) Option {
	return func(a *application) {
		a.generator = g
	}
}

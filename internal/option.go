package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config        *Config
	consoleOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConsoleOutput sets where pass-through console output is written.
func WithConsoleOutput(w io.Writer) Option {
	return func(a *application) {
		a.consoleOutput = w
	}
}

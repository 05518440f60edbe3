package app

import "go.trai.ch/haul/internal/core/ports"

// Components holds the initialized application components.
type Components struct {
	App    *App
	Logger ports.Logger
	// Tracer is flushed by the caller once the command returns.
	Tracer ports.Tracer
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(app *App, logger ports.Logger, tracer ports.Tracer) *Components {
	return &Components{
		App:    app,
		Logger: logger,
		Tracer: tracer,
	}
}

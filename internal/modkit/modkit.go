// Package modkit provides module wiring and core deps
package modkit

// Module is the common surface of a pipeline stage module
type Module interface {
	// Name returns the module name used in logs
	Name() string

	// Ports returns the module specific port set
	Ports() any

	// Close releases files and connections the module opened
	Close() error
}

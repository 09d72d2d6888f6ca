// Package asset defines the canonical Asset and Dependency records of the
// build graph, assigns deterministic identities, and tracks per-asset cached
// artifacts keyed by content.
package asset

import (
	"github.com/motiz88/parcel/internal/fingerprint"
)

// EnvironmentContext identifies where a bundle's code will execute
type EnvironmentContext string

const (
	ContextBrowser   EnvironmentContext = "browser"
	ContextWebWorker EnvironmentContext = "web-worker"
	ContextNode      EnvironmentContext = "node"
)

// Environment describes the execution conditions assets are built for.
// Assets and bundles with different environments never share output.
type Environment struct {
	Context          EnvironmentContext `json:"context"`
	OutputFormat     string             `json:"output_format"` // "esmodule", "commonjs", "global"
	ShouldBeIsolated bool               `json:"should_be_isolated,omitempty"`
	IsLibrary        bool               `json:"is_library,omitempty"`
	SourceType       string             `json:"source_type,omitempty"` // "module" or "script"
}

// DefaultEnvironment returns the browser ES module environment
func DefaultEnvironment() Environment {
	return Environment{
		Context:      ContextBrowser,
		OutputFormat: "esmodule",
		SourceType:   "module",
	}
}

// ID returns a deterministic identity for the environment
func (e Environment) ID() string {
	isolated := "0"
	if e.ShouldBeIsolated {
		isolated = "1"
	}
	library := "0"
	if e.IsLibrary {
		library = "1"
	}
	return fingerprint.Fingerprint(string(e.Context), e.OutputFormat, isolated, library, e.SourceType)
}

// IsCompatibleWith reports whether assets built for e can be placed in a
// bundle built for other. Worker-context assets cannot sit in a main-thread
// bundle unless explicitly isolated.
func (e Environment) IsCompatibleWith(other Environment) bool {
	if e.Context == other.Context {
		return true
	}
	return e.ShouldBeIsolated || other.ShouldBeIsolated
}

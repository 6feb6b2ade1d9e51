package module

import "keystat/internal/services/keystat/domain"

// Ports exposed by the keystat module
type Ports struct {
	Status domain.StatusPort
	Runner domain.RunnerPort
}

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

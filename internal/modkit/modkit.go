package modkit

import "keystat/internal/modkit/module"

// Module is the common surface for modules; see module.Module
type Module = module.Module

// Builder constructs a Module from shared deps
// modules typically expose New(deps Deps, overrides ...func(*Options)) (Module, error)
type Builder func(Deps) (Module, error)

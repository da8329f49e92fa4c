package intercept

// defaultRegistry backs the package-level convenience functions.
var defaultRegistry = New()

// Default returns the package-level registry used by the free
// functions. Callers that need isolation or a logger should create
// their own with New.
func Default() *Registry {
	return defaultRegistry
}

// RegisterAfterGet registers a read-transform hook on the default
// registry.
func RegisterAfterGet(target any, field string, fn TransformFunc) error {
	return defaultRegistry.RegisterAfterGet(target, field, fn)
}

// RegisterBeforeSet registers a write-transform hook on the default
// registry.
func RegisterBeforeSet(target any, field string, fn TransformFunc) error {
	return defaultRegistry.RegisterBeforeSet(target, field, fn)
}

// RegisterAfterSet registers a write-observer hook on the default
// registry.
func RegisterAfterSet(target any, field string, fn ObserverFunc) error {
	return defaultRegistry.RegisterAfterSet(target, field, fn)
}

// Get reads a field through the default registry.
func Get(target any, field string) (any, error) {
	return defaultRegistry.Get(target, field)
}

// Set writes a field through the default registry.
func Set(target any, field string, value any) (any, error) {
	return defaultRegistry.Set(target, field, value)
}

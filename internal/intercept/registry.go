package intercept

import (
	"sync"

	"go.uber.org/zap"
)

// fieldKey identifies one intercepted field.
type fieldKey struct {
	target any
	field  string
}

// Registry is the accessor state manager. It owns one fieldState record
// per (target, field) pair and runs the hook chains for reads and
// writes routed through it.
//
// Registration is safe for concurrent use. Get and Set on a given field
// must be serialized by the caller.
type Registry struct {
	mu     sync.Mutex
	fields map[fieldKey]*fieldState
	log    *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for debug traces of installs,
// commits, and vetoes. The default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		fields: make(map[fieldKey]*fieldState),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ensure returns the state record for (tok, field), creating it on
// first use. The field's prior accessor is captured exactly once, at
// record creation. Caller holds r.mu.
func (r *Registry) ensure(tok any, target any, field string) *fieldState {
	k := fieldKey{target: tok, field: field}
	if st, ok := r.fields[k]; ok {
		return st
	}
	st := &fieldState{
		prior: func() (any, bool) { return rawRead(target, field) },
	}
	r.fields[k] = st
	return st
}

// liveValue returns the field's current value without consuming the
// prior reader: the cached value once seeded, otherwise a raw peek.
// Caller holds r.mu.
func (r *Registry) liveValue(tok any, target any, field string) any {
	if st, ok := r.fields[fieldKey{target: tok, field: field}]; ok && st.seeded {
		return st.cached
	}
	v, _ := rawRead(target, field)
	return v
}

// RegisterAfterGet appends a read-transform hook to the field's
// after-get chain. Hooks run in registration order on every read, each
// feeding the next. The write path remains functional: a field with
// only read hooks still accepts pass-through writes.
func (r *Registry) RegisterAfterGet(target any, field string, fn TransformFunc) error {
	if fn == nil {
		return &FieldError{Op: "install", Field: field, Err: ErrNilHook}
	}
	tok, err := identityToken(target)
	if err != nil {
		return &FieldError{Op: "install", Field: field, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.ensure(tok, target, field)
	st.afterGet = append(st.afterGet, fn)
	r.log.Debug("after-get hook installed",
		zap.String("field", field),
		zap.Int("chain_len", len(st.afterGet)))
	return nil
}

// RegisterBeforeSet inserts a write-transform hook at the front of the
// field's before-set chain, so the newest registration runs first. The
// hook may veto the write by returning an error (see Veto).
//
// Fails with ErrNotApplicable, mutating nothing, when the field's
// current value is a function.
func (r *Registry) RegisterBeforeSet(target any, field string, fn TransformFunc) error {
	if fn == nil {
		return &FieldError{Op: "install", Field: field, Err: ErrNilHook}
	}
	tok, err := identityToken(target)
	if err != nil {
		return &FieldError{Op: "install", Field: field, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if isCallable(r.liveValue(tok, target, field)) {
		return &FieldError{Op: "install", Field: field, Err: ErrNotApplicable}
	}

	st := r.ensure(tok, target, field)
	st.beforeSet = append([]TransformFunc{fn}, st.beforeSet...)
	r.log.Debug("before-set hook installed",
		zap.String("field", field),
		zap.Int("chain_len", len(st.beforeSet)))
	return nil
}

// RegisterAfterSet appends a write-observer hook to the field's
// after-set chain. Observers run in registration order after a commit,
// and only when the committed value is not identical to the previous
// one.
//
// Fails with ErrNotApplicable, mutating nothing, when the field's
// current value is a function.
func (r *Registry) RegisterAfterSet(target any, field string, fn ObserverFunc) error {
	if fn == nil {
		return &FieldError{Op: "install", Field: field, Err: ErrNilHook}
	}
	tok, err := identityToken(target)
	if err != nil {
		return &FieldError{Op: "install", Field: field, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if isCallable(r.liveValue(tok, target, field)) {
		return &FieldError{Op: "install", Field: field, Err: ErrNotApplicable}
	}

	st := r.ensure(tok, target, field)
	st.afterSet = append(st.afterSet, fn)
	r.log.Debug("after-set hook installed",
		zap.String("field", field),
		zap.Int("chain_len", len(st.afterSet)))
	return nil
}

// Get reads a field through its after-get chain.
//
// The first read of an intercepted field seeds the cached value from
// the field's prior accessor. The seed then flows through every
// after-get hook in registration order; the final value is stored as
// the new cached value and returned. Subsequent reads start from the
// stored value, so the chain composes on its own output.
//
// Fields with no interception state pass through to the raw target
// accessor; a missing field reports ErrNoSuchField.
func (r *Registry) Get(target any, field string) (any, error) {
	tok, err := identityToken(target)
	if err != nil {
		return nil, &FieldError{Op: "get", Field: field, Err: err}
	}

	r.mu.Lock()
	st, ok := r.fields[fieldKey{target: tok, field: field}]
	if !ok {
		r.mu.Unlock()
		v, ok := rawRead(target, field)
		if !ok {
			return nil, &FieldError{Op: "get", Field: field, Err: ErrNoSuchField}
		}
		return v, nil
	}
	st.seed()
	value := st.cached
	chain := make([]TransformFunc, len(st.afterGet))
	copy(chain, st.afterGet)
	r.mu.Unlock()

	for _, h := range chain {
		v, err := h(target, field, value)
		if err != nil {
			return nil, &FieldError{Op: "get", Field: field, Err: err}
		}
		value = v
	}

	r.mu.Lock()
	st.cached = value
	r.mu.Unlock()
	return value, nil
}

// Set writes a field through its before-set chain and commits the
// result.
//
// The incoming value flows through every before-set hook front-to-back
// (newest registration first). A hook error aborts the remaining chain
// and the commit, leaving the cached value unchanged. The transformed
// value is then written through to the target and stored as the new
// cached value. After-set observers run only when the committed value
// is not identical to the pre-write value; their return values are
// discarded. Returns the committed value.
//
// Fields with no interception state pass through to the raw target
// accessor.
func (r *Registry) Set(target any, field string, value any) (any, error) {
	tok, err := identityToken(target)
	if err != nil {
		return nil, &FieldError{Op: "set", Field: field, Err: err}
	}

	r.mu.Lock()
	st, ok := r.fields[fieldKey{target: tok, field: field}]
	if !ok {
		r.mu.Unlock()
		if err := rawWrite(target, field, value); err != nil {
			return nil, &FieldError{Op: "set", Field: field, Err: err}
		}
		return value, nil
	}
	st.seed()
	original := st.cached
	before := make([]TransformFunc, len(st.beforeSet))
	copy(before, st.beforeSet)
	after := make([]ObserverFunc, len(st.afterSet))
	copy(after, st.afterSet)
	r.mu.Unlock()

	for _, h := range before {
		v, err := h(target, field, value)
		if err != nil {
			r.log.Debug("write aborted",
				zap.String("field", field),
				zap.Error(err))
			return nil, &FieldError{Op: "set", Field: field, Err: err}
		}
		value = v
	}

	if err := rawWrite(target, field, value); err != nil {
		return nil, &FieldError{Op: "set", Field: field, Err: err}
	}

	r.mu.Lock()
	st.cached = value
	r.mu.Unlock()

	// Notify only on change. A before-set chain that maps a distinct
	// input back to the current value suppresses notification; this is
	// a documented limitation of identity-based change detection.
	if !identical(value, original) {
		r.log.Debug("field committed", zap.String("field", field))
		for _, h := range after {
			h(target, field, value)
		}
	}
	return value, nil
}

// FieldCount returns the number of fields with interception state.
func (r *Registry) FieldCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fields)
}

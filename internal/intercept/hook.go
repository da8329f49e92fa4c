package intercept

// TransformFunc is a hook that may transform a value flowing through a
// read or write. It receives the target, the field name, and the value
// produced by the previous hook in the chain (or the raw value for the
// first hook). The returned value feeds the next hook. A non-nil error
// aborts the chain and propagates to the caller of the triggering
// access; on the write path it also aborts the commit.
//
// Hooks must not register or trigger hooks on the same field from
// within their own invocation; chains are never self-modifying.
type TransformFunc func(target any, field string, value any) (any, error)

// ObserverFunc is a hook that observes a committed write. It receives
// the target, the field name, and the committed value. Return values do
// not exist; observers cannot alter the commit.
type ObserverFunc func(target any, field string, value any)

// fieldState is the per-(target, field) accessor record. One exists per
// intercepted field; repeated installs mutate the same record.
type fieldState struct {
	// cached is the last value computed by a read or committed by a
	// write.
	cached any

	// seeded reports whether cached has been initialized from the
	// field's prior value.
	seeded bool

	// prior reads the field's pre-interception value. Captured once at
	// install time, consulted at most once, then cleared.
	prior func() (any, bool)

	// afterGet runs in registration order on every read.
	afterGet []TransformFunc

	// beforeSet runs front-to-back on every write; new hooks are
	// inserted at the front, so the newest registration runs first.
	beforeSet []TransformFunc

	// afterSet runs in registration order after a changing commit.
	afterSet []ObserverFunc
}

// seed initializes cached from the prior reader. Idempotent; the prior
// reader is never consulted again after the first seed.
func (st *fieldState) seed() {
	if st.seeded {
		return
	}
	if st.prior != nil {
		if v, ok := st.prior(); ok {
			st.cached = v
		}
		st.prior = nil
	}
	st.seeded = true
}

// Package intercept provides ordered read/write hook chains for named
// fields on arbitrary targets.
//
// Hooks allow observation and transformation of field access for
// validation, security guards, and reactive glue, without changing the
// target's public shape. All hooks run synchronously, inline with the
// read or write that triggered them.
//
// # Hook Points
//
// Three hook points exist per field:
//
//   - after-get: runs after a read resolves; may transform the returned
//     value. Hooks run in registration order (FIFO), each feeding the
//     next.
//   - before-set: runs before a write commits; may transform or veto the
//     incoming value. The newest-registered hook runs first (LIFO).
//   - after-set: runs after a write commits, in registration order
//     (FIFO); return values are ignored. Only invoked when the committed
//     value is not identical to the previous one.
//
// # Registry
//
// The Registry owns one state record per (target, field) pair: the
// cached value, the three chains, and the field's prior value, captured
// once at install time and consulted at most once. Records are created
// lazily on first install and never torn down; there is no removal API.
//
//	reg := intercept.New()
//	obj := map[string]any{"x": 1}
//
//	reg.RegisterAfterGet(obj, "x", func(t any, f string, v any) (any, error) {
//	    return v.(int) + 1, nil
//	})
//
//	v, _ := reg.Get(obj, "x") // 2
//	v, _ = reg.Get(obj, "x")  // 3: the chain composes on the stored value
//
// A package-level default registry is available for callers that do not
// manage their own; see Default.
//
// # Targets
//
// A target may be a map[string]any, a pointer to a struct with exported
// fields, or any value implementing FieldReader/FieldWriter. Targets are
// identified by reference (maps, pointers) or by value for other
// comparable types. Committed writes are pushed through to the target so
// its public shape stays consistent with the engine's view.
//
// # Errors
//
// Installing a write-side hook on a field whose current value is a
// function fails with ErrNotApplicable and performs no mutation; check
// with errors.Is. A before-set hook rejects a write by returning an
// error (the Veto helper wraps ErrVetoed); the commit never happens and
// the error propagates out of Set. Any other hook error propagates the
// same way. No operation retries.
//
// # Concurrency
//
// Registration is safe for concurrent use. Reads and writes of a given
// field are not: the engine gives no mutual-exclusion or reentrancy
// guarantee for accesses, and callers that share a field across
// goroutines must serialize them.
package intercept

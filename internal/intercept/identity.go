package intercept

import "reflect"

// identical reports whether two values are the same under strict
// identity, the semantics used for change detection on the write path.
//
//   - Comparable values compare with ==. NaN is never identical to
//     itself, so rewriting NaN always counts as a change.
//   - Maps, channels, functions, pointers, and unsafe pointers compare
//     by reference.
//   - Slices compare by backing pointer and length.
//   - Any other uncomparable value counts as changed.
//
// This mirrors reference-equality change detection: two structurally
// equal but distinct composites are not identical, so an after-set
// observer still fires when a before-set hook rebuilds a value.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Pointer, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	case reflect.Slice:
		return av.Pointer() == bv.Pointer() && av.Len() == bv.Len()
	}
	if !av.Comparable() {
		return false
	}
	return a == b
}

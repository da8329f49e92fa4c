package intercept

import "reflect"

// FieldReader is implemented by targets that mediate raw field reads
// themselves. The boolean result reports whether the field exists.
//
// When a field of a FieldReader target is first intercepted, ReadField
// acts as the field's prior accessor: it is consulted at most once, to
// seed the cached value, and never re-invoked afterward.
type FieldReader interface {
	ReadField(field string) (any, bool)
}

// FieldWriter is implemented by targets that mediate raw field writes
// themselves. Committed values are pushed through WriteField so the
// target's visible state tracks the engine's.
type FieldWriter interface {
	WriteField(field string, value any) error
}

// refToken gives reference identity to targets that are not comparable
// by value (maps, channels, functions).
type refToken struct {
	ptr uintptr
}

// identityToken derives a comparable identity for a target. Pointers
// and other comparable values key by value; maps, channels, and
// functions key by reference. Uncomparable by-value targets (slices,
// structs containing maps) have no stable identity and are rejected.
func identityToken(target any) (any, error) {
	if target == nil {
		return nil, ErrUnsupportedTarget
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func:
		return refToken{ptr: rv.Pointer()}, nil
	}
	if !rv.Comparable() {
		return nil, ErrUnsupportedTarget
	}
	return target, nil
}

// rawRead reads a field directly from the target, bypassing all chains.
func rawRead(target any, field string) (any, bool) {
	if r, ok := target.(FieldReader); ok {
		return r.ReadField(field)
	}
	if m, ok := target.(map[string]any); ok {
		v, ok := m[field]
		return v, ok
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		fv := rv.Elem().FieldByName(field)
		if fv.IsValid() && fv.CanInterface() {
			return fv.Interface(), true
		}
	}
	return nil, false
}

// rawWrite stores a committed value directly into the target. Targets
// with no backing storage for the field are cache-only and succeed
// silently, except struct pointers, which report the missing or
// incompatible field.
func rawWrite(target any, field string, value any) error {
	if w, ok := target.(FieldWriter); ok {
		return w.WriteField(field, value)
	}
	if m, ok := target.(map[string]any); ok {
		m[field] = value
		return nil
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		fv := rv.Elem().FieldByName(field)
		if !fv.IsValid() || !fv.CanSet() {
			return ErrNoSuchField
		}
		if value == nil {
			switch fv.Kind() {
			case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
				fv.Set(reflect.Zero(fv.Type()))
				return nil
			}
			return ErrIncompatibleValue
		}
		vv := reflect.ValueOf(value)
		if !vv.Type().AssignableTo(fv.Type()) {
			return ErrIncompatibleValue
		}
		fv.Set(vv)
		return nil
	}
	return nil
}

// isCallable reports whether a live field value is a function.
func isCallable(v any) bool {
	return v != nil && reflect.ValueOf(v).Kind() == reflect.Func
}

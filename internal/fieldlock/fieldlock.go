// Package fieldlock guards records that entered a state in which only a
// subset of their fields may still change.
package fieldlock

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// ErrLocked is wrapped by every LockedFieldError.
var ErrLocked = errors.New("field locked")

// Field is one named value of a record snapshot.
type Field struct {
	Name  string
	Value any
}

// Snapshot is an ordered list of fields. The order decides which field is
// reported when several locked fields changed.
type Snapshot []Field

// Get returns the value stored under name.
func (s Snapshot) Get(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// LockedFieldError names the first locked field whose value changed.
type LockedFieldError struct {
	Field string
}

func (e *LockedFieldError) Error() string {
	return fmt.Sprintf("field '%s' cannot be modified in this state", e.Field)
}

func (e *LockedFieldError) Unwrap() error { return ErrLocked }

// Check compares old and new snapshots field by field. Fields present in
// allowed may differ; the first other difference is returned as a
// *LockedFieldError. Fields missing from new are treated as unchanged.
func Check(old, new Snapshot, allowed ...string) error {
	open := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		open[name] = struct{}{}
	}
	for _, f := range old {
		if _, ok := open[f.Name]; ok {
			continue
		}
		nv, ok := new.Get(f.Name)
		if !ok {
			continue
		}
		if !Equal(f.Value, nv) {
			return &LockedFieldError{Field: f.Name}
		}
	}
	return nil
}

// Equal reports whether two snapshot values are the same. Decimals compare
// by value, times by instant, and nil pointers equal the zero value of
// nothing but another nil.
func Equal(a, b any) bool {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

package exec

import (
	"fmt"

	"github.com/gekko3d/deform/rt/diag"
	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
)

// Logger is the subset of the engine logger this package writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func orNop(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}

func warnOnce(log Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if diag.Messages.First(msg) {
		orNop(log).Warnf("%s", msg)
	}
}

func errorOnce(log Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if diag.Messages.First(msg) {
		orNop(log).Errorf("%s", msg)
	}
}

// KindOf maps an attribute to the program kind it binds as: float tuples
// of size 1-2 are scalars, 3 vectors, 4+ four-vectors; int tuples are
// integers. Strings do not bind.
func KindOf(a *geo.Attribute) vex.Kind {
	switch a.StorageClass() {
	case geo.StorageFloat:
		switch {
		case a.TupleSize() < 3:
			return vex.Scalar
		case a.TupleSize() < 4:
			return vex.Vector3
		}
		return vex.Vector4
	case geo.StorageInt:
		return vex.Integer
	}
	return vex.KindInvalid
}

// GetTyped reads n elements of attribute name starting at start into a
// buffer taken from ar. A missing attribute or a kind mismatch returns
// false, is reported once per name, and allocates nothing.
func GetTyped(ar *Arena, d *geo.Detail, owner geo.Owner, name string, kind vex.Kind, start, n int, log Logger) (*vex.Value, bool) {
	a := d.FindAttribute(owner, name)
	if a == nil {
		warnOnce(log, "attribute %s %s not found", owner, name)
		return nil, false
	}
	if KindOf(a) != kind {
		warnOnce(log, "attribute %s %s is %s, requested %s", owner, name, KindOf(a), kind)
		return nil, false
	}
	if start < 0 || start+n > d.NumElements(owner) {
		warnOnce(log, "attribute %s %s: range [%d,%d) out of bounds", owner, name, start, start+n)
		return nil, false
	}

	v := &vex.Value{Name: name, Kind: kind, Role: vex.Input, Varying: true}
	w := kind.Width()
	if kind == vex.Integer {
		v.Ints = ar.Ints(n)
		for i := 0; i < n; i++ {
			v.Ints[i] = int32(a.Int(start+i, 0))
		}
		return v, true
	}
	v.Floats = ar.Floats(n * w)
	for i := 0; i < n; i++ {
		for c := 0; c < w; c++ {
			v.Floats[i*w+c] = float32(a.Float(start+i, c))
		}
	}
	return v, true
}

// SetTyped writes the first n elements of v to attribute v.Name starting
// at start, rounding to the attribute's storage precision. It fails
// softly the same way GetTyped does.
func SetTyped(d *geo.Detail, owner geo.Owner, v *vex.Value, start, n int, log Logger) bool {
	a := d.FindAttribute(owner, v.Name)
	if a == nil {
		warnOnce(log, "attribute %s %s not found", owner, v.Name)
		return false
	}
	if KindOf(a) != v.Kind {
		warnOnce(log, "attribute %s %s is %s, requested %s", owner, v.Name, KindOf(a), v.Kind)
		return false
	}
	if start < 0 || start+n > d.NumElements(owner) {
		warnOnce(log, "attribute %s %s: range [%d,%d) out of bounds", owner, v.Name, start, start+n)
		return false
	}

	if v.Kind == vex.Integer {
		for i := 0; i < n; i++ {
			a.SetInt(start+i, 0, int64(v.Int(i)))
		}
		return true
	}
	w := min(v.Kind.Width(), a.TupleSize())
	for i := 0; i < n; i++ {
		for c := 0; c < w; c++ {
			a.SetFloat(start+i, c, float64(v.Float(i, c)))
		}
	}
	return true
}

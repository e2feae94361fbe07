package vm

import (
	"fmt"

	"github.com/schollz/gridlive/internal/clock"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindBool
	KindString
	KindDuration
	KindProgram
	KindMap
	KindVec
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindDuration:
		return "Duration"
	case KindProgram:
		return "Program"
	case KindMap:
		return "Map"
	case KindVec:
		return "Vec"
	default:
		return "Unknown"
	}
}

// Value is the VM's tagged-union runtime value: VariableValue in spec
// terms. Programs are held as shared immutable handles (*Program); they
// never close over mutable references to themselves, so no cycles arise.
type Value struct {
	Kind     Kind
	Int      int64
	Float64  float64
	Bool     bool
	Str      string
	Duration clock.Span
	Program  *Program
	Map      map[string]Value
	Vec      []Value
}

func Integer(v int64) Value         { return Value{Kind: KindInteger, Int: v} }
func Float(v float64) Value         { return Value{Kind: KindFloat, Float64: v} }
func BoolValue(v bool) Value        { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value         { return Value{Kind: KindString, Str: v} }
func Duration(v clock.Span) Value   { return Value{Kind: KindDuration, Duration: v} }
func ProgramValue(p *Program) Value { return Value{Kind: KindProgram, Program: p} }
func EmptyMap() Value               { return Value{Kind: KindMap, Map: map[string]Value{}} }
func EmptyVec() Value               { return Value{Kind: KindVec, Vec: []Value{}} }

// AsFloat64 coerces an Integer or Float value to float64; any other kind
// is an error at the call site (callers check Kind first for WrongType).
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float64, true
	default:
		return 0, false
	}
}

// IsTruthy implements the truthiness rule used by conditional jumps:
// Bool is used as-is; numeric values are truthy when non-zero; every
// other kind is truthy (present).
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInteger:
		return v.Int != 0
	case KindFloat:
		return v.Float64 != 0
	default:
		return true
	}
}

// Equal implements the cross-type-safe equality used by RelJumpIfEqual /
// RelJumpIfDifferent: numeric kinds compare by value across Integer/Float,
// everything else must share a Kind.
func (v Value) Equal(other Value) bool {
	an, aok := v.AsFloat64()
	bn, bok := other.AsFloat64()
	if aok && bok {
		return an == bn
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindString:
		return v.Str == other.Str
	default:
		return false
	}
}

// Less implements ordering for RelJumpIfLessOrEqual; only numeric pairs
// are ordered; anything else is WrongType at the call site.
func (v Value) Less(other Value) (bool, bool) {
	an, aok := v.AsFloat64()
	bn, bok := other.AsFloat64()
	if !aok || !bok {
		return false, false
	}
	return an < bn, true
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float64)
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindString:
		return v.Str
	case KindDuration:
		return "duration"
	case KindProgram:
		return "program"
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.Map))
	case KindVec:
		return fmt.Sprintf("vec(%d)", len(v.Vec))
	default:
		return "?"
	}
}

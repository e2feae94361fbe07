package vm

import "math"

// arith implements Add/Sub/Mul/Div/Mod/Min/Max: integer arithmetic when
// both operands are Integer, float64 arithmetic otherwise. Division by
// zero yields 0; modulus by zero yields the dividend.
func arith(op OpCode, a, b Value) (Value, error) {
	if a.Kind == KindInteger && b.Kind == KindInteger {
		x, y := a.Int, b.Int
		switch op {
		case OpAdd:
			return Integer(x + y), nil
		case OpSub:
			return Integer(x - y), nil
		case OpMul:
			return Integer(x * y), nil
		case OpDiv:
			if y == 0 {
				return Integer(0), nil
			}
			return Integer(x / y), nil
		case OpMod:
			if y == 0 {
				return Integer(x), nil
			}
			return Integer(x % y), nil
		case OpMin:
			if x < y {
				return Integer(x), nil
			}
			return Integer(y), nil
		case OpMax:
			if x > y {
				return Integer(x), nil
			}
			return Integer(y), nil
		}
	}

	x, ok1 := a.AsFloat64()
	y, ok2 := b.AsFloat64()
	if !ok1 || !ok2 {
		return Value{}, newError(ErrWrongType, "arithmetic op requires numeric operands, got %v and %v", a.Kind, b.Kind)
	}
	switch op {
	case OpAdd:
		return Float(x + y), nil
	case OpSub:
		return Float(x - y), nil
	case OpMul:
		return Float(x * y), nil
	case OpDiv:
		if y == 0 {
			return Float(0), nil
		}
		return Float(x / y), nil
	case OpMod:
		if y == 0 {
			return Float(x), nil
		}
		return Float(math.Mod(x, y)), nil
	case OpMin:
		return Float(math.Min(x, y)), nil
	case OpMax:
		return Float(math.Max(x, y)), nil
	}
	return Value{}, newError(ErrWrongType, "unknown arithmetic opcode")
}

// quantize rounds val to the nearest multiple of step; a zero step leaves
// val unchanged (quantizing to no granularity is the identity).
func quantize(val, step Value) (Value, error) {
	v, ok1 := val.AsFloat64()
	s, ok2 := step.AsFloat64()
	if !ok1 || !ok2 {
		return Value{}, newError(ErrWrongType, "quantize requires numeric operands")
	}
	if s == 0 {
		return val, nil
	}
	q := math.Round(v/s) * s
	if val.Kind == KindInteger && step.Kind == KindInteger {
		return Integer(int64(q)), nil
	}
	return Float(q), nil
}

func clampValue(val, lo, hi Value) (Value, error) {
	v, ok1 := val.AsFloat64()
	l, ok2 := lo.AsFloat64()
	h, ok3 := hi.AsFloat64()
	if !ok1 || !ok2 || !ok3 {
		return Value{}, newError(ErrWrongType, "clamp requires numeric operands")
	}
	if v < l {
		v = l
	}
	if v > h {
		v = h
	}
	if val.Kind == KindInteger && lo.Kind == KindInteger && hi.Kind == KindInteger {
		return Integer(int64(v)), nil
	}
	return Float(v), nil
}

func scaleValue(val, inMin, inMax, outMin, outMax Value) (Value, error) {
	v, ok1 := val.AsFloat64()
	a, ok2 := inMin.AsFloat64()
	b, ok3 := inMax.AsFloat64()
	c, ok4 := outMin.AsFloat64()
	d, ok5 := outMax.AsFloat64()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return Value{}, newError(ErrWrongType, "scale requires numeric operands")
	}
	span := b - a
	var ratio float64
	if span != 0 {
		ratio = (v - a) / span
	}
	return Float(c + ratio*(d-c)), nil
}

func negValue(a Value) (Value, error) {
	switch a.Kind {
	case KindInteger:
		return Integer(-a.Int), nil
	case KindFloat:
		return Float(-a.Float64), nil
	default:
		return Value{}, newError(ErrWrongType, "neg requires a numeric operand, got %v", a.Kind)
	}
}

func bitwise(op OpCode, a, b Value) (Value, error) {
	if a.Kind == KindBool && b.Kind == KindBool {
		switch op {
		case OpBitAnd:
			return BoolValue(a.Bool && b.Bool), nil
		case OpBitOr:
			return BoolValue(a.Bool || b.Bool), nil
		case OpBitXor:
			return BoolValue(a.Bool != b.Bool), nil
		default:
			return Value{}, newError(ErrWrongType, "shift requires Integer operands")
		}
	}
	if a.Kind != KindInteger || b.Kind != KindInteger {
		return Value{}, newError(ErrWrongType, "bitwise op requires Integer or Bool operands, got %v and %v", a.Kind, b.Kind)
	}
	switch op {
	case OpBitAnd:
		return Integer(a.Int & b.Int), nil
	case OpBitOr:
		return Integer(a.Int | b.Int), nil
	case OpBitXor:
		return Integer(a.Int ^ b.Int), nil
	case OpShl:
		return Integer(a.Int << uint(b.Int&63)), nil
	case OpShr:
		return Integer(a.Int >> uint(b.Int&63)), nil
	}
	return Value{}, newError(ErrWrongType, "unknown bitwise opcode")
}

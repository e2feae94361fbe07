package vm

// execControl runs one Control instruction. It returns jumped=true when
// it already advanced top.PC itself (jumps, calls, returns), so the Run
// loop must not also increment it.
func (inv *Invocation) execControl(top *callFrame, c *Control, now int64) (bool, error) {
	switch c.Op {
	case OpPush:
		val, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, val)
		return false, nil

	case OpPop:
		val, err := inv.pop()
		if err != nil {
			return false, err
		}
		return false, inv.assign(c.Dst, val)

	case OpMov:
		val, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		return false, inv.assign(c.Dst, val)

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpMin, OpMax:
		b, err := inv.pop()
		if err != nil {
			return false, err
		}
		a, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := arith(c.Op, a, b)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpQuantize:
		step, err := inv.pop()
		if err != nil {
			return false, err
		}
		val, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := quantize(val, step)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpClamp:
		hi, err := inv.pop()
		if err != nil {
			return false, err
		}
		lo, err := inv.pop()
		if err != nil {
			return false, err
		}
		val, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := clampValue(val, lo, hi)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpScale:
		outMax, err := inv.pop()
		if err != nil {
			return false, err
		}
		outMin, err := inv.pop()
		if err != nil {
			return false, err
		}
		inMax, err := inv.pop()
		if err != nil {
			return false, err
		}
		inMin, err := inv.pop()
		if err != nil {
			return false, err
		}
		val, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := scaleValue(val, inMin, inMax, outMin, outMax)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpNeg:
		a, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := negValue(a)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpNot:
		a, err := inv.pop()
		if err != nil {
			return false, err
		}
		if a.Kind != KindBool {
			return false, newError(ErrWrongType, "not requires a Bool operand, got %v", a.Kind)
		}
		inv.Stack = append(inv.Stack, BoolValue(!a.Bool))
		return false, nil

	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		b, err := inv.pop()
		if err != nil {
			return false, err
		}
		a, err := inv.pop()
		if err != nil {
			return false, err
		}
		res, err := bitwise(c.Op, a, b)
		if err != nil {
			return false, err
		}
		inv.Stack = append(inv.Stack, res)
		return false, nil

	case OpRelJump:
		return inv.jump(top, c.N)

	case OpRelJumpIf:
		cond, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if cond.IsTruthy() {
			return inv.jump(top, c.N)
		}
		return false, nil

	case OpRelJumpIfNot:
		cond, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if !cond.IsTruthy() {
			return inv.jump(top, c.N)
		}
		return false, nil

	case OpRelJumpIfEqual:
		v, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		top2, err := inv.peek()
		if err != nil {
			return false, err
		}
		if v.Equal(top2) {
			return inv.jump(top, c.N)
		}
		return false, nil

	case OpRelJumpIfDifferent:
		v, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		top2, err := inv.peek()
		if err != nil {
			return false, err
		}
		if !v.Equal(top2) {
			return inv.jump(top, c.N)
		}
		return false, nil

	case OpRelJumpIfLessOrEqual:
		v, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		top2, err := inv.peek()
		if err != nil {
			return false, err
		}
		lt, ok := v.Less(top2)
		if !ok && !v.Equal(top2) {
			return false, newError(ErrWrongType, "lessOrEqual requires numeric operands")
		}
		if lt || v.Equal(top2) {
			return inv.jump(top, c.N)
		}
		return false, nil

	case OpCallFunction:
		val, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if val.Kind != KindProgram || val.Program == nil {
			return false, newError(ErrWrongType, "call target must be a Program, got %v", val.Kind)
		}
		if len(inv.frames) >= maxCallDepth {
			return false, newError(ErrBadJump, "call stack depth exceeded %d", maxCallDepth)
		}
		top.PC++
		inv.frames = append(inv.frames, &callFrame{Program: val.Program, Locals: map[string]Value{}})
		return true, nil

	case OpReturn:
		if len(inv.frames) > 1 {
			inv.frames = inv.frames[:len(inv.frames)-1]
		} else {
			inv.frames = inv.frames[:0]
		}
		return true, nil

	case OpGetSine, OpGetSaw, OpGetTriangle, OpGetISaw, OpGetRandStep:
		speedVal, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		speed, ok := speedVal.AsFloat64()
		if !ok {
			return false, newError(ErrWrongType, "lfo speed must be numeric")
		}
		env := inv.Ctx.Env
		if env == nil {
			return false, newError(ErrUndefinedVariable, "no environment bound")
		}
		var out float64
		switch c.Op {
		case OpGetSine:
			out = env.Sine(now, speed)
		case OpGetSaw:
			out = env.Saw(now, speed)
		case OpGetTriangle:
			out = env.Triangle(now, speed)
		case OpGetISaw:
			out = env.ISaw(now, speed)
		default:
			out = env.RandStep(now, speed)
		}
		return false, inv.assign(c.Dst, Float(out))

	case OpGetMidiCC:
		dev, ch, err := inv.resolveDeviceChannel(c.Args[0], c.Args[1])
		if err != nil {
			return false, err
		}
		ctrlVal, err := inv.resolveVar(c.Args[2])
		if err != nil {
			return false, err
		}
		ctrl, ok := ctrlVal.AsFloat64()
		if !ok {
			return false, newError(ErrWrongType, "midi cc control must be numeric")
		}
		env := inv.Ctx.Env
		if env == nil {
			return false, newError(ErrUndefinedVariable, "no environment bound")
		}
		return false, inv.assign(c.Dst, Float(env.MidiCC(dev, ch, int(ctrl))))

	case OpMapEmpty:
		return false, inv.assign(c.Dst, EmptyMap())

	case OpMapInsert:
		mapVal, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if mapVal.Kind != KindMap {
			return false, newError(ErrWrongType, "map insert target must be Map, got %v", mapVal.Kind)
		}
		keyVal, err := inv.resolveVar(c.Args[1])
		if err != nil {
			return false, err
		}
		if keyVal.Kind != KindString {
			return false, newError(ErrWrongType, "map key must be String, got %v", keyVal.Kind)
		}
		val, err := inv.resolveVar(c.Args[2])
		if err != nil {
			return false, err
		}
		newMap := make(map[string]Value, len(mapVal.Map)+1)
		for k, v := range mapVal.Map {
			newMap[k] = v
		}
		newMap[keyVal.Str] = val
		return false, inv.assign(c.Args[0], Value{Kind: KindMap, Map: newMap})

	case OpMapGet:
		mapVal, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if mapVal.Kind != KindMap {
			return false, newError(ErrWrongType, "map get target must be Map, got %v", mapVal.Kind)
		}
		keyVal, err := inv.resolveVar(c.Args[1])
		if err != nil {
			return false, err
		}
		if keyVal.Kind != KindString {
			return false, newError(ErrWrongType, "map key must be String, got %v", keyVal.Kind)
		}
		found, ok := mapVal.Map[keyVal.Str]
		if !ok {
			found = Integer(0)
		}
		return false, inv.assign(c.Dst, found)

	case OpVecPush:
		vecVal, err := inv.resolveVar(c.Args[0])
		if err != nil {
			return false, err
		}
		if vecVal.Kind != KindVec {
			return false, newError(ErrWrongType, "vec push target must be Vec, got %v", vecVal.Kind)
		}
		val, err := inv.resolveVar(c.Args[1])
		if err != nil {
			return false, err
		}
		newVec := make([]Value, len(vecVal.Vec), len(vecVal.Vec)+1)
		copy(newVec, vecVal.Vec)
		newVec = append(newVec, val)
		return false, inv.assign(c.Args[0], Value{Kind: KindVec, Vec: newVec})
	}

	return false, newError(ErrWrongType, "unhandled opcode %d", c.Op)
}

// maxCallDepth bounds CallFunction recursion; a script that blows through
// it is almost certainly non-terminating rather than legitimately deep.
const maxCallDepth = 256

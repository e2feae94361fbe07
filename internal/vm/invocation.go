package vm

// callFrame is one entry on the VM's call stack: a running Program, its
// program counter, and its own Instance-scoped local store.
type callFrame struct {
	Program *Program
	PC      int
	Locals  map[string]Value
}

// Invocation is one execution of a compiled Program: the operand stack,
// the call stack, and the events it has emitted so far. An Invocation
// that suspends on a delayed CallEffect is resumed by calling Run again
// with a later nowMicros; its pc/stack/locals are exactly what was left
// behind, so it continues exactly where it left off.
type Invocation struct {
	Ctx       *Context
	LineIndex int

	Stack  []Value
	frames []*callFrame

	Emitted        []Resolved
	Suspended      bool
	ResumeAtMicros int64
}

// NewInvocation creates an invocation of program against ctx. lineIndex is
// stamped onto every event it emits, for the Scheduler's
// (line_index, due_time) sort.
func NewInvocation(ctx *Context, program *Program, lineIndex int) *Invocation {
	return &Invocation{
		Ctx:       ctx,
		LineIndex: lineIndex,
		frames:    []*callFrame{{Program: program, Locals: map[string]Value{}}},
	}
}

// Run executes instructions starting from the current program counter
// until the invocation suspends on a non-zero delay CallEffect, runs off
// the end of its outermost program (done=true), or hits a fatal error
// (done=true, err set). nowMicros is the current due-time of this step;
// Context.NowMicros is kept equal to it so environment queries (LFO
// phase) see the right time.
func (inv *Invocation) Run(nowMicros int64) (done bool, err error) {
	inv.Suspended = false
	inv.Ctx.NowMicros = nowMicros
	for {
		if len(inv.frames) == 0 {
			return true, nil
		}
		top := inv.frames[len(inv.frames)-1]
		if top.PC < 0 || top.PC > len(top.Program.Instructions) {
			return true, newError(ErrBadJump, "program counter %d out of range (len %d)", top.PC, len(top.Program.Instructions))
		}
		if top.PC == len(top.Program.Instructions) {
			inv.frames = inv.frames[:len(inv.frames)-1]
			continue
		}

		instr := top.Program.Instructions[top.PC]
		if instr.Effect != nil {
			due, suspend, eerr := inv.execEffect(instr.Effect, nowMicros)
			if eerr != nil {
				return true, eerr
			}
			top.PC++
			if suspend {
				inv.Suspended = true
				inv.ResumeAtMicros = due
				return false, nil
			}
			continue
		}

		jumped, cerr := inv.execControl(top, instr.Control, nowMicros)
		if cerr != nil {
			return true, cerr
		}
		if !jumped {
			top.PC++
		}
	}
}

func (inv *Invocation) pop() (Value, error) {
	if len(inv.Stack) == 0 {
		return Value{}, newError(ErrStackUnderflow, "pop on empty stack")
	}
	v := inv.Stack[len(inv.Stack)-1]
	inv.Stack = inv.Stack[:len(inv.Stack)-1]
	return v, nil
}

func (inv *Invocation) peek() (Value, error) {
	if len(inv.Stack) == 0 {
		return Value{}, newError(ErrStackUnderflow, "stack-back on empty stack")
	}
	return inv.Stack[len(inv.Stack)-1], nil
}

func (inv *Invocation) jump(top *callFrame, n int) (bool, error) {
	newPC := top.PC + 1 + n
	if newPC < 0 || newPC > len(top.Program.Instructions) {
		return false, newError(ErrBadJump, "relative jump out of range: pc=%d n=%d len=%d", top.PC, n, len(top.Program.Instructions))
	}
	top.PC = newPC
	return true, nil
}

func (inv *Invocation) resolveVar(v Variable) (Value, error) {
	switch v.Kind {
	case VarConstant:
		return v.Value, nil
	case VarInstance:
		top := inv.frames[len(inv.frames)-1]
		if val, ok := top.Locals[v.Name]; ok {
			return val, nil
		}
		return Value{}, newError(ErrUndefinedVariable, "instance variable %q", v.Name)
	case VarFrame:
		if val, ok := inv.Ctx.Frame[v.Name]; ok {
			return val, nil
		}
		return Value{}, newError(ErrUndefinedVariable, "frame variable %q", v.Name)
	case VarLine:
		if val, ok := inv.Ctx.Line[v.Name]; ok {
			return val, nil
		}
		return Value{}, newError(ErrUndefinedVariable, "line variable %q", v.Name)
	case VarGlobal:
		if val, ok := inv.Ctx.Global[v.Name]; ok {
			return val, nil
		}
		return Value{}, newError(ErrUndefinedVariable, "global variable %q", v.Name)
	case VarEnvironment:
		return inv.resolveEnvironment(v)
	case VarStackBack:
		return inv.peek()
	}
	return Value{}, newError(ErrUndefinedVariable, "unknown variable kind %d", v.Kind)
}

func (inv *Invocation) assign(v Variable, val Value) error {
	switch v.Kind {
	case VarInstance:
		top := inv.frames[len(inv.frames)-1]
		top.Locals[v.Name] = val
		return nil
	case VarFrame:
		inv.Ctx.Frame[v.Name] = val
		return nil
	case VarLine:
		inv.Ctx.Line[v.Name] = val
		return nil
	case VarGlobal:
		inv.Ctx.Global[v.Name] = val
		return nil
	default:
		return newError(ErrWrongType, "cannot assign to a %v variable", v.Kind)
	}
}

func (inv *Invocation) resolveEnvironment(v Variable) (Value, error) {
	env := inv.Ctx.Env
	if env == nil {
		return Value{}, newError(ErrUndefinedVariable, "no environment bound for %q", v.Name)
	}
	switch v.Name {
	case "sine", "saw", "triangle", "isaw", "randstep":
		if len(v.EnvArgs) < 1 {
			return Value{}, newError(ErrUndefinedVariable, "%s requires a speed argument", v.Name)
		}
		speedVal, err := inv.resolveVar(v.EnvArgs[0])
		if err != nil {
			return Value{}, err
		}
		speed, ok := speedVal.AsFloat64()
		if !ok {
			return Value{}, newError(ErrWrongType, "%s speed must be numeric", v.Name)
		}
		now := inv.Ctx.NowMicros
		switch v.Name {
		case "sine":
			return Float(env.Sine(now, speed)), nil
		case "saw":
			return Float(env.Saw(now, speed)), nil
		case "triangle":
			return Float(env.Triangle(now, speed)), nil
		case "isaw":
			return Float(env.ISaw(now, speed)), nil
		default:
			return Float(env.RandStep(now, speed)), nil
		}
	case "midicc":
		if len(v.EnvArgs) < 3 {
			return Value{}, newError(ErrUndefinedVariable, "midicc requires device, channel, control")
		}
		dev, ch, err := inv.resolveDeviceChannel(v.EnvArgs[0], v.EnvArgs[1])
		if err != nil {
			return Value{}, err
		}
		ctrlVal, err := inv.resolveVar(v.EnvArgs[2])
		if err != nil {
			return Value{}, err
		}
		ctrl, ok := ctrlVal.AsFloat64()
		if !ok {
			return Value{}, newError(ErrWrongType, "midicc control must be numeric")
		}
		return Float(env.MidiCC(dev, ch, int(ctrl))), nil
	}
	return Value{}, newError(ErrUndefinedVariable, "unknown environment function %q", v.Name)
}

// resolveDeviceChannel resolves device/channel Variables, substituting
// the invocation's context device/channel when the resolved value is the
// ContextDevice/ContextChannel sentinel string.
func (inv *Invocation) resolveDeviceChannel(deviceVar, channelVar Variable) (string, int, error) {
	dev := inv.Ctx.Device
	devVal, err := inv.resolveVar(deviceVar)
	if err != nil {
		return "", 0, err
	}
	if devVal.Kind == KindString && devVal.Str != ContextDevice {
		dev = devVal.Str
	}

	ch := inv.Ctx.Channel
	chVal, err := inv.resolveVar(channelVar)
	if err != nil {
		return "", 0, err
	}
	if !(chVal.Kind == KindString && chVal.Str == ContextChannel) {
		if f, ok := chVal.AsFloat64(); ok {
			ch = int(f)
		}
	}
	return dev, ch, nil
}

func (inv *Invocation) resolveInt(v Variable) (int, error) {
	val, err := inv.resolveVar(v)
	if err != nil {
		return 0, err
	}
	f, ok := val.AsFloat64()
	if !ok {
		return 0, newError(ErrWrongType, "expected numeric value, got %v", val.Kind)
	}
	return int(f), nil
}

func (inv *Invocation) resolveString(v Variable) (string, error) {
	val, err := inv.resolveVar(v)
	if err != nil {
		return "", err
	}
	if val.Kind != KindString {
		return "", newError(ErrWrongType, "expected String value, got %v", val.Kind)
	}
	return val.Str, nil
}

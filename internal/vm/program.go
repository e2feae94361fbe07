package vm

import "github.com/schollz/gridlive/internal/clock"

// OpCode enumerates the Control instruction set: arithmetic, stack ops,
// jumps, map/vec ops, function calls, LFO queries, MIDI-CC queries.
type OpCode int

const (
	OpPush OpCode = iota
	OpPop
	OpMov

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpQuantize // pops (value, step)
	OpClamp    // pops (value, min, max)
	OpScale    // pops (value, inMin, inMax, outMin, outMax)

	OpNeg
	OpNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr

	OpRelJump
	OpRelJumpIf
	OpRelJumpIfNot
	OpRelJumpIfEqual
	OpRelJumpIfDifferent
	OpRelJumpIfLessOrEqual

	OpCallFunction
	OpReturn

	OpGetSine
	OpGetSaw
	OpGetTriangle
	OpGetISaw
	OpGetRandStep
	OpGetMidiCC

	OpMapEmpty
	OpMapInsert
	OpMapGet
	OpVecPush

	OpCallEffect
)

// Control is one Control(ControlASM) instruction. Args/Dst/N are
// opcode-specific; see the constructors below for each opcode's operand
// layout.
type Control struct {
	Op   OpCode
	Args []Variable
	Dst  Variable
	N    int
}

// Effect is an Effect(Event, delay) instruction: an event template to be
// emitted, with a delay relative to the instruction's execution time.
type Effect struct {
	Event Event
	Delay clock.Span
}

// Instruction is either a Control or an Effect. Exactly one of the two
// fields is non-nil.
type Instruction struct {
	Control *Control
	Effect  *Effect
}

func Ctrl(c Control) Instruction { return Instruction{Control: &c} }
func Eff(e Effect) Instruction   { return Instruction{Effect: &e} }

// Program is an ordered vector of Instructions, the compiled form of one
// script.
type Program struct {
	Instructions []Instruction
}

// --- Constructors, one per opcode, documenting operand layout ---

func Push(v Variable) Instruction { return Ctrl(Control{Op: OpPush, Args: []Variable{v}}) }
func Pop(dst Variable) Instruction { return Ctrl(Control{Op: OpPop, Dst: dst}) }
func Mov(src, dst Variable) Instruction {
	return Ctrl(Control{Op: OpMov, Args: []Variable{src}, Dst: dst})
}

func binary(op OpCode) Instruction { return Ctrl(Control{Op: op}) }

func Add() Instruction { return binary(OpAdd) }
func Sub() Instruction { return binary(OpSub) }
func Mul() Instruction { return binary(OpMul) }
func Div() Instruction { return binary(OpDiv) }
func Mod() Instruction { return binary(OpMod) }
func Min() Instruction { return binary(OpMin) }
func Max() Instruction { return binary(OpMax) }
func Quantize() Instruction { return binary(OpQuantize) }
func Clamp() Instruction    { return Ctrl(Control{Op: OpClamp}) }
func Scale() Instruction    { return Ctrl(Control{Op: OpScale}) }

func Neg() Instruction    { return Ctrl(Control{Op: OpNeg}) }
func Not() Instruction    { return Ctrl(Control{Op: OpNot}) }
func BitAnd() Instruction { return binary(OpBitAnd) }
func BitOr() Instruction  { return binary(OpBitOr) }
func BitXor() Instruction { return binary(OpBitXor) }
func Shl() Instruction    { return binary(OpShl) }
func Shr() Instruction    { return binary(OpShr) }

func RelJump(n int) Instruction { return Ctrl(Control{Op: OpRelJump, N: n}) }
func RelJumpIf(v Variable, n int) Instruction {
	return Ctrl(Control{Op: OpRelJumpIf, Args: []Variable{v}, N: n})
}
func RelJumpIfNot(v Variable, n int) Instruction {
	return Ctrl(Control{Op: OpRelJumpIfNot, Args: []Variable{v}, N: n})
}

// RelJumpIfEqual/Different/LessOrEqual compare v against the current
// stack top (StackBack) without popping it.
func RelJumpIfEqual(v Variable, n int) Instruction {
	return Ctrl(Control{Op: OpRelJumpIfEqual, Args: []Variable{v}, N: n})
}
func RelJumpIfDifferent(v Variable, n int) Instruction {
	return Ctrl(Control{Op: OpRelJumpIfDifferent, Args: []Variable{v}, N: n})
}
func RelJumpIfLessOrEqual(v Variable, n int) Instruction {
	return Ctrl(Control{Op: OpRelJumpIfLessOrEqual, Args: []Variable{v}, N: n})
}

func CallFunction(v Variable) Instruction { return Ctrl(Control{Op: OpCallFunction, Args: []Variable{v}}) }
func Return() Instruction                 { return Ctrl(Control{Op: OpReturn}) }

func GetSine(speed Variable, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetSine, Args: []Variable{speed}, Dst: dst})
}
func GetSaw(speed Variable, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetSaw, Args: []Variable{speed}, Dst: dst})
}
func GetTriangle(speed Variable, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetTriangle, Args: []Variable{speed}, Dst: dst})
}
func GetISaw(speed Variable, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetISaw, Args: []Variable{speed}, Dst: dst})
}
func GetRandStep(speed Variable, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetRandStep, Args: []Variable{speed}, Dst: dst})
}

// GetMidiCC(device, channel, control, dst): device/channel may carry the
// ContextDevice/ContextChannel sentinel names.
func GetMidiCC(device, channel, control, dst Variable) Instruction {
	return Ctrl(Control{Op: OpGetMidiCC, Args: []Variable{device, channel, control}, Dst: dst})
}

func MapEmpty(dst Variable) Instruction { return Ctrl(Control{Op: OpMapEmpty, Dst: dst}) }
func MapInsert(mapVar, key, val Variable) Instruction {
	return Ctrl(Control{Op: OpMapInsert, Args: []Variable{mapVar, key, val}})
}
func MapGet(mapVar, key, dst Variable) Instruction {
	return Ctrl(Control{Op: OpMapGet, Args: []Variable{mapVar, key}, Dst: dst})
}
func VecPush(vecVar, val Variable) Instruction {
	return Ctrl(Control{Op: OpVecPush, Args: []Variable{vecVar, val}})
}

func CallEffect(e Event, delay clock.Span) Instruction { return Eff(Effect{Event: e, Delay: delay}) }

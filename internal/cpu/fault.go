package cpu

import (
	"errors"
	"fmt"
)

// FaultKind classifies a fatal execution error.
type FaultKind int

const (
	InvalidInstruction FaultKind = iota + 1
	StackUnderflow
	StackOverflow
	OutOfBoundsAccess
)

var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrOutOfBounds        = errors.New("memory access out of bounds")
)

func (k FaultKind) sentinel() error {
	switch k {
	case InvalidInstruction:
		return ErrInvalidInstruction
	case StackUnderflow:
		return ErrStackUnderflow
	case StackOverflow:
		return ErrStackOverflow
	case OutOfBoundsAccess:
		return ErrOutOfBounds
	}
	return nil
}

func (k FaultKind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is returned by Step when an instruction cannot execute. PC is the
// address of the failing instruction; machine state is that of the last
// completed instruction.
type Fault struct {
	Kind   FaultKind
	PC     uint16
	Opcode uint16
	Err    error // underlying cause, e.g. *bus.AccessError
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s at PC=%#04x (opcode %04X)", f.Kind, f.PC, f.Opcode)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Is matches the sentinel of the fault kind, so errors.Is(err, ErrStackUnderflow) works.
func (f *Fault) Is(target error) bool {
	return target != nil && target == f.Kind.sentinel()
}

func (f *Fault) Unwrap() error { return f.Err }

func kindOf(err error) FaultKind {
	switch {
	case errors.Is(err, ErrInvalidInstruction):
		return InvalidInstruction
	case errors.Is(err, ErrStackUnderflow):
		return StackUnderflow
	case errors.Is(err, ErrStackOverflow):
		return StackOverflow
	}
	return OutOfBoundsAccess
}

func newFault(pc, opcode uint16, err error) *Fault {
	f := &Fault{Kind: kindOf(err), PC: pc, Opcode: opcode}
	if f.Kind.sentinel() != err {
		f.Err = err
	}
	return f
}

package drivers

import "fmt"

// Port addresses one bit of one module. Module 0 is the module nearest the controller.
type Port struct {
	Module   uint8
	Bit      uint8
	Inverted bool
}

func (p Port) String() string {
	if p.Inverted {
		return fmt.Sprintf("%d.%d (inverted)", p.Module, p.Bit)
	}
	return fmt.Sprintf("%d.%d", p.Module, p.Bit)
}

// ShiftInput reads one bit of the input chain.
type ShiftInput struct {
	chain *ShiftChain
	port  Port

	raw bool
}

// GetState reads the buffered bit and keeps it as the baseline for IsChanged.
func (si *ShiftInput) GetState() bool {
	si.raw = si.chain.GetInputBit(si.port.Module, si.port.Bit)
	return si.raw != si.port.Inverted
}

// IsChanged reports whether the buffered bit differs from the one seen by the
// last GetState call. It does not move the baseline.
func (si *ShiftInput) IsChanged() bool {
	return si.raw != si.chain.GetInputBit(si.port.Module, si.port.Bit)
}

func (si *ShiftInput) Port() Port {
	return si.port
}

// ShiftOutput drives one bit of the output chain.
type ShiftOutput struct {
	chain *ShiftChain
	port  Port
}

func (so *ShiftOutput) Set(state bool) {
	so.chain.SetBit(so.port.Module, so.port.Bit, state != so.port.Inverted)
}

// GetState returns the staged state, which may not be latched yet.
func (so *ShiftOutput) GetState() bool {
	return so.chain.GetOutputBit(so.port.Module, so.port.Bit) != so.port.Inverted
}

func (so *ShiftOutput) Port() Port {
	return so.port
}

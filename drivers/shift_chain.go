package drivers

import (
	"sync"

	"github.com/pkg/errors"
)

const bitsPerModule = 8
const maxChainModules = 255

// ChainLines are the five signals shared by the output (595) and input (165) chains.
// Lines of an empty chain may be nil.
type ChainLines struct {
	OutLatch DigitalLine
	OutData  DigitalLine
	InLatch  DigitalLine
	InData   DigitalLine
	Clock    DigitalLine
}

type ChainOption func(*ShiftChain)

// WithGuard sets the critical section taken around every buffer access and
// for the whole duration of Refresh.
func WithGuard(guard sync.Locker) ChainOption {
	return func(sc *ShiftChain) {
		sc.guard = guard
	}
}

// ShiftChain owns an output and an input daisy-chain clocked by one shared line.
// Output module 0 and input module 0 are the ones nearest the controller.
type ShiftChain struct {
	lines ChainLines
	guard sync.Locker

	outputs []byte
	inputs  []byte
	overlap int
}

func NewShiftChain(outModules, inModules int, lines ChainLines, opts ...ChainOption) (*ShiftChain, error) {
	if outModules < 0 || outModules > maxChainModules {
		return nil, errors.Errorf("output module count %d out of range (0..%d)", outModules, maxChainModules)
	}
	if inModules < 0 || inModules > maxChainModules {
		return nil, errors.Errorf("input module count %d out of range (0..%d)", inModules, maxChainModules)
	}

	if outModules > 0 {
		if lines.OutLatch == nil || lines.OutData == nil {
			return nil, errors.New("output chain needs latch and data lines")
		}
	}
	if inModules > 0 {
		if lines.InLatch == nil || lines.InData == nil {
			return nil, errors.New("input chain needs latch and data lines")
		}
	}
	if (outModules > 0 || inModules > 0) && lines.Clock == nil {
		return nil, errors.New("clock line is required")
	}

	sc := &ShiftChain{
		lines:   lines,
		guard:   &sync.Mutex{},
		outputs: make([]byte, outModules),
		inputs:  make([]byte, inModules),
		overlap: min(outModules, inModules),
	}
	for _, opt := range opts {
		opt(sc)
	}

	sc.guard.Lock()
	defer sc.guard.Unlock()
	for _, line := range []DigitalLine{lines.OutLatch, lines.OutData, lines.InLatch, lines.Clock} {
		if line != nil {
			line.Deassert()
		}
	}

	return sc, nil
}

func pulse(line DigitalLine) {
	if line == nil {
		return
	}
	line.Assert()
	line.Deassert()
}

func (sc *ShiftChain) driveData(outByte byte) {
	if outByte&0x80 != 0 {
		sc.lines.OutData.Assert()
	} else {
		sc.lines.OutData.Deassert()
	}
}

func (sc *ShiftChain) sampleData(inByte byte) byte {
	inByte <<= 1
	if sc.lines.InData.Sample() {
		inByte |= 1
	}
	return inByte
}

// Refresh latches the input pins, shifts every output byte out while shifting
// every input byte in, and latches the outputs once all output bits are in place.
// Each bit is one clock pulse, MSB first; data is driven and sampled before the pulse.
func (sc *ShiftChain) Refresh() {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	pulse(sc.lines.InLatch)

	i := 0
	for ; i < sc.overlap; i++ {
		outByte := sc.outputs[i]
		var inByte byte
		for b := 0; b < bitsPerModule; b++ {
			sc.driveData(outByte)
			outByte <<= 1
			inByte = sc.sampleData(inByte)
			pulse(sc.lines.Clock)
		}
		sc.inputs[i] = inByte
	}

	for ; i < len(sc.outputs); i++ {
		outByte := sc.outputs[i]
		for b := 0; b < bitsPerModule; b++ {
			sc.driveData(outByte)
			outByte <<= 1
			pulse(sc.lines.Clock)
		}
	}

	pulse(sc.lines.OutLatch)

	for ; i < len(sc.inputs); i++ {
		var inByte byte
		for b := 0; b < bitsPerModule; b++ {
			inByte = sc.sampleData(inByte)
			pulse(sc.lines.Clock)
		}
		sc.inputs[i] = inByte
	}
}

// outIndex maps a logical output module to its buffer position; the farthest
// module is shifted first.
func (sc *ShiftChain) outIndex(module, bit uint8) (int, bool) {
	if int(module) >= len(sc.outputs) || bit >= bitsPerModule {
		return 0, false
	}
	return len(sc.outputs) - int(module) - 1, true
}

// SetBit stages an output bit; it reaches the pins on the next Refresh.
func (sc *ShiftChain) SetBit(module, bit uint8, value bool) {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	ix, ok := sc.outIndex(module, bit)
	if !ok {
		return
	}
	if value {
		sc.outputs[ix] |= 1 << bit
	} else {
		sc.outputs[ix] &^= 1 << bit
	}
}

func (sc *ShiftChain) GetOutputBit(module, bit uint8) bool {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	ix, ok := sc.outIndex(module, bit)
	if !ok {
		return false
	}
	return sc.outputs[ix]&(1<<bit) != 0
}

// GetInputBit reads the last sample. Input modules are stored in transfer
// order, which already puts module 0 (nearest the controller) first.
func (sc *ShiftChain) GetInputBit(module, bit uint8) bool {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	if int(module) >= len(sc.inputs) || bit >= bitsPerModule {
		return false
	}
	return sc.inputs[module]&(1<<bit) != 0
}

func (sc *ShiftChain) OutModules() int {
	return len(sc.outputs)
}

func (sc *ShiftChain) InModules() int {
	return len(sc.inputs)
}

func (sc *ShiftChain) Overlap() int {
	return sc.overlap
}

// Outputs returns a copy of the output buffer in transfer order.
func (sc *ShiftChain) Outputs() []byte {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	return append([]byte(nil), sc.outputs...)
}

func (sc *ShiftChain) Inputs() []byte {
	sc.guard.Lock()
	defer sc.guard.Unlock()

	return append([]byte(nil), sc.inputs...)
}

func (sc *ShiftChain) Input(port Port) *ShiftInput {
	return &ShiftInput{chain: sc, port: port}
}

func (sc *ShiftChain) Output(port Port) *ShiftOutput {
	out := &ShiftOutput{chain: sc, port: port}
	out.Set(false)
	return out
}

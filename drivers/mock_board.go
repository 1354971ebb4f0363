package drivers

import (
	"fmt"
	"io"
	"sync"
)

type LineEventKind int

const (
	LineAsserted LineEventKind = iota
	LineDeasserted
	LineSampled
)

type LineEvent struct {
	Line string
	Kind LineEventKind
}

func (le LineEvent) String() string {
	switch le.Kind {
	case LineAsserted:
		return le.Line + "+"
	case LineDeasserted:
		return le.Line + "-"
	}
	return le.Line + "?"
}

// MockLine is an in-memory DigitalLine counting what was done to it.
type MockLine struct {
	Name string

	level     bool
	asserts   int
	deasserts int
	samples   int

	sample func() bool
	onRise func()
	record func(LineEvent)
}

func NewMockLine(name string) *MockLine {
	return &MockLine{Name: name}
}

func (ml *MockLine) set(level bool) {
	rising := level && !ml.level
	ml.level = level
	if level {
		ml.asserts++
	} else {
		ml.deasserts++
	}
	if ml.record != nil {
		kind := LineDeasserted
		if level {
			kind = LineAsserted
		}
		ml.record(LineEvent{Line: ml.Name, Kind: kind})
	}
	if rising && ml.onRise != nil {
		ml.onRise()
	}
}

func (ml *MockLine) Assert() {
	ml.set(true)
}

func (ml *MockLine) Deassert() {
	ml.set(false)
}

func (ml *MockLine) Sample() bool {
	ml.samples++
	if ml.record != nil {
		ml.record(LineEvent{Line: ml.Name, Kind: LineSampled})
	}
	if ml.sample != nil {
		return ml.sample()
	}
	return ml.level
}

// SetLevel changes what Sample returns without counting it as a drive.
func (ml *MockLine) SetLevel(level bool) {
	ml.level = level
}

func (ml *MockLine) Level() bool {
	return ml.level
}

func (ml *MockLine) Asserts() int {
	return ml.asserts
}

func (ml *MockLine) Samples() int {
	return ml.samples
}

// MockBoard simulates a 74HC595 output chain and a 74HC165 input chain wired to
// mock lines. Module 0 of both chains sits next to the controller. With Loopback
// set, each input module reads the latched pins of the output module with the same number.
type MockBoard struct {
	OutLatch *MockLine
	OutData  *MockLine
	InLatch  *MockLine
	InData   *MockLine
	Clock    *MockLine

	Loopback bool

	lock       sync.Mutex
	outShift   []byte
	outLatched []byte
	inPins     []byte
	inShift    []byte

	tracing bool
	trace   []LineEvent

	writeTo io.Writer
}

func NewMockBoard(outModules, inModules int) *MockBoard {
	mb := &MockBoard{
		OutLatch: NewMockLine("out_latch"),
		OutData:  NewMockLine("out_data"),
		InLatch:  NewMockLine("in_latch"),
		InData:   NewMockLine("in_data"),
		Clock:    NewMockLine("clock"),

		outShift:   make([]byte, outModules),
		outLatched: make([]byte, outModules),
		inPins:     make([]byte, inModules),
		inShift:    make([]byte, inModules),
	}

	for _, line := range []*MockLine{mb.OutLatch, mb.OutData, mb.InLatch, mb.InData, mb.Clock} {
		line.record = mb.record
	}
	mb.Clock.onRise = mb.shift
	mb.OutLatch.onRise = mb.latchOutputs
	mb.InLatch.onRise = mb.loadInputs
	mb.InData.sample = mb.serialOut

	return mb
}

func (mb *MockBoard) Lines() ChainLines {
	return ChainLines{
		OutLatch: mb.OutLatch,
		OutData:  mb.OutData,
		InLatch:  mb.InLatch,
		InData:   mb.InData,
		Clock:    mb.Clock,
	}
}

func (mb *MockBoard) record(ev LineEvent) {
	if mb.tracing {
		mb.trace = append(mb.trace, ev)
	}
}

// StartTrace clears and enables the event trace of all lines.
func (mb *MockBoard) StartTrace() {
	mb.trace = nil
	mb.tracing = true
}

func (mb *MockBoard) Trace() []LineEvent {
	return mb.trace
}

func (mb *MockBoard) shift() {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	carry := mb.OutData.Level()
	for m := range mb.outShift {
		next := mb.outShift[m]&0x80 != 0
		mb.outShift[m] <<= 1
		if carry {
			mb.outShift[m] |= 1
		}
		carry = next
	}

	for m := range mb.inShift {
		mb.inShift[m] <<= 1
		if m+1 < len(mb.inShift) {
			mb.inShift[m] |= mb.inShift[m+1] >> 7
		}
	}
}

func (mb *MockBoard) latchOutputs() {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	for m, b := range mb.outShift {
		if mb.writeTo != nil && mb.outLatched[m] != b {
			fmt.Fprintf(mb.writeTo, "[module %d] outputs changed %08b -> %08b\n", m, mb.outLatched[m], b)
		}
	}
	copy(mb.outLatched, mb.outShift)
}

func (mb *MockBoard) loadInputs() {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	for m := range mb.inShift {
		if mb.Loopback && m < len(mb.outLatched) {
			mb.inShift[m] = mb.outLatched[m]
		} else {
			mb.inShift[m] = mb.inPins[m]
		}
	}
}

func (mb *MockBoard) serialOut() bool {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	if len(mb.inShift) == 0 {
		return false
	}
	return mb.inShift[0]&0x80 != 0
}

// OutputPin returns the latched level of an output pin.
func (mb *MockBoard) OutputPin(module, bit uint8) bool {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	if int(module) >= len(mb.outLatched) || bit >= bitsPerModule {
		return false
	}
	return mb.outLatched[module]&(1<<bit) != 0
}

// SetInputPin drives the level seen by an input module pin.
func (mb *MockBoard) SetInputPin(module, bit uint8, level bool) {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	if int(module) >= len(mb.inPins) || bit >= bitsPerModule {
		return
	}
	if level {
		mb.inPins[module] |= 1 << bit
	} else {
		mb.inPins[module] &^= 1 << bit
	}
}

func (mb *MockBoard) InputPin(module, bit uint8) bool {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	if int(module) >= len(mb.inPins) || bit >= bitsPerModule {
		return false
	}
	return mb.inPins[module]&(1<<bit) != 0
}

func (mb *MockBoard) MonitorStateChanges(writer io.Writer) {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	mb.writeTo = writer
}

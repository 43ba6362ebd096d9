// Package m1k is the low-level backend for the Analog Devices
// ADALM1000 source-measure unit.
//
// The Session and Device interfaces mirror the subset of the vendor
// library the toolkit drives. A gousb-based driver is selected with
// the "m1khw" build tag; by default a deterministic simulator serves
// the full stack without hardware attached. The simulator terminates
// both channels into a virtual 1 kOhm load so sourced values read
// back consistently.
package m1k

import "time"

// USB identifiers of the ADALM1000.
const (
	VendorID  = 0x0456
	ProductID = 0xCEE2
)

// Mode is a channel operating mode, matching the vendor library.
type Mode int

const (
	// ModeHiZ leaves the channel floating.
	ModeHiZ Mode = iota
	// ModeSVMI sources voltage and measures current.
	ModeSVMI
	// ModeSIMV sources current and measures voltage.
	ModeSIMV
	// ModeHiZSplit is HiZ with split sense and force pins.
	ModeHiZSplit
	// ModeSVMISplit is SVMI with split sense and force pins.
	ModeSVMISplit
	// ModeSIMVSplit is SIMV with split sense and force pins.
	ModeSIMVSplit
)

// Split reports whether the mode uses split sense and force pins.
func (m Mode) Split() bool {
	return m == ModeHiZSplit || m == ModeSVMISplit || m == ModeSIMVSplit
}

// Base maps a split mode onto its unsplit equivalent.
func (m Mode) Base() Mode {
	switch m {
	case ModeHiZSplit:
		return ModeHiZ
	case ModeSVMISplit:
		return ModeSVMI
	case ModeSIMVSplit:
		return ModeSIMV
	default:
		return m
	}
}

// SourceShape selects the channel output waveform.
type SourceShape int

const (
	ShapeConstant SourceShape = iota
	ShapeSine
	ShapeSquare
	ShapeTriangle
	ShapeSawtooth
	ShapeStairstep
)

// Source describes a channel output. Value carries the constant
// level; the periodic shapes swing between Midpoint-Peak and
// Midpoint+Peak over Period samples.
type Source struct {
	Shape    SourceShape
	Value    float64
	Midpoint float64
	Peak     float64
	Period   float64 // samples per cycle
	Phase    float64 // samples
	Duty     float64 // 0..1, square only
}

// Sample is one measurement of a single channel.
type Sample struct {
	Voltage float64
	Current float64
}

// Frame is one simultaneous measurement of both channels.
type Frame struct {
	A Sample
	B Sample
}

// Device is one ADALM1000 board inside a session.
type Device interface {
	// Serial returns the board serial number.
	Serial() string
	// SetMode switches a channel operating mode. Channel 0 is A,
	// channel 1 is B.
	SetMode(channel int, mode Mode) error
	// Mode returns a channel's operating mode.
	Mode(channel int) (Mode, error)
	// SetSource programs a channel output waveform.
	SetSource(channel int, src Source) error
	// Write queues arbitrary output samples on a channel. Cyclic
	// buffers repeat until replaced; a one-shot buffer holds its last
	// value after playback.
	Write(channel int, data []float64, cyclic bool) error
	// Flush discards the channel's queued output samples.
	Flush(channel int) error
	// Read blocks until n frames arrive or the timeout passes.
	Read(n int, timeout time.Duration) ([]Frame, error)
	// GetSamples runs a short self-contained capture of n frames.
	GetSamples(n int) ([]Frame, error)
	// SetLEDs drives the board LEDs from the low three mask bits.
	SetLEDs(mask uint8) error
	// Overcurrent reports whether either channel tripped since the
	// last call.
	Overcurrent() (bool, error)
	// CtrlTransfer issues a raw USB control transfer.
	CtrlTransfer(requestType, request uint8, value, index uint16, data []byte) (int, error)
}

// Session owns the capture stream shared by all attached boards.
type Session interface {
	// Devices lists the attached boards.
	Devices() []Device
	// Configure sets the stream sample rate in Hz.
	Configure(sampleRate int) error
	// SampleRate returns the configured stream rate.
	SampleRate() int
	// Start begins streaming. samples 0 runs continuously.
	Start(samples uint64) error
	// Running reports whether the stream is active.
	Running() bool
	// Continuous reports whether the stream was started without a
	// sample limit.
	Continuous() bool
	// Cancel stops streaming without tearing the session down.
	Cancel() error
	// Cancelled reports whether the last stream was stopped by Cancel.
	Cancelled() bool
	// End cancels the stream and releases all boards.
	End() error
}

package waveforms

import "github.com/ammarkh95/go-analog/internal/dwf"

// OutputSignal is a waveform generator shape.
type OutputSignal int

const (
	SignalDC OutputSignal = iota
	SignalSine
	SignalSquare
	SignalTriangle
	SignalRampUp
	SignalRampDown
	SignalNoise
	SignalPulse
	SignalTrapezium
	SignalSinePower
	// SignalCustom plays a caller-supplied normalized buffer.
	SignalCustom
	// SignalPlay streams a caller-supplied buffer once per run.
	SignalPlay
)

var signalNames = map[OutputSignal]string{
	SignalDC:        "dc",
	SignalSine:      "sine",
	SignalSquare:    "square",
	SignalTriangle:  "triangle",
	SignalRampUp:    "ramp_up",
	SignalRampDown:  "ramp_down",
	SignalNoise:     "noise",
	SignalPulse:     "pulse",
	SignalTrapezium: "trapezium",
	SignalSinePower: "sine_power",
	SignalCustom:    "custom",
	SignalPlay:      "play",
}

func (s OutputSignal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s OutputSignal) valid() bool {
	_, ok := signalNames[s]
	return ok
}

func (s OutputSignal) toBackend() dwf.Function {
	switch s {
	case SignalDC:
		return dwf.FuncDC
	case SignalSine:
		return dwf.FuncSine
	case SignalSquare:
		return dwf.FuncSquare
	case SignalTriangle:
		return dwf.FuncTriangle
	case SignalRampUp:
		return dwf.FuncRampUp
	case SignalRampDown:
		return dwf.FuncRampDown
	case SignalNoise:
		return dwf.FuncNoise
	case SignalPulse:
		return dwf.FuncPulse
	case SignalTrapezium:
		return dwf.FuncTrapezium
	case SignalSinePower:
		return dwf.FuncSinePower
	case SignalCustom:
		return dwf.FuncCustom
	case SignalPlay:
		return dwf.FuncPlay
	default:
		return dwf.FuncDC
	}
}

// NeedsBuffer reports whether the shape requires caller-supplied
// samples.
func (s OutputSignal) NeedsBuffer() bool {
	return s == SignalCustom || s == SignalPlay
}

// ParseOutputSignal resolves a signal name from configuration or the
// command line.
func ParseOutputSignal(name string) (OutputSignal, bool) {
	for sig, n := range signalNames {
		if n == name {
			return sig, true
		}
	}
	return SignalDC, false
}

// AcquisitionMode selects how the scope fills its buffer.
type AcquisitionMode int

const (
	AcquisitionSingle AcquisitionMode = iota
	AcquisitionScanShift
	AcquisitionScanScreen
	AcquisitionRecord
)

func (m AcquisitionMode) toBackend() dwf.AcqMode {
	switch m {
	case AcquisitionScanShift:
		return dwf.AcqModeScanShift
	case AcquisitionScanScreen:
		return dwf.AcqModeScanScreen
	case AcquisitionRecord:
		return dwf.AcqModeRecord
	default:
		return dwf.AcqModeSingle
	}
}

// SampleFilter selects the per-sample decimation filter.
type SampleFilter int

const (
	FilterDecimate SampleFilter = iota
	FilterAverage
	FilterMinMax
)

func (f SampleFilter) toBackend() dwf.Filter {
	switch f {
	case FilterAverage:
		return dwf.FilterAverage
	case FilterMinMax:
		return dwf.FilterMinMax
	default:
		return dwf.FilterDecimate
	}
}

// TriggerSource selects what starts an acquisition.
type TriggerSource int

const (
	TriggerNone TriggerSource = iota
	TriggerPC
	TriggerDetectorAnalogIn
	TriggerAnalogIn
	TriggerExternal1
	TriggerExternal2
)

func (s TriggerSource) toBackend() dwf.TrigSrc {
	switch s {
	case TriggerPC:
		return dwf.TrigSrcPC
	case TriggerDetectorAnalogIn:
		return dwf.TrigSrcDetectorAnalogIn
	case TriggerAnalogIn:
		return dwf.TrigSrcAnalogIn
	case TriggerExternal1:
		return dwf.TrigSrcExternal1
	case TriggerExternal2:
		return dwf.TrigSrcExternal2
	default:
		return dwf.TrigSrcNone
	}
}

// TriggerType selects the analog trigger mode.
type TriggerType int

const (
	TriggerEdge TriggerType = iota
	TriggerPulse
	TriggerTransition
)

func (t TriggerType) toBackend() dwf.TrigType {
	switch t {
	case TriggerPulse:
		return dwf.TrigTypePulse
	case TriggerTransition:
		return dwf.TrigTypeTransition
	default:
		return dwf.TrigTypeEdge
	}
}

// TriggerSlope selects the trigger edge direction.
type TriggerSlope int

const (
	SlopeRise TriggerSlope = iota
	SlopeFall
	SlopeEither
)

func (s TriggerSlope) toBackend() dwf.Slope {
	switch s {
	case SlopeFall:
		return dwf.SlopeFall
	case SlopeEither:
		return dwf.SlopeEither
	default:
		return dwf.SlopeRise
	}
}

// OutputIdleState selects the generator output level between runs.
type OutputIdleState int

const (
	IdleDisable OutputIdleState = iota
	IdleOffset
	IdleInitial
)

func (s OutputIdleState) toBackend() dwf.Idle {
	switch s {
	case IdleOffset:
		return dwf.IdleOffset
	case IdleInitial:
		return dwf.IdleInitial
	default:
		return dwf.IdleDisable
	}
}

// AnalogInput is a scope channel.
type AnalogInput int

const (
	Input1 AnalogInput = iota
	Input2
	Input3
	Input4
)

func (in AnalogInput) valid() bool {
	return in >= Input1 && in <= Input4
}

// AnalogOutput is a waveform generator channel.
type AnalogOutput int

const (
	WaveGen1 AnalogOutput = iota
	WaveGen2
)

func (out AnalogOutput) valid() bool {
	return out == WaveGen1 || out == WaveGen2
}

// DigitalPin is one of the 16 digital IO pins.
type DigitalPin int

const (
	DigitalPinMin DigitalPin = 0
	DigitalPinMax DigitalPin = 15
)

func (p DigitalPin) valid() bool {
	return p >= DigitalPinMin && p <= DigitalPinMax
}

// Mask returns the single-pin bit mask.
func (p DigitalPin) Mask() uint16 {
	return 1 << uint(p)
}

// InstrumentState reports where an instrument is in its acquisition
// cycle.
type InstrumentState int

const (
	StateReady InstrumentState = iota
	StateArmed
	StateDone
	StateRunning
	StateConfig
	StatePrefill
	StateWait
)

func stateFromBackend(s dwf.State) InstrumentState {
	switch s {
	case dwf.StateArmed:
		return StateArmed
	case dwf.StateDone:
		return StateDone
	case dwf.StateRunning:
		return StateRunning
	case dwf.StateConfig:
		return StateConfig
	case dwf.StatePrefill:
		return StatePrefill
	case dwf.StateWait:
		return StateWait
	default:
		return StateReady
	}
}

// Package dwf is the low-level backend for Digilent WaveForms devices.
//
// The exported Device interface mirrors the subset of the vendor SDK
// the toolkit drives. Two implementations exist: a cgo binding to
// libdwf selected with the "dwf" build tag, and a deterministic
// simulator used by default so the full stack runs without hardware
// attached. The simulator loops every waveform generator channel back
// into the scope channel with the same number.
package dwf

// Function selects the generator waveform shape. Values match the
// vendor SDK FUNC constants.
type Function int

const (
	FuncDC        Function = 0
	FuncSine      Function = 1
	FuncSquare    Function = 2
	FuncTriangle  Function = 3
	FuncRampUp    Function = 4
	FuncRampDown  Function = 5
	FuncNoise     Function = 6
	FuncPulse     Function = 7
	FuncTrapezium Function = 8
	FuncSinePower Function = 9
	FuncCustom    Function = 30
	FuncPlay      Function = 31
)

// Idle selects the generator output level between runs. Values match
// the vendor SDK DwfAnalogOutIdle constants.
type Idle int

const (
	IdleDisable Idle = 0
	IdleOffset  Idle = 1
	IdleInitial Idle = 2
)

// AcqMode selects how the scope fills its buffer. Values match the
// vendor SDK ACQMODE constants.
type AcqMode int

const (
	AcqModeSingle     AcqMode = 0
	AcqModeScanShift  AcqMode = 1
	AcqModeScanScreen AcqMode = 2
	AcqModeRecord     AcqMode = 3
)

// Filter selects the per-sample decimation filter. Values match the
// vendor SDK FILTER constants.
type Filter int

const (
	FilterDecimate Filter = 0
	FilterAverage  Filter = 1
	FilterMinMax   Filter = 2
)

// TrigSrc selects the scope trigger source. Values match the vendor
// SDK TRIGSRC constants.
type TrigSrc int

const (
	TrigSrcNone             TrigSrc = 0
	TrigSrcPC               TrigSrc = 1
	TrigSrcDetectorAnalogIn TrigSrc = 2
	TrigSrcAnalogIn         TrigSrc = 4
	TrigSrcExternal1        TrigSrc = 11
	TrigSrcExternal2        TrigSrc = 12
)

// TrigType selects the analog-in trigger mode.
type TrigType int

const (
	TrigTypeEdge       TrigType = 0
	TrigTypePulse      TrigType = 1
	TrigTypeTransition TrigType = 2
)

// Slope selects the trigger edge direction.
type Slope int

const (
	SlopeRise   Slope = 0
	SlopeFall   Slope = 1
	SlopeEither Slope = 2
)

// State is an instrument state. Values match the vendor SDK
// DwfState constants.
type State int

const (
	StateReady   State = 0
	StateArmed   State = 1
	StateDone    State = 2
	StateRunning State = 3
	StateConfig  State = 4
	StatePrefill State = 5
	StateWait    State = 7
)

// DeviceInfo describes one enumerated device.
type DeviceInfo struct {
	Index        int
	Name         string
	SerialNumber string
	InUse        bool
}

// WaveGenConfig is one generator channel's configuration. Data holds
// normalized [-1, 1] samples for the custom and play functions.
type WaveGenConfig struct {
	Function  Function
	Frequency float64 // Hz
	Amplitude float64 // V
	Offset    float64 // V
	Symmetry  float64 // percent, 0..100
	Phase     float64 // degrees
	Data      []float64

	RunSeconds  float64 // 0 runs forever
	WaitSeconds float64
	Repeat      int // 0 repeats forever
	Idle        Idle
}

// ScopeConfig is the analog-in configuration shared by all channels.
type ScopeConfig struct {
	SampleRate   float64 // Hz
	BufferSize   int
	Range        float64 // V peak to peak per channel
	Offset       float64 // V
	Mode         AcqMode
	Filter       Filter
	RecordLength float64 // seconds, record mode only

	TriggerSource  TrigSrc
	TriggerType    TrigType
	TriggerChannel int
	TriggerLevel   float64 // V
	TriggerSlope   Slope
	TriggerTimeout float64 // seconds, 0 = auto trigger disabled
}

// ConfigInfo describes the opened device's instrument resources.
type ConfigInfo struct {
	AnalogInChannels   int
	AnalogOutChannels  int
	DigitalIOChannels  int
	AnalogInBufferSize int
}

// SuppliesStatus reflects the programmable power supply state.
type SuppliesStatus struct {
	Enabled         bool
	PositiveVoltage float64
	NegativeVoltage float64
	USBVoltage      float64
	USBCurrent      float64
}

// Device is one opened WaveForms device.
type Device interface {
	// Name returns the device product name.
	Name() string
	// SerialNumber returns the device serial number string.
	SerialNumber() string
	// Reset returns all instruments to their default state.
	Reset() error
	// Close releases the device handle.
	Close() error
	// Config describes the device's instrument resources.
	Config() (ConfigInfo, error)
	// ADCBits returns the analog-in converter resolution.
	ADCBits() (int, error)

	// WaveGenConfigure programs a generator channel without starting it.
	WaveGenConfigure(channel int, cfg WaveGenConfig) error
	// WaveGenStart starts output on a generator channel.
	WaveGenStart(channel int) error
	// WaveGenStop stops output on a generator channel.
	WaveGenStop(channel int) error

	// ScopeConfigure programs the analog-in instrument.
	ScopeConfigure(cfg ScopeConfig) error
	// ScopeStart arms the analog-in instrument.
	ScopeStart() error
	// ScopeStatus polls the analog-in state, fetching data when ready.
	ScopeStatus() (State, error)
	// ScopeSamples returns the latest acquisition for one channel.
	ScopeSamples(channel int, n int) ([]float64, error)
	// ScopeChannelEnable switches one analog-in channel on or off.
	ScopeChannelEnable(channel int, enable bool) error
	// ScopeRecordStatus reports the record FIFO fill: samples ready to
	// read, samples dropped and samples corrupted since the last call.
	ScopeRecordStatus() (available, lost, corrupt int, err error)
	// ScopeReadRecorded drains up to n available samples for one
	// channel from the record FIFO.
	ScopeReadRecorded(channel, n int) ([]float64, error)
	// ScopeStop stops the analog-in instrument.
	ScopeStop() error

	// SuppliesConfigure programs the power supply rails.
	SuppliesConfigure(positive, negative float64, enabled bool) error
	// SuppliesStatus reads back the supply state.
	SuppliesStatus() (SuppliesStatus, error)

	// DigitalSetEnableMask sets which of the 16 digital pins are outputs.
	DigitalSetEnableMask(mask uint16) error
	// DigitalWrite drives the output pins from the mask.
	DigitalWrite(mask uint16) error
	// DigitalRead returns the state of all 16 pins.
	DigitalRead() (uint16, error)
}

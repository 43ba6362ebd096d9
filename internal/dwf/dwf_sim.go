//go:build !dwf
// +build !dwf

package dwf

import (
	"math"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// simChannels is the channel count of the simulated device, matching
// an Analog Discovery 2.
const simChannels = 2

// simRecordChunk is how many record-FIFO samples become available per
// status poll.
const simRecordChunk = 512

// simBufferSize matches the Analog Discovery 2 analog-in buffer.
const simBufferSize = 8192

// simADCBits matches the Analog Discovery 2 converter.
const simADCBits = 14

// Enumerate lists attached devices. The simulator always reports a
// single idle device.
func Enumerate() ([]DeviceInfo, error) {
	return []DeviceInfo{
		{
			Index:        0,
			Name:         "Analog Discovery 2 (simulated)",
			SerialNumber: "SN:SIM000001",
			InUse:        false,
		},
	}, nil
}

// Open acquires a device. deviceIndex -1 opens the first device found,
// configIndex -1 uses the default configuration profile.
func Open(deviceIndex, configIndex int) (Device, error) {
	if deviceIndex > 0 {
		return nil, apperrors.Newf(apperrors.ErrDeviceNotFound,
			"device index %d: only one simulated device", deviceIndex)
	}
	if configIndex < -1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam,
			"config index %d", configIndex)
	}

	d := &simDevice{
		name:   "Analog Discovery 2 (simulated)",
		serial: "SN:SIM000001",
		log:    logger.WithModule("dwf"),
	}
	d.reset()

	d.log.Info("device opened",
		zap.Int("device_index", deviceIndex),
		zap.Int("config_index", configIndex))

	return d, nil
}

// simDevice is the in-memory stand-in for an Analog Discovery. Every
// generator channel is looped back into the scope channel with the
// same number.
type simDevice struct {
	mu     sync.Mutex
	name   string
	serial string
	log    *zap.Logger
	closed bool

	wavegen [simChannels]WaveGenConfig
	running [simChannels]bool

	scope        ScopeConfig
	scopeState   State
	scopeActive  bool
	scopeEnabled [simChannels]bool

	recordTotal   int
	recordDone    int
	recordPending int

	supplies SuppliesStatus

	digitalEnable uint16
	digitalOut    uint16
}

func (d *simDevice) reset() {
	for ch := 0; ch < simChannels; ch++ {
		d.wavegen[ch] = WaveGenConfig{}
		d.running[ch] = false
	}
	d.scope = ScopeConfig{}
	d.scopeState = StateReady
	d.scopeActive = false
	for ch := 0; ch < simChannels; ch++ {
		d.scopeEnabled[ch] = true
	}
	d.recordTotal = 0
	d.recordDone = 0
	d.recordPending = 0
	d.supplies = SuppliesStatus{USBVoltage: 5.0, USBCurrent: 0.5}
	d.digitalEnable = 0
	d.digitalOut = 0
}

func (d *simDevice) Name() string         { return d.name }
func (d *simDevice) SerialNumber() string { return d.serial }

func (d *simDevice) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.reset()
	return nil
}

func (d *simDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.reset()
	d.closed = true
	d.log.Info("device closed")
	return nil
}

func (d *simDevice) Config() (ConfigInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ConfigInfo{}, apperrors.New(apperrors.ErrNotAcquired)
	}
	return ConfigInfo{
		AnalogInChannels:   simChannels,
		AnalogOutChannels:  simChannels,
		DigitalIOChannels:  16,
		AnalogInBufferSize: simBufferSize,
	}, nil
}

func (d *simDevice) ADCBits() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, apperrors.New(apperrors.ErrNotAcquired)
	}
	return simADCBits, nil
}

func (d *simDevice) checkChannel(channel int) error {
	if channel < 0 || channel >= simChannels {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"wavegen channel %d outside [0, %d]", channel, simChannels-1)
	}
	return nil
}

func (d *simDevice) WaveGenConfigure(channel int, cfg WaveGenConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if err := d.checkChannel(channel); err != nil {
		return err
	}
	d.wavegen[channel] = cfg
	return nil
}

func (d *simDevice) WaveGenStart(channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if err := d.checkChannel(channel); err != nil {
		return err
	}
	d.running[channel] = true
	return nil
}

func (d *simDevice) WaveGenStop(channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if err := d.checkChannel(channel); err != nil {
		return err
	}
	d.running[channel] = false
	return nil
}

func (d *simDevice) ScopeConfigure(cfg ScopeConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.scope = cfg
	d.scopeState = StateConfig
	return nil
}

func (d *simDevice) ScopeStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.scopeActive = true
	d.scopeState = StateArmed

	if d.scope.Mode == AcqModeRecord {
		rate := d.scope.SampleRate
		if rate <= 0 {
			rate = 1e6
		}
		d.recordTotal = int(d.scope.RecordLength * rate)
		if d.recordTotal < 1 {
			d.recordTotal = 1
		}
		d.recordDone = 0
		d.recordPending = 0
		d.scopeState = StateRunning
	}
	return nil
}

func (d *simDevice) ScopeChannelEnable(channel int, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if channel < 0 || channel >= simChannels {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"scope channel %d outside [0, %d]", channel, simChannels-1)
	}
	d.scopeEnabled[channel] = enable
	return nil
}

func (d *simDevice) ScopeRecordStatus() (int, int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, 0, 0, apperrors.New(apperrors.ErrNotAcquired)
	}
	if !d.scopeActive || d.scope.Mode != AcqModeRecord {
		return 0, 0, 0, apperrors.New(apperrors.ErrNotConfigured,
			"record mode is not armed")
	}

	// each poll fills another chunk of the FIFO
	chunk := d.recordTotal - d.recordDone - d.recordPending
	if chunk > simRecordChunk {
		chunk = simRecordChunk
	}
	d.recordPending += chunk

	if d.recordDone+d.recordPending >= d.recordTotal {
		d.scopeState = StateDone
	}
	// the simulated FIFO never overflows
	return d.recordPending, 0, 0, nil
}

func (d *simDevice) ScopeReadRecorded(channel, n int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, apperrors.New(apperrors.ErrNotAcquired)
	}
	if channel < 0 || channel >= simChannels {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam,
			"scope channel %d outside [0, %d]", channel, simChannels-1)
	}
	if !d.scopeActive || d.scope.Mode != AcqModeRecord {
		return nil, apperrors.New(apperrors.ErrNotConfigured,
			"record mode is not armed")
	}
	if n <= 0 || n > d.recordPending {
		n = d.recordPending
	}

	rate := d.scope.SampleRate
	if rate <= 0 {
		rate = 1e6
	}
	samples := make([]float64, n)
	if d.running[channel] && d.scopeEnabled[channel] {
		cfg := d.wavegen[channel]
		for i := 0; i < n; i++ {
			samples[i] = synthesize(cfg, float64(d.recordDone+i)/rate)
		}
	}
	d.recordDone += n
	d.recordPending -= n
	return samples, nil
}

func (d *simDevice) ScopeStatus() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return StateReady, apperrors.New(apperrors.ErrNotAcquired)
	}
	if !d.scopeActive {
		return d.scopeState, nil
	}
	if d.scope.Mode == AcqModeRecord {
		// record mode stays running until the FIFO is drained
		return d.scopeState, nil
	}
	// the simulated single acquisition completes on the first poll
	switch d.scopeState {
	case StateArmed, StateRunning, StatePrefill:
		d.scopeState = StateDone
	}
	return d.scopeState, nil
}

func (d *simDevice) ScopeSamples(channel int, n int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, apperrors.New(apperrors.ErrNotAcquired)
	}
	if channel < 0 || channel >= simChannels {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam,
			"scope channel %d outside [0, %d]", channel, simChannels-1)
	}
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "sample count %d", n)
	}

	rate := d.scope.SampleRate
	if rate <= 0 {
		rate = 1e6
	}

	samples := make([]float64, n)
	if !d.running[channel] || !d.scopeEnabled[channel] {
		return samples, nil
	}

	cfg := d.wavegen[channel]
	for i := 0; i < n; i++ {
		samples[i] = synthesize(cfg, float64(i)/rate)
	}
	return samples, nil
}

func (d *simDevice) ScopeStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.scopeActive = false
	d.scopeState = StateReady
	return nil
}

func (d *simDevice) SuppliesConfigure(positive, negative float64, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.supplies.PositiveVoltage = positive
	d.supplies.NegativeVoltage = negative
	d.supplies.Enabled = enabled
	return nil
}

func (d *simDevice) SuppliesStatus() (SuppliesStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return SuppliesStatus{}, apperrors.New(apperrors.ErrNotAcquired)
	}
	return d.supplies, nil
}

func (d *simDevice) DigitalSetEnableMask(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.digitalEnable = mask
	return nil
}

func (d *simDevice) DigitalWrite(mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	d.digitalOut = mask
	return nil
}

func (d *simDevice) DigitalRead() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, apperrors.New(apperrors.ErrNotAcquired)
	}
	// enabled outputs read back their driven level, inputs float low
	return d.digitalOut & d.digitalEnable, nil
}

// synthesize evaluates the generator output at time t seconds.
func synthesize(cfg WaveGenConfig, t float64) float64 {
	if cfg.Frequency <= 0 && cfg.Function != FuncDC {
		return cfg.Offset
	}

	phase := cfg.Phase / 360.0
	cycle := math.Mod(t*cfg.Frequency+phase, 1.0)
	if cycle < 0 {
		cycle += 1.0
	}

	duty := cfg.Symmetry / 100.0
	if duty <= 0 || duty > 1 {
		duty = 0.5
	}

	var unit float64
	switch cfg.Function {
	case FuncDC:
		unit = 0
	case FuncSine:
		unit = math.Sin(2 * math.Pi * cycle)
	case FuncSquare, FuncPulse:
		if cycle < duty {
			unit = 1
		} else {
			unit = -1
		}
	case FuncTriangle:
		if cycle < duty {
			unit = -1 + 2*cycle/duty
		} else {
			unit = 1 - 2*(cycle-duty)/(1-duty)
		}
	case FuncRampUp:
		unit = -1 + 2*cycle
	case FuncRampDown:
		unit = 1 - 2*cycle
	case FuncNoise:
		// deterministic pseudo-noise so repeated reads line up
		unit = math.Sin(2*math.Pi*cycle*977.0) * math.Sin(2*math.Pi*cycle*131.0)
	case FuncTrapezium:
		unit = trapezium(cycle, duty)
	case FuncSinePower:
		s := math.Sin(2 * math.Pi * cycle)
		// symmetry shapes the exponent, 50% leaving a plain sine
		p := 2*duty + 1e-9
		unit = math.Copysign(math.Pow(math.Abs(s), p), s)
	case FuncCustom, FuncPlay:
		if len(cfg.Data) > 0 {
			idx := int(cycle * float64(len(cfg.Data)))
			if idx >= len(cfg.Data) {
				idx = len(cfg.Data) - 1
			}
			unit = cfg.Data[idx]
		}
	default:
		unit = 0
	}

	return cfg.Offset + cfg.Amplitude*unit
}

// trapezium rises, holds, falls and holds again, the ramp fraction
// set by the symmetry.
func trapezium(cycle, ramp float64) float64 {
	if ramp > 0.5 {
		ramp = 0.5
	}
	half := cycle
	sign := 1.0
	if cycle >= 0.5 {
		half = cycle - 0.5
		sign = -1.0
	}
	rise := ramp / 2
	if rise <= 0 {
		if half < 0.25 {
			return sign
		}
		return -sign
	}
	switch {
	case half < rise:
		return sign * (half / rise)
	case half < 0.5-rise:
		return sign
	default:
		return sign * ((0.5 - half) / rise)
	}
}

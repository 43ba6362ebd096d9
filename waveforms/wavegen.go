package waveforms

import (
	"math"

	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/dwf"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// SignalConfig describes one generated waveform. Data carries
// normalized [-1, 1] samples for the custom and play shapes; the
// run, wait, repeat and idle fields shape burst output and default to
// continuous playback.
type SignalConfig struct {
	Signal    OutputSignal `json:"signal"`
	Frequency float64      `json:"frequency"` // Hz
	Amplitude float64      `json:"amplitude"` // V
	Offset    float64      `json:"offset"`    // V
	Symmetry  float64      `json:"symmetry"`  // percent, 0 picks 50
	Phase     float64      `json:"phase"`     // degrees
	Data      []float64    `json:"data,omitempty"`

	RunSeconds  float64         `json:"run_seconds"`  // 0 runs forever
	WaitSeconds float64         `json:"wait_seconds"` // before each run
	Repeat      int             `json:"repeat"`       // 0 repeats forever
	Idle        OutputIdleState `json:"idle"`
}

func (c SignalConfig) validate() error {
	if !c.Signal.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "signal %d", int(c.Signal))
	}
	if c.Signal != SignalDC && c.Frequency <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"frequency %v Hz must be positive", c.Frequency)
	}
	if c.Amplitude < 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"amplitude %v V must not be negative", c.Amplitude)
	}
	if peak := math.Abs(c.Offset) + c.Amplitude; peak > OutputVoltageMax {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"offset %v V plus amplitude %v V exceeds the %v V rail",
			c.Offset, c.Amplitude, OutputVoltageMax)
	}
	if c.Symmetry < 0 || c.Symmetry > 100 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"symmetry %v%% outside [0, 100]", c.Symmetry)
	}
	if c.Signal.NeedsBuffer() && len(c.Data) == 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"%s signal needs a sample buffer", c.Signal)
	}
	if c.RunSeconds < 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"run duration %v s must not be negative", c.RunSeconds)
	}
	if c.WaitSeconds < 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"wait duration %v s must not be negative", c.WaitSeconds)
	}
	if c.Repeat < 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"repeat count %d must not be negative", c.Repeat)
	}
	return nil
}

// PlaySignal programs a generator channel and starts output. The
// channel keeps playing until StopSignal, Reset or Close.
func (d *Device) PlaySignal(out AnalogOutput, cfg SignalConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !out.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "wavegen channel %d", int(out))
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	symmetry := cfg.Symmetry
	if symmetry == 0 {
		symmetry = 50
	}

	backendCfg := dwf.WaveGenConfig{
		Function:    cfg.Signal.toBackend(),
		Frequency:   cfg.Frequency,
		Amplitude:   cfg.Amplitude,
		Offset:      cfg.Offset,
		Symmetry:    symmetry,
		Phase:       cfg.Phase,
		Data:        cfg.Data,
		RunSeconds:  cfg.RunSeconds,
		WaitSeconds: cfg.WaitSeconds,
		Repeat:      cfg.Repeat,
		Idle:        cfg.Idle.toBackend(),
	}

	if err := d.backend.WaveGenConfigure(int(out), backendCfg); err != nil {
		return err
	}
	if err := d.backend.WaveGenStart(int(out)); err != nil {
		return err
	}
	d.wavegenRunning[out] = true

	d.log.Debug("wavegen started",
		zap.Int("channel", int(out)),
		zap.String("signal", cfg.Signal.String()),
		zap.Float64("frequency", cfg.Frequency),
		zap.Float64("amplitude", cfg.Amplitude),
		zap.Float64("offset", cfg.Offset))

	return nil
}

// StopSignal stops output on a generator channel.
func (d *Device) StopSignal(out AnalogOutput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !out.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "wavegen channel %d", int(out))
	}

	if err := d.backend.WaveGenStop(int(out)); err != nil {
		return err
	}
	d.wavegenRunning[out] = false

	d.log.Debug("wavegen stopped", zap.Int("channel", int(out)))
	return nil
}

// SignalRunning reports whether a generator channel is playing.
func (d *Device) SignalRunning(out AnalogOutput) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !out.valid() {
		return false
	}
	return d.wavegenRunning[out]
}

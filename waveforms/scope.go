package waveforms

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/dwf"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// statusPollInterval paces the acquisition completion poll. The
// hardware fills its buffer asynchronously and only reports state
// through polling.
const statusPollInterval = time.Millisecond

// TriggerConfig describes what starts a scope acquisition.
type TriggerConfig struct {
	Source  TriggerSource `json:"source"`
	Type    TriggerType   `json:"type"`
	Channel AnalogInput   `json:"channel"`
	Level   float64       `json:"level"` // V
	Slope   TriggerSlope  `json:"slope"`
	Timeout float64       `json:"timeout"` // seconds, 0 disables auto trigger
}

// RecordingConfig describes a scope acquisition.
type RecordingConfig struct {
	SampleRate   float64         `json:"sample_rate"` // Hz
	BufferSize   int             `json:"buffer_size"`
	Range        float64         `json:"range"`  // V
	Offset       float64         `json:"offset"` // V
	Mode         AcquisitionMode `json:"mode"`
	Filter       SampleFilter    `json:"filter"`
	RecordLength float64         `json:"record_length"` // seconds, record mode only
	Trigger      TriggerConfig   `json:"trigger"`
}

func (c RecordingConfig) validate() error {
	if c.SampleRate <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"sample rate %v Hz must be positive", c.SampleRate)
	}
	if c.BufferSize <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"buffer size %d must be positive", c.BufferSize)
	}
	if c.Range <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"range %v V must be positive", c.Range)
	}
	if c.Mode == AcquisitionRecord && c.RecordLength <= 0 {
		return apperrors.New(apperrors.ErrInvalidParam,
			"record mode needs a positive record length")
	}
	if c.Trigger.Source == TriggerAnalogIn && !c.Trigger.Channel.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"trigger channel %d", int(c.Trigger.Channel))
	}
	return nil
}

func (c RecordingConfig) toBackend() dwf.ScopeConfig {
	return dwf.ScopeConfig{
		SampleRate:     c.SampleRate,
		BufferSize:     c.BufferSize,
		Range:          c.Range,
		Offset:         c.Offset,
		Mode:           c.Mode.toBackend(),
		Filter:         c.Filter.toBackend(),
		RecordLength:   c.RecordLength,
		TriggerSource:  c.Trigger.Source.toBackend(),
		TriggerType:    c.Trigger.Type.toBackend(),
		TriggerChannel: int(c.Trigger.Channel),
		TriggerLevel:   c.Trigger.Level,
		TriggerSlope:   c.Trigger.Slope.toBackend(),
		TriggerTimeout: c.Trigger.Timeout,
	}
}

// EnableChannel switches a scope channel back on. Channels start
// enabled on open.
func (d *Device) EnableChannel(in AnalogInput) error {
	return d.setChannelEnable(in, true)
}

// DisableChannel switches a scope channel off; its samples read as
// zero until re-enabled.
func (d *Device) DisableChannel(in AnalogInput) error {
	return d.setChannelEnable(in, false)
}

func (d *Device) setChannelEnable(in AnalogInput, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !in.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "scope channel %d", int(in))
	}
	if err := d.backend.ScopeChannelEnable(int(in), enable); err != nil {
		return err
	}
	d.inputDisabled[in] = !enable
	return nil
}

// ChannelEnabled reports whether a scope channel is on.
func (d *Device) ChannelEnabled(in AnalogInput) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired || !in.valid() {
		return false
	}
	return !d.inputDisabled[in]
}

// ConfigureScope programs the scope without arming it.
func (d *Device) ConfigureScope(cfg RecordingConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	if err := d.backend.ScopeConfigure(cfg.toBackend()); err != nil {
		return err
	}
	d.scopeConfig = cfg
	d.scopeConfigured = true
	d.scopeRunning = false
	d.recording = false
	return nil
}

// StartScope arms the configured scope.
func (d *Device) StartScope() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !d.scopeConfigured {
		return apperrors.New(apperrors.ErrNotConfigured,
			"configure the scope before starting it")
	}
	if err := d.backend.ScopeStart(); err != nil {
		return err
	}
	d.scopeRunning = true
	return nil
}

// StopScope stops the scope. The configuration is kept so the scope
// can be re-armed without reconfiguring.
func (d *Device) StopScope() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if err := d.backend.ScopeStop(); err != nil {
		return err
	}
	d.scopeRunning = false
	d.recording = false
	return nil
}

// ScopeState polls the scope acquisition state.
func (d *Device) ScopeState() (InstrumentState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return StateReady, err
	}
	state, err := d.backend.ScopeStatus()
	if err != nil {
		return StateReady, err
	}
	return stateFromBackend(state), nil
}

// Record waits for the armed acquisition to complete and returns the
// captured samples of one channel. The scope must be configured and
// started first.
func (d *Device) Record(ctx context.Context, in AnalogInput, samples int) ([]float64, error) {
	d.mu.Lock()
	if err := d.checkAcquired(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if !d.scopeConfigured || !d.scopeRunning {
		d.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrNotConfigured,
			"start a recording before reading samples")
	}
	if !in.valid() {
		d.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "scope channel %d", int(in))
	}
	if samples <= 0 {
		samples = d.scopeConfig.BufferSize
	}
	d.mu.Unlock()

	if err := d.waitDone(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return nil, err
	}
	data, err := d.backend.ScopeSamples(int(in), samples)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAcquisitionFailed)
	}

	d.log.Debug("acquisition complete",
		zap.Int("channel", int(in)),
		zap.Int("samples", len(data)))

	return data, nil
}

// waitDone polls until the scope reports a completed acquisition.
func (d *Device) waitDone(ctx context.Context) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		d.mu.Lock()
		if !d.acquired {
			d.mu.Unlock()
			return apperrors.New(apperrors.ErrNotAcquired)
		}
		state, err := d.backend.ScopeStatus()
		d.mu.Unlock()
		if err != nil {
			return err
		}
		if state == dwf.StateDone {
			return nil
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout,
				"waiting for acquisition")
		case <-ticker.C:
		}
	}
}

// RecordStatus is one record FIFO poll: samples ready to read and the
// running totals of dropped and corrupted samples.
type RecordStatus struct {
	Available int `json:"available"`
	Lost      int `json:"lost"`
	Corrupt   int `json:"corrupt"`
}

// StartRecording configures the scope in record mode and arms it. The
// FIFO is drained with ReadRecorded or FillRecorded.
func (d *Device) StartRecording(cfg RecordingConfig) error {
	cfg.Mode = AcquisitionRecord
	if err := d.ConfigureScope(cfg); err != nil {
		return err
	}
	if err := d.StartScope(); err != nil {
		return err
	}

	d.mu.Lock()
	d.recording = true
	d.mu.Unlock()
	return nil
}

func (d *Device) checkRecording() error {
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !d.recording {
		return apperrors.New(apperrors.ErrNotConfigured,
			"start a record-mode acquisition before draining the FIFO")
	}
	return nil
}

// RecordStatus polls the record FIFO fill.
func (d *Device) RecordStatus() (RecordStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkRecording(); err != nil {
		return RecordStatus{}, err
	}
	avail, lost, corrupt, err := d.backend.ScopeRecordStatus()
	if err != nil {
		return RecordStatus{}, err
	}
	return RecordStatus{Available: avail, Lost: lost, Corrupt: corrupt}, nil
}

// ReadRecorded drains the currently available FIFO samples for one
// channel. An empty slice means the FIFO had nothing new yet.
func (d *Device) ReadRecorded(in AnalogInput) ([]float64, RecordStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkRecording(); err != nil {
		return nil, RecordStatus{}, err
	}
	if !in.valid() {
		return nil, RecordStatus{}, apperrors.Newf(apperrors.ErrInvalidParam,
			"scope channel %d", int(in))
	}

	avail, lost, corrupt, err := d.backend.ScopeRecordStatus()
	if err != nil {
		return nil, RecordStatus{}, err
	}
	status := RecordStatus{Available: avail, Lost: lost, Corrupt: corrupt}
	if avail == 0 {
		return nil, status, nil
	}

	data, err := d.backend.ScopeReadRecorded(int(in), avail)
	if err != nil {
		return nil, status, apperrors.Wrap(err, apperrors.ErrAcquisitionFailed)
	}
	return data, status, nil
}

// FillRecorded drains the FIFO until n samples have arrived. The
// returned status carries the lost and corrupt totals over the whole
// fill.
func (d *Device) FillRecorded(ctx context.Context, in AnalogInput, n int) ([]float64, RecordStatus, error) {
	if n <= 0 {
		return nil, RecordStatus{}, apperrors.Newf(apperrors.ErrInvalidParam,
			"sample count %d", n)
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var total RecordStatus
	samples := make([]float64, 0, n)
	for len(samples) < n {
		chunk, status, err := d.ReadRecorded(in)
		if err != nil {
			return samples, total, err
		}
		total.Lost += status.Lost
		total.Corrupt += status.Corrupt
		if len(chunk) > 0 {
			samples = append(samples, chunk...)
			continue
		}

		select {
		case <-ctx.Done():
			return samples, total, apperrors.Wrapf(ctx.Err(), apperrors.ErrTimeout,
				"filling %d of %d recorded samples", len(samples), n)
		case <-ticker.C:
		}
	}
	if len(samples) > n {
		samples = samples[:n]
	}
	return samples, total, nil
}

// SingleAcquisition configures, arms and reads one buffer in a single
// call.
func (d *Device) SingleAcquisition(ctx context.Context, in AnalogInput, cfg RecordingConfig) ([]float64, error) {
	cfg.Mode = AcquisitionSingle
	if err := d.ConfigureScope(cfg); err != nil {
		return nil, err
	}
	if err := d.StartScope(); err != nil {
		return nil, err
	}
	defer d.StopScope()

	return d.Record(ctx, in, cfg.BufferSize)
}

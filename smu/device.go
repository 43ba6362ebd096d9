// Package smu drives the Analog Devices ADALM1000 source-measure
// unit. Each of the two channels sources voltage or current while
// measuring the other quantity; every sample carries both readings.
// SourceSession scopes the common source-then-measure flow so a test
// always returns the channels to high impedance.
package smu

import (
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
	"github.com/ammarkh95/go-analog/internal/m1k"
)

// Hardware limits of the ADALM1000.
const (
	VoltageMin = 0.0
	VoltageMax = 5.0
	CurrentMin = -0.2
	CurrentMax = 0.2

	// DefaultSampleRate is the capture stream rate in Hz.
	DefaultSampleRate = 100000
	// DefaultQueueSize is the per-channel sample queue depth.
	DefaultQueueSize = 100000
)

// Channel selects one of the two measurement channels.
type Channel int

const (
	ChannelA Channel = 0
	ChannelB Channel = 1
)

func (c Channel) valid() bool {
	return c == ChannelA || c == ChannelB
}

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	default:
		return "?"
	}
}

// ChannelMode is a channel operating mode.
type ChannelMode int

const (
	// HiZ leaves the channel floating.
	HiZ ChannelMode = iota
	// SVMI sources voltage and measures current.
	SVMI
	// SIMV sources current and measures voltage.
	SIMV
	// HiZSplit is HiZ with split sense and force pins.
	HiZSplit
	// SVMISplit is SVMI with split sense and force pins.
	SVMISplit
	// SIMVSplit is SIMV with split sense and force pins.
	SIMVSplit
)

func (m ChannelMode) valid() bool {
	return m >= HiZ && m <= SIMVSplit
}

// SourcesVoltage reports whether the mode sources voltage.
func (m ChannelMode) SourcesVoltage() bool {
	return m == SVMI || m == SVMISplit
}

// SourcesCurrent reports whether the mode sources current.
func (m ChannelMode) SourcesCurrent() bool {
	return m == SIMV || m == SIMVSplit
}

func (m ChannelMode) toBackend() m1k.Mode {
	return m1k.Mode(m)
}

// Sample is one measurement of a single channel.
type Sample struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// Frame is one simultaneous measurement of both channels.
type Frame struct {
	A Sample `json:"a"`
	B Sample `json:"b"`
}

func frameFromBackend(f m1k.Frame) Frame {
	return Frame{
		A: Sample{Voltage: f.A.Voltage, Current: f.A.Current},
		B: Sample{Voltage: f.B.Voltage, Current: f.B.Current},
	}
}

func (f Frame) channel(c Channel) Sample {
	if c == ChannelB {
		return f.B
	}
	return f.A
}

// SignalInfo describes the output programmed on a channel.
type SignalInfo struct {
	Shape    string  `json:"shape"`
	Value    float64 `json:"value,omitempty"`
	Midpoint float64 `json:"midpoint,omitempty"`
	Peak     float64 `json:"peak,omitempty"`
	Period   float64 `json:"period,omitempty"` // samples per cycle
	Phase    float64 `json:"phase,omitempty"`  // samples
	Duty     float64 `json:"duty,omitempty"`   // square only
	Buffered bool    `json:"buffered,omitempty"`
	Cyclic   bool    `json:"cyclic,omitempty"`
}

func shapeName(s m1k.SourceShape) string {
	switch s {
	case m1k.ShapeSine:
		return "sine"
	case m1k.ShapeSquare:
		return "square"
	case m1k.ShapeTriangle:
		return "triangle"
	case m1k.ShapeSawtooth:
		return "sawtooth"
	case m1k.ShapeStairstep:
		return "stairstep"
	default:
		return "constant"
	}
}

// Device is one acquired ADALM1000.
type Device struct {
	mu      sync.Mutex
	session m1k.Session
	board   m1k.Device
	log     *zap.Logger

	acquired  bool
	queueSize int
	modes     [2]ChannelMode
	signals   [2]SignalInfo
	buffered  [2]bool
	cyclic    [2]bool
}

// Open acquires the first attached board with the given stream
// configuration. Zero values pick the defaults.
func Open(sampleRate, queueSize int) (*Device, error) {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	if sampleRate < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "sample rate %d", sampleRate)
	}

	session, err := m1k.NewSession(queueSize)
	if err != nil {
		return nil, err
	}
	boards := session.Devices()
	if len(boards) == 0 {
		session.End()
		return nil, apperrors.New(apperrors.ErrDeviceNotFound, "no ADALM1000 attached")
	}
	if err := session.Configure(sampleRate); err != nil {
		session.End()
		return nil, err
	}

	d := &Device{
		session:   session,
		board:     boards[0],
		log:       logger.WithModule("smu"),
		acquired:  true,
		queueSize: queueSize,
		signals: [2]SignalInfo{
			{Shape: "constant"},
			{Shape: "constant"},
		},
	}

	d.log.Info("adalm1000 acquired",
		zap.String("serial", d.board.Serial()),
		zap.Int("sample_rate", sampleRate),
		zap.Int("queue_size", queueSize))

	return d, nil
}

// Serial returns the board serial number.
func (d *Device) Serial() string {
	return d.board.Serial()
}

// SampleRate returns the capture stream rate in Hz.
func (d *Device) SampleRate() int {
	return d.session.SampleRate()
}

// SetSampleRate reconfigures the capture stream rate. The stream must
// not be running.
func (d *Device) SetSampleRate(rate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if rate <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "sample rate %d", rate)
	}
	if d.session.Running() {
		return apperrors.New(apperrors.ErrInvalidParam,
			"stop the capture stream before changing the sample rate")
	}
	return d.session.Configure(rate)
}

// QueueSize returns the per-channel stream queue depth in samples.
func (d *Device) QueueSize() int {
	return d.queueSize
}

// Close parks both channels in high impedance and releases the board.
// A second Close fails with ErrNotAcquired, like any other call on a
// released board.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	d.acquired = false

	d.board.SetMode(int(ChannelA), m1k.ModeHiZ)
	d.board.SetMode(int(ChannelB), m1k.ModeHiZ)
	if err := d.session.End(); err != nil {
		return err
	}

	d.log.Info("adalm1000 released")
	return nil
}

func (d *Device) checkAcquired() error {
	if !d.acquired {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	return nil
}

// checkClosable is checkAcquired under the lock, for the session
// teardown that parks channels before Close.
func (d *Device) checkClosable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkAcquired()
}

// SetMode switches a channel operating mode.
func (d *Device) SetMode(ch Channel, mode ChannelMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !ch.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	if !mode.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "mode %d", int(mode))
	}

	if err := d.board.SetMode(int(ch), mode.toBackend()); err != nil {
		return err
	}
	d.modes[ch] = mode

	d.log.Debug("channel mode set",
		zap.String("channel", ch.String()),
		zap.Int("mode", int(mode)))
	return nil
}

// Mode returns a channel's operating mode.
func (d *Device) Mode(ch Channel) (ChannelMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return HiZ, err
	}
	if !ch.valid() {
		return HiZ, apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	return d.modes[ch], nil
}

// checkLevel validates a source level against the channel mode.
func (d *Device) checkLevel(ch Channel, lo, hi float64) error {
	mode := d.modes[ch]
	switch {
	case mode.SourcesVoltage():
		if lo < VoltageMin || hi > VoltageMax {
			return apperrors.Newf(apperrors.ErrInvalidParam,
				"channel %s voltage range [%v, %v] outside [%v, %v]",
				ch, lo, hi, VoltageMin, VoltageMax)
		}
	case mode.SourcesCurrent():
		if lo < CurrentMin || hi > CurrentMax {
			return apperrors.Newf(apperrors.ErrInvalidParam,
				"channel %s current range [%v, %v] outside [%v, %v]",
				ch, lo, hi, CurrentMin, CurrentMax)
		}
	default:
		return apperrors.Newf(apperrors.ErrNotConfigured,
			"channel %s is in high impedance, set a sourcing mode first", ch)
	}
	return nil
}

func (d *Device) setSource(ch Channel, lo, hi float64, src m1k.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !ch.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	if err := d.checkLevel(ch, lo, hi); err != nil {
		return err
	}
	if err := d.board.SetSource(int(ch), src); err != nil {
		return err
	}
	d.signals[ch] = SignalInfo{
		Shape:    shapeName(src.Shape),
		Value:    src.Value,
		Midpoint: src.Midpoint,
		Peak:     src.Peak,
		Period:   src.Period,
		Phase:    src.Phase,
		Duty:     src.Duty,
	}
	d.buffered[ch] = false
	d.cyclic[ch] = false
	return nil
}

// SignalInfo describes the output currently programmed on a channel.
func (d *Device) SignalInfo(ch Channel) (SignalInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return SignalInfo{}, err
	}
	if !ch.valid() {
		return SignalInfo{}, apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	info := d.signals[ch]
	if d.buffered[ch] {
		info.Buffered = true
		info.Cyclic = d.cyclic[ch]
	}
	return info, nil
}

// Write queues arbitrary output samples on a channel: volts in SVMI,
// amps in SIMV. A cyclic buffer repeats until replaced or flushed; a
// one-shot buffer holds its last value after playback.
func (d *Device) Write(ch Channel, data []float64, cyclic bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !ch.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	if len(data) == 0 {
		return apperrors.New(apperrors.ErrInvalidParam, "empty write buffer")
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if err := d.checkLevel(ch, lo, hi); err != nil {
		return err
	}

	if err := d.board.Write(int(ch), data, cyclic); err != nil {
		return err
	}
	d.buffered[ch] = true
	d.cyclic[ch] = cyclic

	d.log.Debug("buffer queued",
		zap.String("channel", ch.String()),
		zap.Int("samples", len(data)),
		zap.Bool("cyclic", cyclic))
	return nil
}

// FlushChannel discards a channel's queued output samples.
func (d *Device) FlushChannel(ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	if !ch.valid() {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	if err := d.board.Flush(int(ch)); err != nil {
		return err
	}
	d.buffered[ch] = false
	d.cyclic[ch] = false
	return nil
}

// Flush discards the queued output samples of both channels.
func (d *Device) Flush() error {
	if err := d.FlushChannel(ChannelA); err != nil {
		return err
	}
	return d.FlushChannel(ChannelB)
}

// SetConstant sources a constant level: volts in SVMI, amps in SIMV.
func (d *Device) SetConstant(ch Channel, value float64) error {
	return d.setSource(ch, value, value, m1k.Source{
		Shape: m1k.ShapeConstant,
		Value: value,
	})
}

// SetSine sources a sine wave swinging peak around midpoint over
// period samples.
func (d *Device) SetSine(ch Channel, midpoint, peak, period, phase float64) error {
	return d.setSource(ch, midpoint-peak, midpoint+peak, m1k.Source{
		Shape:    m1k.ShapeSine,
		Midpoint: midpoint,
		Peak:     peak,
		Period:   period,
		Phase:    phase,
	})
}

// SetSquare sources a square wave with the given duty cycle.
func (d *Device) SetSquare(ch Channel, midpoint, peak, period, phase, duty float64) error {
	if duty <= 0 || duty >= 1 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "duty cycle %v outside (0, 1)", duty)
	}
	return d.setSource(ch, midpoint-peak, midpoint+peak, m1k.Source{
		Shape:    m1k.ShapeSquare,
		Midpoint: midpoint,
		Peak:     peak,
		Period:   period,
		Phase:    phase,
		Duty:     duty,
	})
}

// SetTriangle sources a triangle wave.
func (d *Device) SetTriangle(ch Channel, midpoint, peak, period, phase float64) error {
	return d.setSource(ch, midpoint-peak, midpoint+peak, m1k.Source{
		Shape:    m1k.ShapeTriangle,
		Midpoint: midpoint,
		Peak:     peak,
		Period:   period,
		Phase:    phase,
	})
}

// SetSawtooth sources a sawtooth wave.
func (d *Device) SetSawtooth(ch Channel, midpoint, peak, period, phase float64) error {
	return d.setSource(ch, midpoint-peak, midpoint+peak, m1k.Source{
		Shape:    m1k.ShapeSawtooth,
		Midpoint: midpoint,
		Peak:     peak,
		Period:   period,
		Phase:    phase,
	})
}

// SetStairstep sources a ten-level staircase.
func (d *Device) SetStairstep(ch Channel, midpoint, peak, period, phase float64) error {
	return d.setSource(ch, midpoint-peak, midpoint+peak, m1k.Source{
		Shape:    m1k.ShapeStairstep,
		Midpoint: midpoint,
		Peak:     peak,
		Period:   period,
		Phase:    phase,
	})
}

// StartCapture begins streaming. samples 0 runs continuously.
func (d *Device) StartCapture(samples uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	return d.session.Start(samples)
}

// StopCapture cancels the stream without releasing the board.
func (d *Device) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	return d.session.Cancel()
}

// CaptureRunning reports whether the stream is active.
func (d *Device) CaptureRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired {
		return false
	}
	return d.session.Running()
}

// Continuous reports whether the stream runs without a sample limit.
func (d *Device) Continuous() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired {
		return false
	}
	return d.session.Continuous()
}

// Cancelled reports whether the last stream was stopped by
// StopCapture rather than running to completion.
func (d *Device) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired {
		return false
	}
	return d.session.Cancelled()
}

// ReadAll blocks on the running stream and returns n frames covering
// both channels.
func (d *Device) ReadAll(n int, timeout time.Duration) ([]Frame, error) {
	d.mu.Lock()
	if err := d.checkAcquired(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	board := d.board
	d.mu.Unlock()

	backendFrames, err := board.Read(n, timeout)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, len(backendFrames))
	for i, f := range backendFrames {
		frames[i] = frameFromBackend(f)
	}
	return frames, nil
}

// Read blocks on the running stream and returns n samples of one
// channel.
func (d *Device) Read(ch Channel, n int, timeout time.Duration) ([]Sample, error) {
	if !ch.valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	frames, err := d.ReadAll(n, timeout)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, len(frames))
	for i, f := range frames {
		samples[i] = f.channel(ch)
	}
	return samples, nil
}

// GetSamplesAll runs a short self-contained capture of n frames, with
// or without a running stream.
func (d *Device) GetSamplesAll(n int) ([]Frame, error) {
	d.mu.Lock()
	if err := d.checkAcquired(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	board := d.board
	d.mu.Unlock()

	backendFrames, err := board.GetSamples(n)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, len(backendFrames))
	for i, f := range backendFrames {
		frames[i] = frameFromBackend(f)
	}
	return frames, nil
}

// GetSamples runs a short self-contained capture of one channel.
func (d *Device) GetSamples(ch Channel, n int) ([]Sample, error) {
	if !ch.valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", int(ch))
	}
	frames, err := d.GetSamplesAll(n)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, len(frames))
	for i, f := range frames {
		samples[i] = f.channel(ch)
	}
	return samples, nil
}

// SetLEDs drives the board LEDs from the low three mask bits.
func (d *Device) SetLEDs(mask uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return err
	}
	return d.board.SetLEDs(mask)
}

// Overcurrent reports and clears the overcurrent flag.
func (d *Device) Overcurrent() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return false, err
	}
	return d.board.Overcurrent()
}

// CtrlTransfer issues a raw USB control transfer to the board.
func (d *Device) CtrlTransfer(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAcquired(); err != nil {
		return 0, err
	}
	return d.board.CtrlTransfer(requestType, request, value, index, data)
}

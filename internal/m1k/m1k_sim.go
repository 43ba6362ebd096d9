//go:build !m1khw
// +build !m1khw

package m1k

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

const (
	simChannels = 2
	// simLoadOhms terminates each simulated channel so SVMI reads a
	// plausible current and SIMV a plausible voltage.
	simLoadOhms = 1000.0
	// simADCOffset emulates measurement error, kept well under the
	// tolerances bench tests assert.
	simADCOffset = 0.002

	defaultSampleRate = 100000
	voltageRail       = 5.0
	currentLimit      = 0.2
)

// NewSession opens a session over all attached boards. The simulator
// always presents a single board.
func NewSession(queueSize int) (Session, error) {
	if queueSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "queue size %d", queueSize)
	}

	s := &simSession{
		sampleRate: defaultSampleRate,
		queueSize:  queueSize,
		log:        logger.WithModule("m1k"),
	}
	s.devices = []Device{&simDevice{session: s, serial: "2031SIM0001"}}

	s.log.Info("session opened",
		zap.Int("devices", len(s.devices)),
		zap.Int("queue_size", queueSize))

	return s, nil
}

type simSession struct {
	mu         sync.Mutex
	devices    []Device
	sampleRate int
	queueSize  int
	running    bool
	continuous bool
	cancelled  bool
	ended      bool
	log        *zap.Logger
}

func (s *simSession) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices
}

func (s *simSession) Configure(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if sampleRate <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "sample rate %d", sampleRate)
	}
	s.sampleRate = sampleRate
	return nil
}

func (s *simSession) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

func (s *simSession) Start(samples uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	s.running = true
	s.continuous = samples == 0
	s.cancelled = false
	s.log.Debug("stream started", zap.Uint64("samples", samples))
	return nil
}

func (s *simSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *simSession) Continuous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.continuous
}

func (s *simSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	if s.running {
		s.cancelled = true
	}
	s.running = false
	return nil
}

func (s *simSession) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *simSession) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	s.running = false
	s.ended = true
	s.log.Info("session ended")
	return nil
}

type simDevice struct {
	mu      sync.Mutex
	session *simSession
	serial  string

	modes   [simChannels]Mode
	sources [simChannels]Source
	buffers [simChannels]writeBuffer
	cursor  uint64
	leds    uint8
	tripped bool
}

// writeBuffer is a queued arbitrary output. Start marks the stream
// position where playback began.
type writeBuffer struct {
	data   []float64
	cyclic bool
	start  uint64
}

func (d *simDevice) Serial() string { return d.serial }

func (d *simDevice) checkAlive() error {
	d.session.mu.Lock()
	defer d.session.mu.Unlock()
	if d.session.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	return nil
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= simChannels {
		return apperrors.Newf(apperrors.ErrInvalidParam,
			"channel %d outside [0, %d]", channel, simChannels-1)
	}
	return nil
}

func (d *simDevice) SetMode(channel int, mode Mode) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if err := checkChannel(channel); err != nil {
		return err
	}
	if mode < ModeHiZ || mode > ModeSIMVSplit {
		return apperrors.Newf(apperrors.ErrInvalidParam, "mode %d", int(mode))
	}
	d.mu.Lock()
	d.modes[channel] = mode
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Mode(channel int) (Mode, error) {
	if err := d.checkAlive(); err != nil {
		return ModeHiZ, err
	}
	if err := checkChannel(channel); err != nil {
		return ModeHiZ, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modes[channel], nil
}

func (d *simDevice) SetSource(channel int, src Source) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if err := checkChannel(channel); err != nil {
		return err
	}
	d.mu.Lock()
	d.sources[channel] = src
	d.buffers[channel] = writeBuffer{}
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Write(channel int, data []float64, cyclic bool) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if err := checkChannel(channel); err != nil {
		return err
	}
	if len(data) == 0 {
		return apperrors.New(apperrors.ErrInvalidParam, "empty write buffer")
	}
	d.mu.Lock()
	d.buffers[channel] = writeBuffer{
		data:   append([]float64(nil), data...),
		cyclic: cyclic,
		start:  d.cursor,
	}
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Flush(channel int) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if err := checkChannel(channel); err != nil {
		return err
	}
	d.mu.Lock()
	d.buffers[channel] = writeBuffer{}
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Read(n int, timeout time.Duration) ([]Frame, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "frame count %d", n)
	}
	if !d.session.Running() {
		return nil, apperrors.New(apperrors.ErrNotConfigured,
			"start the capture stream before reading")
	}
	return d.synthesize(n), nil
}

func (d *simDevice) GetSamples(n int) ([]Frame, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "frame count %d", n)
	}
	// a self-contained capture works with or without a running stream
	return d.synthesize(n), nil
}

func (d *simDevice) SetLEDs(mask uint8) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if mask > 0x07 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "led mask %#x", mask)
	}
	d.mu.Lock()
	d.leds = mask
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Overcurrent() (bool, error) {
	if err := d.checkAlive(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tripped := d.tripped
	d.tripped = false
	return tripped, nil
}

func (d *simDevice) CtrlTransfer(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	// the simulator acknowledges the transfer without side effects
	return len(data), nil
}

func (d *simDevice) synthesize(n int) []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames := make([]Frame, n)
	for i := 0; i < n; i++ {
		idx := d.cursor + uint64(i)
		frames[i] = Frame{
			A: d.measure(0, idx),
			B: d.measure(1, idx),
		}
	}
	d.cursor += uint64(n)
	return frames
}

func (d *simDevice) measure(channel int, idx uint64) Sample {
	level := d.outputLevel(channel, idx)

	switch d.modes[channel].Base() {
	case ModeSVMI:
		voltage := clamp(level, 0, voltageRail)
		current := voltage / simLoadOhms
		if math.Abs(current) > currentLimit {
			d.tripped = true
		}
		return Sample{Voltage: voltage + simADCOffset, Current: current}
	case ModeSIMV:
		current := clamp(level, -currentLimit, currentLimit)
		voltage := clamp(current*simLoadOhms, 0, voltageRail)
		return Sample{Voltage: voltage, Current: current + simADCOffset/simLoadOhms}
	default:
		// HiZ floats near ground
		return Sample{Voltage: simADCOffset, Current: 0}
	}
}

// outputLevel resolves the channel output at sample idx. A queued
// write buffer takes precedence over the programmed waveform.
func (d *simDevice) outputLevel(channel int, idx uint64) float64 {
	buf := d.buffers[channel]
	if len(buf.data) == 0 {
		return sourceLevel(d.sources[channel], idx)
	}
	pos := int(idx - buf.start)
	if pos < 0 {
		pos = 0
	}
	if buf.cyclic {
		return buf.data[pos%len(buf.data)]
	}
	if pos >= len(buf.data) {
		// a one-shot buffer holds its last value
		return buf.data[len(buf.data)-1]
	}
	return buf.data[pos]
}

// sourceLevel evaluates the programmed waveform at sample idx.
func sourceLevel(src Source, idx uint64) float64 {
	if src.Shape == ShapeConstant {
		return src.Value
	}
	if src.Period <= 0 {
		return src.Midpoint
	}

	pos := math.Mod(float64(idx)+src.Phase, src.Period) / src.Period
	if pos < 0 {
		pos += 1.0
	}

	duty := src.Duty
	if duty <= 0 || duty > 1 {
		duty = 0.5
	}

	switch src.Shape {
	case ShapeSine:
		return src.Midpoint + src.Peak*math.Sin(2*math.Pi*pos)
	case ShapeSquare:
		if pos < duty {
			return src.Midpoint + src.Peak
		}
		return src.Midpoint - src.Peak
	case ShapeTriangle:
		if pos < 0.5 {
			return src.Midpoint - src.Peak + 4*src.Peak*pos
		}
		return src.Midpoint + src.Peak - 4*src.Peak*(pos-0.5)
	case ShapeSawtooth:
		return src.Midpoint - src.Peak + 2*src.Peak*pos
	case ShapeStairstep:
		// ten discrete levels across the period
		step := math.Floor(pos * 10)
		return src.Midpoint - src.Peak + 2*src.Peak*step/9
	default:
		return src.Midpoint
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

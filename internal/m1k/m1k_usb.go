//go:build m1khw
// +build m1khw

package m1k

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// Vendor control requests of the M1K firmware.
const (
	reqSetMode    = 0x53
	reqSetLEDs    = 0x24
	reqGetStatus  = 0x17
	reqFlushChan  = 0x05
	epStreamIn    = 0x81
	epStreamOut   = 0x02
	framesPerPkt  = 64
	bytesPerFrame = 8 // two channels, 16-bit voltage and current each

	defaultSampleRate = 100000
	voltageRail       = 5.0
	currentLimit      = 0.2
)

// NewSession opens a session over all attached boards.
func NewSession(queueSize int) (Session, error) {
	if queueSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "queue size %d", queueSize)
	}

	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	if err != nil {
		ctx.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "enumerating boards")
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, apperrors.New(apperrors.ErrDeviceNotFound, "no ADALM1000 attached")
	}

	s := &usbSession{
		ctx:        ctx,
		sampleRate: defaultSampleRate,
		queueSize:  queueSize,
		log:        logger.WithModule("m1k"),
	}

	for _, dev := range devs {
		board, err := newUSBDevice(s, dev)
		if err != nil {
			s.End()
			return nil, err
		}
		s.devices = append(s.devices, board)
	}

	s.log.Info("session opened",
		zap.Int("devices", len(s.devices)),
		zap.Int("queue_size", queueSize))

	return s, nil
}

type usbSession struct {
	mu         sync.Mutex
	ctx        *gousb.Context
	devices    []Device
	sampleRate int
	queueSize  int
	running    bool
	continuous bool
	cancelled  bool
	ended      bool
	log        *zap.Logger
}

func (s *usbSession) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices
}

func (s *usbSession) Configure(sampleRate int) error {
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

func (s *usbSession) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

func (s *usbSession) Start(samples uint64) error {
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

func (s *usbSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *usbSession) Continuous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.continuous
}

func (s *usbSession) Cancel() error {
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

func (s *usbSession) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *usbSession) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	s.running = false
	s.ended = true
	for _, d := range s.devices {
		if board, ok := d.(*usbDevice); ok {
			board.release()
		}
	}
	s.ctx.Close()
	s.log.Info("session ended")
	return nil
}

type usbDevice struct {
	mu      sync.Mutex
	session *usbSession
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	serial  string
	modes   [2]Mode
	sources [2]Source
	leds    uint8
}

func newUSBDevice(s *usbSession, dev *gousb.Device) (*usbDevice, error) {
	serial, err := dev.SerialNumber()
	if err != nil {
		serial = "unknown"
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrUSBTransfer,
			"claiming interface on %s", serial)
	}

	in, err := intf.InEndpoint(epStreamIn & 0x0f)
	if err != nil {
		done()
		return nil, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "stream in endpoint")
	}
	out, err := intf.OutEndpoint(epStreamOut)
	if err != nil {
		done()
		return nil, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "stream out endpoint")
	}

	return &usbDevice{
		session: s,
		dev:     dev,
		intf:    intf,
		done:    done,
		in:      in,
		out:     out,
		serial:  serial,
	}, nil
}

func (d *usbDevice) release() {
	if d.done != nil {
		d.done()
	}
	d.dev.Close()
}

func (d *usbDevice) Serial() string { return d.serial }

func (d *usbDevice) checkAlive() error {
	d.session.mu.Lock()
	defer d.session.mu.Unlock()
	if d.session.ended {
		return apperrors.New(apperrors.ErrNotAcquired)
	}
	return nil
}

func (d *usbDevice) SetMode(channel int, mode Mode) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if channel < 0 || channel > 1 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", channel)
	}
	if mode < ModeHiZ || mode > ModeSIMVSplit {
		return apperrors.Newf(apperrors.ErrInvalidParam, "mode %d", int(mode))
	}

	_, err := d.dev.Control(
		gousb.ControlVendor|gousb.ControlInterface|gousb.ControlOut,
		reqSetMode, uint16(mode), uint16(channel), nil)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrUSBTransfer,
			"set mode on channel %d", channel)
	}

	d.mu.Lock()
	d.modes[channel] = mode
	d.mu.Unlock()
	return nil
}

func (d *usbDevice) Mode(channel int) (Mode, error) {
	if err := d.checkAlive(); err != nil {
		return ModeHiZ, err
	}
	if channel < 0 || channel > 1 {
		return ModeHiZ, apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", channel)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modes[channel], nil
}

func (d *usbDevice) SetSource(channel int, src Source) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if channel < 0 || channel > 1 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", channel)
	}

	// stream one period of the waveform to the device output queue
	samples := periodSamples(src, d.session.SampleRate())
	buf := make([]byte, 2+len(samples)*2)
	buf[0] = byte(channel)
	buf[1] = byte(src.Shape)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2+i*2:], encodeLevel(v))
	}
	if _, err := d.out.Write(buf); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrUSBTransfer,
			"writing source on channel %d", channel)
	}

	d.mu.Lock()
	d.sources[channel] = src
	d.mu.Unlock()
	return nil
}

func (d *usbDevice) Write(channel int, data []float64, cyclic bool) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if channel < 0 || channel > 1 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", channel)
	}
	if len(data) == 0 {
		return apperrors.New(apperrors.ErrInvalidParam, "empty write buffer")
	}

	var flags byte
	if cyclic {
		flags = 0x01
	}
	buf := make([]byte, 2+len(data)*2)
	buf[0] = byte(channel)
	buf[1] = flags
	for i, v := range data {
		binary.LittleEndian.PutUint16(buf[2+i*2:], encodeLevel(v))
	}
	if _, err := d.out.Write(buf); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrUSBTransfer,
			"writing buffer on channel %d", channel)
	}
	return nil
}

func (d *usbDevice) Flush(channel int) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if channel < 0 || channel > 1 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "channel %d", channel)
	}
	_, err := d.dev.Control(
		gousb.ControlVendor|gousb.ControlInterface|gousb.ControlOut,
		reqFlushChan, 0, uint16(channel), nil)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrUSBTransfer,
			"flushing channel %d", channel)
	}
	return nil
}

func (d *usbDevice) Read(n int, timeout time.Duration) ([]Frame, error) {
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

	deadline := time.Now().Add(timeout)
	frames := make([]Frame, 0, n)
	buf := make([]byte, framesPerPkt*bytesPerFrame)

	for len(frames) < n {
		if timeout > 0 && time.Now().After(deadline) {
			return frames, apperrors.Newf(apperrors.ErrTimeout,
				"read %d of %d frames", len(frames), n)
		}
		read, err := d.in.Read(buf)
		if err != nil {
			return frames, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "stream read")
		}
		for off := 0; off+bytesPerFrame <= read && len(frames) < n; off += bytesPerFrame {
			frames = append(frames, decodeFrame(buf[off:off+bytesPerFrame]))
		}
	}
	return frames, nil
}

func (d *usbDevice) GetSamples(n int) ([]Frame, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}

	wasRunning := d.session.Running()
	if !wasRunning {
		if err := d.session.Start(uint64(n)); err != nil {
			return nil, err
		}
		defer d.session.Cancel()
	}
	return d.Read(n, 5*time.Second)
}

func (d *usbDevice) SetLEDs(mask uint8) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	if mask > 0x07 {
		return apperrors.Newf(apperrors.ErrInvalidParam, "led mask %#x", mask)
	}
	_, err := d.dev.Control(
		gousb.ControlVendor|gousb.ControlInterface|gousb.ControlOut,
		reqSetLEDs, uint16(mask), 0, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrUSBTransfer, "set leds")
	}
	d.mu.Lock()
	d.leds = mask
	d.mu.Unlock()
	return nil
}

func (d *usbDevice) Overcurrent() (bool, error) {
	if err := d.checkAlive(); err != nil {
		return false, err
	}
	status := make([]byte, 1)
	_, err := d.dev.Control(
		gousb.ControlVendor|gousb.ControlInterface|gousb.ControlIn,
		reqGetStatus, 0, 0, status)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "read status")
	}
	return status[0]&0x01 != 0, nil
}

func (d *usbDevice) CtrlTransfer(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	n, err := d.dev.Control(requestType, request, value, index, data)
	if err != nil {
		return n, apperrors.Wrap(err, apperrors.ErrUSBTransfer, "control transfer")
	}
	return n, nil
}

// periodSamples renders one waveform period for streaming.
func periodSamples(src Source, sampleRate int) []float64 {
	if src.Shape == ShapeConstant || src.Period <= 0 {
		return []float64{src.Value}
	}
	n := int(src.Period)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = sourceLevel(src, uint64(i))
	}
	return out
}

// sourceLevel evaluates the programmed waveform at sample idx. Shared
// with the firmware stream encoder.
func sourceLevel(src Source, idx uint64) float64 {
	if src.Shape == ShapeConstant {
		return src.Value
	}
	if src.Period <= 0 {
		return src.Midpoint
	}
	pos := float64(idx)
	for pos >= src.Period {
		pos -= src.Period
	}
	frac := (pos + src.Phase) / src.Period
	frac -= float64(int(frac))

	switch src.Shape {
	case ShapeSquare:
		duty := src.Duty
		if duty <= 0 || duty > 1 {
			duty = 0.5
		}
		if frac < duty {
			return src.Midpoint + src.Peak
		}
		return src.Midpoint - src.Peak
	case ShapeSawtooth:
		return src.Midpoint - src.Peak + 2*src.Peak*frac
	case ShapeTriangle:
		if frac < 0.5 {
			return src.Midpoint - src.Peak + 4*src.Peak*frac
		}
		return src.Midpoint + src.Peak - 4*src.Peak*(frac-0.5)
	case ShapeStairstep:
		step := float64(int(frac * 10))
		return src.Midpoint - src.Peak + 2*src.Peak*step/9
	default: // sine
		return src.Midpoint + src.Peak*math.Sin(2*math.Pi*frac)
	}
}

// encodeLevel packs a voltage into the 16-bit DAC scale.
func encodeLevel(v float64) uint16 {
	if v < 0 {
		v = 0
	}
	if v > voltageRail {
		v = voltageRail
	}
	return uint16(v / voltageRail * 0xFFFF)
}

// decodeFrame unpacks one streamed frame: 16-bit voltage then current
// words for channel A, then channel B.
func decodeFrame(b []byte) Frame {
	decodeV := func(raw uint16) float64 {
		return float64(raw) / 0xFFFF * voltageRail
	}
	decodeI := func(raw uint16) float64 {
		return (float64(raw)/0xFFFF - 0.5) * 2 * currentLimit
	}
	return Frame{
		A: Sample{
			Voltage: decodeV(binary.LittleEndian.Uint16(b[0:])),
			Current: decodeI(binary.LittleEndian.Uint16(b[2:])),
		},
		B: Sample{
			Voltage: decodeV(binary.LittleEndian.Uint16(b[4:])),
			Current: decodeI(binary.LittleEndian.Uint16(b[6:])),
		},
	}
}

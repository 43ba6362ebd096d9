package smu

import (
	"context"
	"time"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// DefaultSettle is how long the outputs stabilize before the capture
// stream starts.
const DefaultSettle = time.Second

// ChannelSetup programs one channel for a SourceSession: the
// operating mode and the constant level to source, volts in SVMI and
// amps in SIMV. The value is ignored in HiZ.
type ChannelSetup struct {
	Mode  ChannelMode `json:"mode"`
	Value float64     `json:"value"`
}

// SourceConfig describes a SourceSession.
type SourceConfig struct {
	SampleRate int           `json:"sample_rate"` // 0 picks the default
	QueueSize  int           `json:"queue_size"`  // 0 picks the default
	ChannelA   ChannelSetup  `json:"channel_a"`
	ChannelB   ChannelSetup  `json:"channel_b"`
	Settle     time.Duration `json:"settle"` // 0 picks DefaultSettle, negative skips
}

// SourceSession scopes the source-then-measure flow: on creation the
// board is acquired, both channels are programmed, the outputs settle
// and the capture stream starts. Close parks both channels back in
// high impedance and releases the board.
type SourceSession struct {
	dev *Device
}

// NewSourceSession acquires a board and brings it to a measuring
// state. The context bounds the settle wait.
func NewSourceSession(ctx context.Context, cfg SourceConfig) (*SourceSession, error) {
	dev, err := Open(cfg.SampleRate, cfg.QueueSize)
	if err != nil {
		return nil, err
	}

	setup := func(ch Channel, s ChannelSetup) error {
		if err := dev.SetMode(ch, s.Mode); err != nil {
			return err
		}
		if s.Mode == HiZ || s.Mode == HiZSplit {
			return nil
		}
		// stale queued output would leak into the first measurement
		if err := dev.FlushChannel(ch); err != nil {
			return err
		}
		return dev.SetConstant(ch, s.Value)
	}

	if err := setup(ChannelA, cfg.ChannelA); err != nil {
		dev.Close()
		return nil, err
	}
	if err := setup(ChannelB, cfg.ChannelB); err != nil {
		dev.Close()
		return nil, err
	}

	settle := cfg.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			dev.Close()
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout,
				"waiting for outputs to settle")
		}
	}

	if err := dev.StartCapture(0); err != nil {
		dev.Close()
		return nil, err
	}

	return &SourceSession{dev: dev}, nil
}

// Device exposes the underlying board for advanced use.
func (s *SourceSession) Device() *Device { return s.dev }

// Read returns n samples of one channel from the running stream.
func (s *SourceSession) Read(ch Channel, n int, timeout time.Duration) ([]Sample, error) {
	return s.dev.Read(ch, n, timeout)
}

// ReadAll returns n frames covering both channels.
func (s *SourceSession) ReadAll(n int, timeout time.Duration) ([]Frame, error) {
	return s.dev.ReadAll(n, timeout)
}

// MeanVoltage averages the voltage of n samples on one channel.
func (s *SourceSession) MeanVoltage(ch Channel, n int, timeout time.Duration) (float64, error) {
	samples, err := s.dev.Read(ch, n, timeout)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, apperrors.New(apperrors.ErrAcquisitionFailed, "no samples")
	}
	var sum float64
	for _, smp := range samples {
		sum += smp.Voltage
	}
	return sum / float64(len(samples)), nil
}

// MeanCurrent averages the current of n samples on one channel.
func (s *SourceSession) MeanCurrent(ch Channel, n int, timeout time.Duration) (float64, error) {
	samples, err := s.dev.Read(ch, n, timeout)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, apperrors.New(apperrors.ErrAcquisitionFailed, "no samples")
	}
	var sum float64
	for _, smp := range samples {
		sum += smp.Current
	}
	return sum / float64(len(samples)), nil
}

// Close parks both channels in high impedance, stops the stream and
// releases the board. A second Close fails with ErrNotAcquired.
func (s *SourceSession) Close() error {
	if err := s.dev.checkClosable(); err != nil {
		return err
	}
	s.dev.SetMode(ChannelA, HiZ)
	s.dev.SetMode(ChannelB, HiZ)
	s.dev.StopCapture()
	return s.dev.Close()
}

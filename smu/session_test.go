package smu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// sessions in tests skip the output settle delay
func fastConfig(a, b ChannelSetup) SourceConfig {
	return SourceConfig{
		ChannelA: a,
		ChannelB: b,
		Settle:   -1,
	}
}

func TestOpenAndClose(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)

	assert.NotEmpty(t, dev.Serial())
	assert.Equal(t, DefaultSampleRate, dev.SampleRate())

	require.NoError(t, dev.Close())
	err = dev.Close()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))

	err = dev.SetMode(ChannelA, SVMI)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

func TestSVMIVoltageReadBack(t *testing.T) {
	session, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: SVMI, Value: 2.5},
		ChannelSetup{Mode: HiZ},
	))
	require.NoError(t, err)
	defer session.Close()

	mean, err := session.MeanVoltage(ChannelA, 200, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-2)
}

func TestSIMVCurrentReadBack(t *testing.T) {
	session, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: HiZ},
		ChannelSetup{Mode: SIMV, Value: 0.001},
	))
	require.NoError(t, err)
	defer session.Close()

	mean, err := session.MeanCurrent(ChannelB, 200, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, mean, 1e-4)
}

func TestBothChannelsIndependent(t *testing.T) {
	session, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: SVMI, Value: 3.3},
		ChannelSetup{Mode: SVMI, Value: 1.8},
	))
	require.NoError(t, err)
	defer session.Close()

	frames, err := session.ReadAll(100, time.Second)
	require.NoError(t, err)
	require.Len(t, frames, 100)

	for _, f := range frames {
		assert.InDelta(t, 3.3, f.A.Voltage, 1e-2)
		assert.InDelta(t, 1.8, f.B.Voltage, 1e-2)
	}
}

func TestSourceValidation(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	// sourcing in HiZ is rejected
	err = dev.SetConstant(ChannelA, 1.0)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	require.NoError(t, dev.SetMode(ChannelA, SVMI))

	tests := []struct {
		name  string
		apply func() error
	}{
		{"voltage above rail", func() error { return dev.SetConstant(ChannelA, 5.5) }},
		{"negative voltage", func() error { return dev.SetConstant(ChannelA, -0.5) }},
		{"sine swings below zero", func() error { return dev.SetSine(ChannelA, 0.5, 1.0, 100, 0) }},
		{"sine swings above rail", func() error { return dev.SetSine(ChannelA, 4.5, 1.0, 100, 0) }},
		{"square duty out of range", func() error { return dev.SetSquare(ChannelA, 2.5, 1, 100, 0, 1.5) }},
		{"bad channel", func() error { return dev.SetConstant(Channel(2), 1.0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.apply())
		})
	}

	// current limits apply in SIMV
	require.NoError(t, dev.SetMode(ChannelA, SIMV))
	err = dev.SetConstant(ChannelA, 0.5)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
	require.NoError(t, dev.SetConstant(ChannelA, 0.1))
}

func TestWaveformSourcesAccepted(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))

	assert.NoError(t, dev.SetSine(ChannelA, 2.5, 1, 100, 0))
	assert.NoError(t, dev.SetSquare(ChannelA, 2.5, 1, 100, 0, 0.3))
	assert.NoError(t, dev.SetTriangle(ChannelA, 2.5, 1, 100, 0))
	assert.NoError(t, dev.SetSawtooth(ChannelA, 2.5, 1, 100, 0))
	assert.NoError(t, dev.SetStairstep(ChannelA, 2.5, 1, 100, 0))
}

func TestReadRequiresCapture(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.SetConstant(ChannelA, 1.0))

	_, err = dev.Read(ChannelA, 10, time.Second)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	// GetSamples runs a self-contained capture instead
	samples, err := dev.GetSamples(ChannelA, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 10)
}

func TestCaptureControl(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	assert.False(t, dev.CaptureRunning())
	require.NoError(t, dev.StartCapture(0))
	assert.True(t, dev.CaptureRunning())
	require.NoError(t, dev.StopCapture())
	assert.False(t, dev.CaptureRunning())
}

func TestSplitModes(t *testing.T) {
	session, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: SVMISplit, Value: 2.0},
		ChannelSetup{Mode: HiZSplit},
	))
	require.NoError(t, err)
	defer session.Close()

	mode, err := session.Device().Mode(ChannelA)
	require.NoError(t, err)
	assert.True(t, mode.SourcesVoltage())

	mean, err := session.MeanVoltage(ChannelA, 100, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean, 1e-2)
}

func TestSourceSessionDoubleClose(t *testing.T) {
	session, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: SVMI, Value: 1.0},
		ChannelSetup{Mode: HiZ},
	))
	require.NoError(t, err)

	require.NoError(t, session.Close())
	err = session.Close()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))

	_, err = session.Read(ChannelA, 10, time.Second)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

func TestSourceSessionRejectsBadSetup(t *testing.T) {
	_, err := NewSourceSession(context.Background(), fastConfig(
		ChannelSetup{Mode: SVMI, Value: 9.0},
		ChannelSetup{Mode: HiZ},
	))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestLEDsAndOvercurrent(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetLEDs(0x03))

	tripped, err := dev.Overcurrent()
	require.NoError(t, err)
	assert.False(t, tripped)
}

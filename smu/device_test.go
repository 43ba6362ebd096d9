package smu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func TestWriteCyclicBufferPlaysBack(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.Write(ChannelA, []float64{1.0, 2.0}, true))

	samples, err := dev.GetSamples(ChannelA, 4)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.InDelta(t, 1.0, samples[0].Voltage, 1e-2)
	assert.InDelta(t, 2.0, samples[1].Voltage, 1e-2)
	assert.InDelta(t, 1.0, samples[2].Voltage, 1e-2)
	assert.InDelta(t, 2.0, samples[3].Voltage, 1e-2)
}

func TestWriteOneShotBufferHoldsLastValue(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.Write(ChannelA, []float64{1.0, 2.0, 3.0}, false))

	samples, err := dev.GetSamples(ChannelA, 5)
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.InDelta(t, 1.0, samples[0].Voltage, 1e-2)
	assert.InDelta(t, 3.0, samples[2].Voltage, 1e-2)
	assert.InDelta(t, 3.0, samples[4].Voltage, 1e-2)
}

func TestFlushRestoresProgrammedSource(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.SetConstant(ChannelA, 2.0))
	require.NoError(t, dev.Write(ChannelA, []float64{0.5}, true))

	samples, err := dev.GetSamples(ChannelA, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, samples[0].Voltage, 1e-2)

	require.NoError(t, dev.FlushChannel(ChannelA))

	samples, err = dev.GetSamples(ChannelA, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, samples[0].Voltage, 1e-2)
}

func TestWriteValidation(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	// a floating channel has nothing to drive
	err = dev.Write(ChannelA, []float64{1.0}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	require.NoError(t, dev.SetMode(ChannelA, SVMI))

	err = dev.Write(ChannelA, nil, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	err = dev.Write(ChannelA, []float64{1.0, 7.5}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	err = dev.Write(Channel(5), []float64{1.0}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestSetSampleRate(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetSampleRate(50000))
	assert.Equal(t, 50000, dev.SampleRate())

	err = dev.SetSampleRate(0)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	require.NoError(t, dev.StartCapture(0))
	err = dev.SetSampleRate(10000)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
	assert.Equal(t, 50000, dev.SampleRate())
}

func TestContinuousAndCancelled(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	assert.False(t, dev.Continuous())
	assert.False(t, dev.Cancelled())

	require.NoError(t, dev.StartCapture(0))
	assert.True(t, dev.Continuous())
	assert.False(t, dev.Cancelled())

	require.NoError(t, dev.StopCapture())
	assert.False(t, dev.Continuous())
	assert.True(t, dev.Cancelled())

	require.NoError(t, dev.StartCapture(100))
	assert.False(t, dev.Continuous())
	assert.False(t, dev.Cancelled())
}

func TestSignalInfo(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	info, err := dev.SignalInfo(ChannelA)
	require.NoError(t, err)
	assert.Equal(t, "constant", info.Shape)

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.SetSine(ChannelA, 2.5, 1.0, 100, 0))

	info, err = dev.SignalInfo(ChannelA)
	require.NoError(t, err)
	assert.Equal(t, "sine", info.Shape)
	assert.Equal(t, 2.5, info.Midpoint)
	assert.Equal(t, 1.0, info.Peak)
	assert.Equal(t, 100.0, info.Period)
	assert.False(t, info.Buffered)

	require.NoError(t, dev.Write(ChannelA, []float64{1.0, 2.0}, true))
	info, err = dev.SignalInfo(ChannelA)
	require.NoError(t, err)
	assert.True(t, info.Buffered)
	assert.True(t, info.Cyclic)

	require.NoError(t, dev.Flush())
	info, err = dev.SignalInfo(ChannelA)
	require.NoError(t, err)
	assert.False(t, info.Buffered)

	_, err = dev.SignalInfo(Channel(3))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestReadAfterCancelFails(t *testing.T) {
	dev, err := Open(0, 0)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.SetMode(ChannelA, SVMI))
	require.NoError(t, dev.SetConstant(ChannelA, 1.0))
	require.NoError(t, dev.StartCapture(0))
	require.NoError(t, dev.StopCapture())

	_, err = dev.Read(ChannelA, 10, 100*time.Millisecond)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))
}

package waveforms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func TestRecordingDrainsFIFO(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.PlaySignal(WaveGen1, SignalConfig{
		Signal: SignalDC, Offset: 1.5,
	}))

	require.NoError(t, dev.StartRecording(RecordingConfig{
		SampleRate:   1e6,
		BufferSize:   1024,
		Range:        5,
		RecordLength: 0.002,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	samples, status, err := dev.FillRecorded(ctx, Input1, 2000)
	require.NoError(t, err)
	require.Len(t, samples, 2000)
	assert.Zero(t, status.Lost)
	assert.Zero(t, status.Corrupt)
	for _, v := range samples {
		assert.InDelta(t, 1.5, v, 1e-2)
	}
}

func TestReadRecordedBeforeStartFails(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	_, _, err = dev.ReadRecorded(Input1)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	_, err = dev.RecordStatus()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	ctx := context.Background()
	_, _, err = dev.FillRecorded(ctx, Input1, 100)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	// a completed single acquisition is not a record FIFO either
	_, err = dev.SingleAcquisition(ctx, Input1, RecordingConfig{
		SampleRate: 1e6, BufferSize: 64, Range: 5,
	})
	require.NoError(t, err)
	_, _, err = dev.ReadRecorded(Input1)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))
}

func TestRecordingNeedsRecordLength(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.StartRecording(RecordingConfig{
		SampleRate: 1e6, BufferSize: 1024, Range: 5,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestCustomSignalPlaysBuffer(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	data := make([]float64, 16)
	for i := range data {
		data[i] = 1.0
	}
	require.NoError(t, dev.PlaySignal(WaveGen1, SignalConfig{
		Signal:    SignalCustom,
		Frequency: 1000,
		Amplitude: 2.0,
		Data:      data,
	}))

	ctx := context.Background()
	samples, err := dev.SingleAcquisition(ctx, Input1, RecordingConfig{
		SampleRate: 1e6, BufferSize: 256, Range: 5,
	})
	require.NoError(t, err)
	for _, v := range samples {
		assert.InDelta(t, 2.0, v, 1e-2)
	}
}

func TestCustomSignalRequiresBuffer(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.PlaySignal(WaveGen1, SignalConfig{
		Signal:    SignalCustom,
		Frequency: 1000,
		Amplitude: 1.0,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	err = dev.PlaySignal(WaveGen1, SignalConfig{
		Signal:    SignalPlay,
		Frequency: 1000,
		Amplitude: 1.0,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestBurstOptionsValidation(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.PlaySignal(WaveGen1, SignalConfig{
		Signal: SignalSine, Frequency: 1000, Amplitude: 1, RunSeconds: -1,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	err = dev.PlaySignal(WaveGen1, SignalConfig{
		Signal: SignalSine, Frequency: 1000, Amplitude: 1, Repeat: -2,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	require.NoError(t, dev.PlaySignal(WaveGen1, SignalConfig{
		Signal:     SignalSine,
		Frequency:  1000,
		Amplitude:  1,
		RunSeconds: 0.01,
		Repeat:     3,
		Idle:       IdleOffset,
	}))
}

func TestChannelEnableDisable(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.PlaySignal(WaveGen1, SignalConfig{
		Signal: SignalDC, Offset: 2.0,
	}))

	assert.True(t, dev.ChannelEnabled(Input1))
	require.NoError(t, dev.DisableChannel(Input1))
	assert.False(t, dev.ChannelEnabled(Input1))

	ctx := context.Background()
	cfg := RecordingConfig{SampleRate: 1e6, BufferSize: 64, Range: 5}
	samples, err := dev.SingleAcquisition(ctx, Input1, cfg)
	require.NoError(t, err)
	for _, v := range samples {
		assert.Zero(t, v)
	}

	require.NoError(t, dev.EnableChannel(Input1))
	samples, err = dev.SingleAcquisition(ctx, Input1, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, samples[0], 1e-2)
}

func TestDeviceIntrospection(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)

	bits, err := dev.ADCBits()
	require.NoError(t, err)
	assert.Equal(t, 14, bits)

	info, err := dev.Info()
	require.NoError(t, err)
	assert.Equal(t, 2, info.AnalogInChannels)
	assert.Equal(t, 2, info.AnalogOutChannels)
	assert.Equal(t, 16, info.DigitalIOChannels)
	assert.Equal(t, 8192, info.AnalogInBufferSize)

	require.NoError(t, dev.Close())
	_, err = dev.ADCBits()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

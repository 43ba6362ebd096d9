package waveforms

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEnumerateDevices(t *testing.T) {
	devices, err := Enumerate()
	require.NoError(t, err)
	require.NotEmpty(t, devices)
	assert.NotEmpty(t, devices[0].SerialNumber)
}

func TestScopeWaveGenLoopback(t *testing.T) {
	session, err := NewScopeWaveGenSession(-1, -1)
	require.NoError(t, err)
	defer session.Close()

	signal := SignalConfig{
		Signal:    SignalSine,
		Frequency: 1000,
		Amplitude: 2.0,
		Offset:    0,
	}
	require.NoError(t, session.Play(WaveGen1, signal))

	samples, err := session.Acquire(testContext(t), Input1, RecordingConfig{
		SampleRate: 1e6,
		BufferSize: 8192,
		Range:      5,
	})
	require.NoError(t, err)
	require.Len(t, samples, 8192)

	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	assert.InDelta(t, signal.Amplitude, peak, 5e-2)
}

func TestSessionDoubleCloseFailsNotAcquired(t *testing.T) {
	session, err := NewScopeWaveGenSession(-1, -1)
	require.NoError(t, err)

	require.NoError(t, session.Close())
	err = session.Close()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))

	// a third close reports the same condition, it never panics
	err = session.Close()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

func TestSessionRejectsUseAfterClose(t *testing.T) {
	session, err := NewScopeWaveGenSession(-1, -1)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	err = session.Play(WaveGen1, SignalConfig{Signal: SignalSine, Frequency: 100, Amplitude: 1})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))

	_, err = session.Acquire(testContext(t), Input1, RecordingConfig{
		SampleRate: 1e6, BufferSize: 16, Range: 5,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

func TestRecordBeforeConfigureFails(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	_, err = dev.Record(testContext(t), Input1, 128)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	// configured but never armed is still not readable
	require.NoError(t, dev.ConfigureScope(RecordingConfig{
		SampleRate: 1e6, BufferSize: 128, Range: 5,
	}))
	_, err = dev.Record(testContext(t), Input1, 128)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))
}

func TestStartScopeBeforeConfigureFails(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.StartScope()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))
}

func TestSignalValidation(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	tests := []struct {
		name string
		out  AnalogOutput
		cfg  SignalConfig
	}{
		{
			name: "bad channel",
			out:  AnalogOutput(7),
			cfg:  SignalConfig{Signal: SignalSine, Frequency: 100, Amplitude: 1},
		},
		{
			name: "zero frequency",
			out:  WaveGen1,
			cfg:  SignalConfig{Signal: SignalSine, Frequency: 0, Amplitude: 1},
		},
		{
			name: "negative amplitude",
			out:  WaveGen1,
			cfg:  SignalConfig{Signal: SignalSine, Frequency: 100, Amplitude: -1},
		},
		{
			name: "peak above rail",
			out:  WaveGen1,
			cfg:  SignalConfig{Signal: SignalSine, Frequency: 100, Amplitude: 4, Offset: 3},
		},
		{
			name: "symmetry out of range",
			out:  WaveGen1,
			cfg:  SignalConfig{Signal: SignalSquare, Frequency: 100, Amplitude: 1, Symmetry: 150},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dev.PlaySignal(tt.out, tt.cfg)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam), "got %v", err)
			// rejected configurations never start the channel
			assert.False(t, dev.SignalRunning(tt.out))
		})
	}
}

func TestRecordingValidation(t *testing.T) {
	dev, err := Open(-1, -1)
	require.NoError(t, err)
	defer dev.Close()

	tests := []struct {
		name string
		cfg  RecordingConfig
	}{
		{"zero sample rate", RecordingConfig{BufferSize: 128, Range: 5}},
		{"zero buffer", RecordingConfig{SampleRate: 1e6, Range: 5}},
		{"zero range", RecordingConfig{SampleRate: 1e6, BufferSize: 128}},
		{
			"record mode without length",
			RecordingConfig{SampleRate: 1e6, BufferSize: 128, Range: 5, Mode: AcquisitionRecord},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dev.ConfigureScope(tt.cfg)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam), "got %v", err)
		})
	}
}

func TestPowerSupplySession(t *testing.T) {
	session, err := NewPowerSupplySession(-1, -1, 3.3, -2.5)
	require.NoError(t, err)
	defer session.Close()

	st, err := session.Status()
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.InDelta(t, 3.3, st.PositiveVoltage, 1e-9)
	assert.InDelta(t, -2.5, st.NegativeVoltage, 1e-9)
}

func TestPowerSupplyClamping(t *testing.T) {
	session, err := NewPowerSupplySession(-1, -1, 7.0, -9.0)
	require.NoError(t, err)
	defer session.Close()

	st, err := session.Status()
	require.NoError(t, err)
	assert.InDelta(t, SupplyPositiveMax, st.PositiveVoltage, 1e-9)
	assert.InDelta(t, SupplyNegativeMin, st.NegativeVoltage, 1e-9)

	// requesting a positive value on the negative rail clamps to zero
	require.NoError(t, session.Set(2.0, 1.0))
	st, err = session.Status()
	require.NoError(t, err)
	assert.Zero(t, st.NegativeVoltage)
}

func TestPowerSupplySessionDoubleClose(t *testing.T) {
	session, err := NewPowerSupplySession(-1, -1, 3.3, -3.3)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	err = session.Close()
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))

	err = session.Set(1.0, -1.0)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAcquired))
}

func TestDigitalIOSession(t *testing.T) {
	session, err := NewDigitalIOSession(-1, -1, 0x00FF)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Write(0x1234))
	mask, err := session.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0034), mask)

	require.NoError(t, session.WritePin(DigitalPin(0), true))
	high, err := session.ReadPin(DigitalPin(0))
	require.NoError(t, err)
	assert.True(t, high)

	require.NoError(t, session.WritePin(DigitalPin(0), false))
	high, err = session.ReadPin(DigitalPin(0))
	require.NoError(t, err)
	assert.False(t, high)
}

func TestDigitalPinValidation(t *testing.T) {
	session, err := NewDigitalIOSession(-1, -1, 0xFFFF)
	require.NoError(t, err)
	defer session.Close()

	err = session.WritePin(DigitalPin(16), true)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	_, err = session.ReadPin(DigitalPin(-1))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestSessionIndependence(t *testing.T) {
	scope, err := NewScopeWaveGenSession(-1, -1)
	require.NoError(t, err)

	supplies, err := NewPowerSupplySession(-1, -1, 3.3, -3.3)
	require.NoError(t, err)
	defer supplies.Close()

	// closing one session leaves the other fully usable
	require.NoError(t, scope.Close())

	st, err := supplies.Status()
	require.NoError(t, err)
	assert.True(t, st.Enabled)
}

func TestParseOutputSignal(t *testing.T) {
	sig, ok := ParseOutputSignal("sine")
	assert.True(t, ok)
	assert.Equal(t, SignalSine, sig)

	_, ok = ParseOutputSignal("sawtooth")
	assert.False(t, ok)
}

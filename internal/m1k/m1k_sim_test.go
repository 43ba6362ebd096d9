//go:build !m1khw
// +build !m1khw

package m1k

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func TestSessionLifecycle(t *testing.T) {
	session, err := NewSession(100000)
	require.NoError(t, err)

	require.Len(t, session.Devices(), 1)
	assert.Equal(t, 100000, session.SampleRate())

	require.NoError(t, session.Configure(50000))
	assert.Equal(t, 50000, session.SampleRate())

	require.NoError(t, session.Start(0))
	assert.True(t, session.Running())

	require.NoError(t, session.Cancel())
	assert.False(t, session.Running())

	require.NoError(t, session.End())
	assert.Error(t, session.Start(0))
	assert.Error(t, session.End())
}

func TestSVMIReadBack(t *testing.T) {
	session, err := NewSession(100000)
	require.NoError(t, err)
	defer session.End()

	dev := session.Devices()[0]
	require.NoError(t, dev.SetMode(0, ModeSVMI))
	require.NoError(t, dev.SetSource(0, Source{Shape: ShapeConstant, Value: 2.5}))
	require.NoError(t, session.Start(0))

	frames, err := dev.Read(100, time.Second)
	require.NoError(t, err)
	require.Len(t, frames, 100)

	for _, f := range frames {
		assert.InDelta(t, 2.5, f.A.Voltage, 1e-2)
		// channel B stays in HiZ and floats near ground
		assert.InDelta(t, 0, f.B.Voltage, 1e-2)
	}
}

func TestSIMVReadBack(t *testing.T) {
	session, err := NewSession(100000)
	require.NoError(t, err)
	defer session.End()

	dev := session.Devices()[0]
	require.NoError(t, dev.SetMode(1, ModeSIMV))
	require.NoError(t, dev.SetSource(1, Source{Shape: ShapeConstant, Value: 0.002}))

	frames, err := dev.GetSamples(50)
	require.NoError(t, err)
	require.Len(t, frames, 50)
	for _, f := range frames {
		assert.InDelta(t, 0.002, f.B.Current, 1e-4)
	}
}

func TestReadRequiresRunningStream(t *testing.T) {
	session, err := NewSession(100000)
	require.NoError(t, err)
	defer session.End()

	dev := session.Devices()[0]
	_, err = dev.Read(10, time.Second)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConfigured))

	// GetSamples runs its own capture and does not need the stream
	frames, err := dev.GetSamples(10)
	require.NoError(t, err)
	assert.Len(t, frames, 10)
}

func TestModeHelpers(t *testing.T) {
	assert.True(t, ModeSVMISplit.Split())
	assert.False(t, ModeSVMI.Split())
	assert.Equal(t, ModeSVMI, ModeSVMISplit.Base())
	assert.Equal(t, ModeHiZ, ModeHiZ.Base())
}

func TestSetLEDs(t *testing.T) {
	session, err := NewSession(100000)
	require.NoError(t, err)
	defer session.End()

	dev := session.Devices()[0]
	require.NoError(t, dev.SetLEDs(0x05))
	err = dev.SetLEDs(0x08)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestSourceLevelShapes(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		idx  uint64
		want float64
	}{
		{"constant", Source{Shape: ShapeConstant, Value: 1.5}, 42, 1.5},
		{"sine start", Source{Shape: ShapeSine, Midpoint: 2.5, Peak: 1, Period: 100}, 0, 2.5},
		{"sine quarter", Source{Shape: ShapeSine, Midpoint: 2.5, Peak: 1, Period: 100}, 25, 3.5},
		{"square high", Source{Shape: ShapeSquare, Midpoint: 2.5, Peak: 1, Period: 100}, 10, 3.5},
		{"square low", Source{Shape: ShapeSquare, Midpoint: 2.5, Peak: 1, Period: 100}, 90, 1.5},
		{"sawtooth start", Source{Shape: ShapeSawtooth, Midpoint: 2.5, Peak: 1, Period: 100}, 0, 1.5},
		{"triangle peak", Source{Shape: ShapeTriangle, Midpoint: 2.5, Peak: 1, Period: 100}, 50, 3.5},
		{"stairstep last", Source{Shape: ShapeStairstep, Midpoint: 2.5, Peak: 1, Period: 100}, 99, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sourceLevel(tt.src, tt.idx), 1e-9)
		})
	}
}

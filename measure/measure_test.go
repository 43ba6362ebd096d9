package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amplitude, offset, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + amplitude*math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func TestDCAverage(t *testing.T) {
	assert.Zero(t, DCAverage(nil))
	assert.InDelta(t, 2.0, DCAverage([]float64{1, 2, 3}), 1e-12)

	// a whole number of sine periods averages to the offset
	samples := sine(1000, 1.0, 1.5, 100000, 1000)
	assert.InDelta(t, 1.5, DCAverage(samples), 1e-9)
}

func TestRMSAndACRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, ACRMS(nil))

	// sine RMS is amplitude over sqrt(2), regardless of offset for AC
	samples := sine(1000, 2.0, 0.7, 100000, 1000)
	assert.InDelta(t, 2.0/math.Sqrt2, ACRMS(samples), 1e-6)

	dc := []float64{3, 3, 3, 3}
	assert.InDelta(t, 3.0, RMS(dc), 1e-12)
	assert.Zero(t, ACRMS(dc))
}

func TestPeakToPeak(t *testing.T) {
	assert.Zero(t, PeakToPeak(nil))

	samples := sine(1000, 1.25, 0, 100000, 1000)
	assert.InDelta(t, 2.5, PeakToPeak(samples), 1e-3)
}

func TestFFTFindsTone(t *testing.T) {
	const (
		sampleRate = 100000.0
		tone       = 5000.0
	)
	samples := sine(tone, 1.0, 0, sampleRate, 4096)

	for _, win := range []FFTWindow{
		WindowRectangular, WindowHann, WindowHamming, WindowBlackman, WindowFlatTop,
	} {
		spectrum, err := FFT(samples, sampleRate, win)
		require.NoError(t, err)

		freq, mag := spectrum.PeakFrequency()
		assert.InDelta(t, tone, freq, spectrum.Resolution, "window %d", win)
		assert.Greater(t, mag, 0.0)
	}
}

func TestFFTRectangularAmplitude(t *testing.T) {
	const sampleRate = 8192.0
	// bin-aligned tone so no spectral leakage
	samples := sine(512, 1.5, 0, sampleRate, 8192)

	spectrum, err := FFT(samples, sampleRate, WindowRectangular)
	require.NoError(t, err)

	_, mag := spectrum.PeakFrequency()
	assert.InDelta(t, 1.5, mag, 1e-6)
}

func TestFFTValidation(t *testing.T) {
	_, err := FFT([]float64{1}, 100, WindowHann)
	assert.Error(t, err)

	_, err = FFT([]float64{1, 2, 3, 4}, 0, WindowHann)
	assert.Error(t, err)
}

func TestDominantFrequency(t *testing.T) {
	samples := sine(1000, 1.0, 0.5, 100000, 8192)
	freq, err := DominantFrequency(samples, 100000)
	require.NoError(t, err)
	assert.InDelta(t, 1000, freq, 100000.0/8192.0)
}

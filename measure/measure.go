// Package measure post-processes captured samples: DC and RMS
// statistics and FFT-based spectrum analysis.
package measure

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// DCAverage returns the mean of the samples.
func DCAverage(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// RMS returns the root mean square of the samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ACRMS returns the RMS of the samples with the DC component removed.
func ACRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := DCAverage(samples)
	var sum float64
	for _, s := range samples {
		d := s - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PeakToPeak returns the span between the highest and lowest sample.
func PeakToPeak(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	min, max := samples[0], samples[0]
	for _, s := range samples[1:] {
		min = math.Min(min, s)
		max = math.Max(max, s)
	}
	return max - min
}

// FFTWindow selects the window applied before the transform.
type FFTWindow int

const (
	WindowRectangular FFTWindow = iota
	WindowHann
	WindowHamming
	WindowBlackman
	WindowFlatTop
)

func (w FFTWindow) apply(samples []float64) []float64 {
	switch w {
	case WindowHann:
		return window.Hann(samples)
	case WindowHamming:
		return window.Hamming(samples)
	case WindowBlackman:
		return window.Blackman(samples)
	case WindowFlatTop:
		return window.FlatTop(samples)
	default:
		return samples
	}
}

// Spectrum is a single-sided magnitude spectrum.
type Spectrum struct {
	// Frequencies holds the bin centers in Hz.
	Frequencies []float64 `json:"frequencies"`
	// Magnitudes holds the per-bin amplitude in the input unit.
	Magnitudes []float64 `json:"magnitudes"`
	// Resolution is the bin width in Hz.
	Resolution float64 `json:"resolution"`
}

// FFT computes the single-sided magnitude spectrum of the samples.
// The input is copied, windowed and transformed; sampleRate is in Hz.
func FFT(samples []float64, sampleRate float64, win FFTWindow) (Spectrum, error) {
	if len(samples) < 2 {
		return Spectrum{}, apperrors.Newf(apperrors.ErrInvalidParam,
			"need at least 2 samples, got %d", len(samples))
	}
	if sampleRate <= 0 {
		return Spectrum{}, apperrors.Newf(apperrors.ErrInvalidParam,
			"sample rate %v Hz must be positive", sampleRate)
	}

	buf := make([]float64, len(samples))
	copy(buf, samples)
	win.apply(buf)

	fft := fourier.NewFFT(len(buf))
	coeffs := fft.Coefficients(nil, buf)

	n := float64(len(buf))
	bins := len(coeffs)
	spectrum := Spectrum{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
		Resolution:  sampleRate / n,
	}
	for i, c := range coeffs {
		spectrum.Frequencies[i] = fft.Freq(i) * sampleRate
		mag := cmplx.Abs(c) / n
		if i > 0 && i < bins-1 {
			// fold the negative frequencies into the single side
			mag *= 2
		}
		spectrum.Magnitudes[i] = mag
	}

	return spectrum, nil
}

// PeakFrequency returns the strongest non-DC bin.
func (s Spectrum) PeakFrequency() (frequency, magnitude float64) {
	for i := 1; i < len(s.Magnitudes); i++ {
		if s.Magnitudes[i] > magnitude {
			magnitude = s.Magnitudes[i]
			frequency = s.Frequencies[i]
		}
	}
	return frequency, magnitude
}

// DominantFrequency estimates the main tone of a capture.
func DominantFrequency(samples []float64, sampleRate float64) (float64, error) {
	spectrum, err := FFT(samples, sampleRate, WindowHann)
	if err != nil {
		return 0, err
	}
	freq, _ := spectrum.PeakFrequency()
	return freq, nil
}

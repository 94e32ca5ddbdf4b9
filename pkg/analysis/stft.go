package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// STFTConfig describes parameters for STFT computation.
type STFTConfig struct {
	FFTSize    int // FFT window size (e.g., 1024, 2048, 4096)
	HopSize    int // Hop between frames (e.g., 441 for 20ms at 22050Hz)
	WindowSize int // Analysis window size (usually same as FFTSize)
}

// STFT computes a Short-Time Fourier Transform.
// Returns [frames][bins] magnitude spectrum.
func STFT(samples []float64, cfg STFTConfig) [][]float64 {
	window := hannWindow(cfg.WindowSize)
	fft := fourier.NewFFT(cfg.FFTSize)

	numFrames := (len(samples) - cfg.WindowSize) / cfg.HopSize
	if numFrames <= 0 {
		return nil
	}

	// Number of frequency bins (RFFT output)
	numBins := cfg.FFTSize/2 + 1

	result := make([][]float64, numFrames)
	frame := make([]float64, cfg.FFTSize)

	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize

		// Clear frame and apply window
		for j := range frame {
			frame[j] = 0
		}
		for j := 0; j < cfg.WindowSize && start+j < len(samples); j++ {
			frame[j] = samples[start+j] * window[j]
		}

		coeffs := fft.Coefficients(nil, frame)

		// Normalize: 2/N for one-sided spectrum (except DC and Nyquist)
		scale := 2.0 / float64(cfg.FFTSize)
		result[i] = make([]float64, numBins)
		for j := 0; j < numBins; j++ {
			re := real(coeffs[j])
			im := imag(coeffs[j])
			s := scale
			if j == 0 || j == numBins-1 {
				s = 1.0 / float64(cfg.FFTSize) // DC and Nyquist aren't doubled
			}
			result[i][j] = math.Sqrt(re*re+im*im) * s
		}
	}

	return result
}

// hannWindow generates a Hann window of given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

// Beat detection: an onset-strength envelope followed by autocorrelation
// tempo search and a dynamic-programming beat tracking pass.
package analysis

import (
	"math"
)

// Analysis frame geometry at ReducedSampleRate: 1024-sample windows with a
// 441-sample hop, roughly 50 envelope values per second.
const (
	beatFFTSize = 1024
	beatHopSize = 441
)

// Plausible tempo search range in BPM.
const (
	minTempo = 50.0
	maxTempo = 220.0
)

// beatTightness weighs global tempo regularity against local onset fit in the
// tracking pass. Higher values keep beats closer to the tempo grid.
const beatTightness = 100.0

// Beats is the result of tempo estimation. A zero value means the signal was
// silent, too short, or had no reliable periodicity; that is an unanalyzable
// signal, not an error.
type Beats struct {
	BPM    float64   // 0 when no reliable tempo was found
	Onsets []float64 // beat timestamps in seconds, ascending
}

// EstimateBeats estimates the global tempo and beat timestamps of a mono
// signal. Input at any rate is accepted; internally the signal is analyzed at
// ReducedSampleRate.
func EstimateBeats(samples []float64, sampleRate int) Beats {
	if sampleRate <= 0 || len(samples) == 0 {
		return Beats{}
	}
	if sampleRate != ReducedSampleRate {
		samples = Resample(samples, sampleRate, ReducedSampleRate)
		sampleRate = ReducedSampleRate
	}

	env := OnsetEnvelope(samples)
	if len(env) == 0 {
		// Shorter than one analysis frame.
		return Beats{}
	}

	peak := 0.0
	for _, v := range env {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		// Silent input produces a flat envelope.
		return Beats{}
	}
	for i := range env {
		env[i] /= peak
	}

	hopSecs := float64(beatHopSize) / float64(sampleRate)
	period := estimatePeriod(env, hopSecs)
	if period <= 0 {
		return Beats{}
	}

	frames := trackBeats(env, period)
	onsets := make([]float64, len(frames))
	for i, f := range frames {
		// Center of the analysis window.
		onsets[i] = (float64(f)*float64(beatHopSize) + float64(beatFFTSize)/2) / float64(sampleRate)
	}

	bpm := 60.0 / (period * hopSecs)
	return Beats{
		BPM:    math.Round(bpm*100) / 100,
		Onsets: onsets,
	}
}

// OnsetEnvelope computes one onset-strength value per analysis frame: the
// half-wave rectified difference of successive spectral energies (energy
// flux). Returns nil when the signal is shorter than one frame.
func OnsetEnvelope(samples []float64) []float64 {
	spec := STFT(samples, STFTConfig{
		FFTSize:    beatFFTSize,
		HopSize:    beatHopSize,
		WindowSize: beatFFTSize,
	})
	if len(spec) == 0 {
		return nil
	}

	energies := make([]float64, len(spec))
	for i, frame := range spec {
		e := 0.0
		for _, m := range frame {
			e += m * m
		}
		energies[i] = e
	}

	env := make([]float64, len(energies))
	env[0] = energies[0]
	for i := 1; i < len(energies); i++ {
		if d := energies[i] - energies[i-1]; d > 0 {
			env[i] = d
		}
	}
	return env
}

// tempoStep is the BPM resolution of the tempo search grid.
const tempoStep = 0.5

// harmonicWeight is the correlation share at which an integer division of the
// winning lag is preferred over the lag itself.
const harmonicWeight = 0.4

// estimatePeriod finds the dominant beat period of the envelope, in frames.
// Candidate periods come from a fine BPM grid and are scored at fractional
// lags, so tempos whose period is not a whole number of hops keep their
// correlation mass. Returns 0 when the envelope is too short to cover a
// single period.
func estimatePeriod(env []float64, hopSecs float64) float64 {
	minLag := 60.0 / (maxTempo * hopSecs)
	maxLag := 60.0 / (minTempo * hopSecs)
	if limit := float64(len(env) - 2); maxLag > limit {
		maxLag = limit
	}
	if maxLag < minLag {
		return 0
	}

	bestLag, bestCorr := 0.0, 0.0
	for bpm := minTempo; bpm <= maxTempo; bpm += tempoStep {
		lag := 60.0 / (bpm * hopSecs)
		if lag < minLag || lag > maxLag {
			continue
		}
		if c := autocorrAt(env, lag); c > bestCorr {
			bestCorr = c
			bestLag = lag
		}
	}
	if bestCorr == 0 {
		return 0
	}

	// A slow tempo whose multi-beat lag lands exactly on the frame grid can
	// outscore the true tempo, pulling the estimate to a subharmonic. Prefer
	// an integer division of the winning lag when it still carries a
	// comparable share of the correlation mass, fastest division first.
	for _, div := range []float64{4, 3, 2} {
		lag := bestLag / div
		if lag < minLag {
			continue
		}
		if autocorrAt(env, lag) >= harmonicWeight*bestCorr {
			return lag
		}
	}
	return bestLag
}

// autocorrAt evaluates the envelope autocorrelation at a fractional lag,
// linearly interpolating between frames.
func autocorrAt(env []float64, lag float64) float64 {
	base := int(lag)
	frac := lag - float64(base)
	sum := 0.0
	for i := 0; i+base+1 < len(env); i++ {
		v := env[i+base]*(1-frac) + env[i+base+1]*frac
		sum += env[i] * v
	}
	return sum
}

// trackBeats places beats on the onset envelope with a dynamic-programming
// pass: each frame scores its local onset strength plus the best predecessor
// score, penalized by how far the implied inter-beat interval strays from the
// tempo period. Ties go to the candidate closest to the tempo grid.
func trackBeats(env []float64, period float64) []int {
	n := len(env)
	score := make([]float64, n)
	backlink := make([]int, n)

	lo := int(math.Round(period / 2))
	hi := int(math.Round(period * 2))
	if lo < 1 {
		lo = 1
	}

	for i := range env {
		backlink[i] = -1
		best := 0.0
		bestGap := math.MaxFloat64
		for gap := lo; gap <= hi && i-gap >= 0; gap++ {
			j := i - gap
			dev := math.Log(float64(gap) / period)
			cand := score[j] - beatTightness*dev*dev
			gapDev := math.Abs(float64(gap) - period)
			if cand > best || (cand == best && backlink[i] >= 0 && gapDev < bestGap) {
				best = cand
				bestGap = gapDev
				backlink[i] = j
			}
		}
		score[i] = env[i] + best
	}

	// Start the backtrace at the best-scoring frame within the final period,
	// so trailing silence does not drop the last beat.
	tail := n - int(math.Round(period))
	if tail < 0 {
		tail = 0
	}
	end := tail
	for i := tail; i < n; i++ {
		if score[i] > score[end] {
			end = i
		}
	}

	var beats []int
	for i := end; i >= 0; i = backlink[i] {
		beats = append(beats, i)
		if backlink[i] < 0 {
			break
		}
	}

	// Reverse into ascending order.
	for l, r := 0, len(beats)-1; l < r; l, r = l+1, r-1 {
		beats[l], beats[r] = beats[r], beats[l]
	}

	// Drop leading beats the tracker placed on silence while warming up.
	for len(beats) > 0 && env[beats[0]] < 1e-6 {
		beats = beats[1:]
	}
	return beats
}

// Cue building: grouping beats into regions and rendering preview envelopes.
package analysis

import (
	"math"
	"sort"
)

// DefaultEnvelopePoints is the number of amplitude samples in a cue's
// preview envelope.
const DefaultEnvelopePoints = 100

// Interval is a half-open time range in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Cue is a non-overlapping region of a track with a fixed-length amplitude
// envelope for waveform preview.
type Cue struct {
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Waveform []float64 `json:"waveform"`
}

// GroupBeats partitions beats into consecutive groups of beatsPerCue and
// returns one interval per group; the last group may be shorter. Each group
// ends where the next group's first beat begins, the first interval starts at
// track start and the last ends at track duration, so the cues tile the
// analyzed range with no gaps.
func GroupBeats(beats []float64, beatsPerCue int, duration float64) []Interval {
	if len(beats) == 0 || duration <= 0 {
		return nil
	}
	if beatsPerCue < 1 {
		beatsPerCue = 1
	}

	numCues := (len(beats) + beatsPerCue - 1) / beatsPerCue
	intervals := make([]Interval, 0, numCues)
	start := 0.0
	for g := 0; g < numCues; g++ {
		end := duration
		if next := (g + 1) * beatsPerCue; next < len(beats) {
			end = beats[next]
		}
		if end > duration {
			end = duration
		}
		if end <= start {
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
		start = end
	}
	return intervals
}

// ValidateIntervals clamps caller-supplied intervals to [0, duration] and
// rejects any overlapping pair. Intervals that collapse to zero length after
// clamping are dropped. The result is sorted ascending by start time.
func ValidateIntervals(intervals []Interval, duration float64) ([]Interval, error) {
	type clamped struct {
		iv  Interval
		idx int
	}
	kept := make([]clamped, 0, len(intervals))
	for i, iv := range intervals {
		iv.Start = math.Max(0, iv.Start)
		iv.End = math.Min(iv.End, duration)
		if iv.End <= iv.Start {
			continue
		}
		kept = append(kept, clamped{iv: iv, idx: i})
	}

	sort.Slice(kept, func(a, b int) bool { return kept[a].iv.Start < kept[b].iv.Start })

	for i := 1; i < len(kept); i++ {
		prev, cur := kept[i-1], kept[i]
		if cur.iv.Start < prev.iv.End {
			return nil, &InvalidCueIntervalError{
				I: prev.idx, J: cur.idx,
				A: prev.iv, B: cur.iv,
			}
		}
	}

	out := make([]Interval, len(kept))
	for i, c := range kept {
		out[i] = c.iv
	}
	return out, nil
}

// RenderEnvelope splits the [start, end] sample range into n equal segments
// and returns the peak magnitude of each, normalized to [0, 1] against the
// cue's own peak so quiet cues stay visually legible.
func RenderEnvelope(samples []float64, sampleRate int, start, end float64, n int) []float64 {
	if n <= 0 || sampleRate <= 0 || end <= start {
		return nil
	}

	lo := int(start * float64(sampleRate))
	hi := int(end * float64(sampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(samples) {
		hi = len(samples)
	}
	if hi <= lo {
		return nil
	}

	env := make([]float64, n)
	span := hi - lo
	peak := 0.0
	for i := 0; i < n; i++ {
		segLo := lo + i*span/n
		segHi := lo + (i+1)*span/n
		if segHi <= segLo {
			segHi = segLo + 1
		}
		if segHi > hi {
			segHi = hi
		}

		maxAbs := 0.0
		for j := segLo; j < segHi; j++ {
			if a := math.Abs(samples[j]); a > maxAbs {
				maxAbs = a
			}
		}
		env[i] = maxAbs
		if maxAbs > peak {
			peak = maxAbs
		}
	}

	if peak > 0 {
		for i := range env {
			env[i] /= peak
		}
	}
	return env
}

package analysis

import (
	"go.uber.org/zap"
)

// DefaultBeatsPerCue is how many beats an auto-generated cue spans.
const DefaultBeatsPerCue = 4

// Options control one analysis run.
type Options struct {
	// AutoCues groups detected beats into cues when no manual intervals are
	// supplied.
	AutoCues bool

	// BeatsPerCue is the auto-cue group size. Values below 1 fall back to
	// DefaultBeatsPerCue.
	BeatsPerCue int

	// ManualIntervals, when non-empty, override beat grouping entirely.
	ManualIntervals []Interval

	// EnvelopePoints is the cue envelope length. Values below 1 fall back to
	// DefaultEnvelopePoints.
	EnvelopePoints int
}

// Result is the transient outcome of one analysis run. It is only persisted
// when merged into a catalog record.
type Result struct {
	BPM      *float64 `json:"bpm"`
	Duration float64  `json:"duracion"`
	Cues     []Cue    `json:"cues"`
}

// Pipeline runs decode, beat estimation and cue construction as one unit. It
// is stateless and safe for concurrent use.
type Pipeline struct {
	log *zap.Logger
}

// NewPipeline creates a Pipeline logging through log. A nil logger disables
// logging.
func NewPipeline(log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{log: log}
}

// Analyze decodes path and estimates tempo, duration and cues.
//
// Cue envelopes need full-resolution samples, so the file is decoded at full
// fidelity only when cues were requested; BPM-only requests always decode
// mono at the reduced rate. Component errors propagate to the caller
// untranslated.
func (p *Pipeline) Analyze(path string, opts Options) (*Result, error) {
	wantCues := opts.AutoCues || len(opts.ManualIntervals) > 0

	buf, err := Decode(path, wantCues)
	if err != nil {
		return nil, err
	}

	mono := buf.Mono()
	duration := buf.Duration()
	beats := EstimateBeats(mono, buf.SampleRate)

	result := &Result{Duration: duration}
	if beats.BPM > 0 {
		bpm := beats.BPM
		result.BPM = &bpm
	}

	var intervals []Interval
	switch {
	case len(opts.ManualIntervals) > 0:
		intervals, err = ValidateIntervals(opts.ManualIntervals, duration)
		if err != nil {
			return nil, err
		}
	case opts.AutoCues:
		beatsPerCue := opts.BeatsPerCue
		if beatsPerCue < 1 {
			beatsPerCue = DefaultBeatsPerCue
		}
		intervals = GroupBeats(beats.Onsets, beatsPerCue, duration)
	}

	points := opts.EnvelopePoints
	if points < 1 {
		points = DefaultEnvelopePoints
	}
	for _, iv := range intervals {
		waveform := RenderEnvelope(mono, buf.SampleRate, iv.Start, iv.End, points)
		if waveform == nil {
			continue
		}
		result.Cues = append(result.Cues, Cue{
			Start:    iv.Start,
			End:      iv.End,
			Waveform: waveform,
		})
	}

	p.log.Debug("analyzed audio",
		zap.String("path", path),
		zap.Float64("duration", duration),
		zap.Float64("bpm", beats.BPM),
		zap.Int("beats", len(beats.Onsets)),
		zap.Int("cues", len(result.Cues)),
	)

	return result, nil
}

// Package library ties the analysis pipeline to the track catalog: new
// tracks get analyzed before they are persisted, and existing tracks can be
// re-analyzed in place.
package library

import (
	"go.uber.org/zap"

	"quantumlive/pkg/analysis"
	"quantumlive/pkg/catalog"
)

// CreateRequest describes a new track. RutaAudio is optional; when set, the
// file is analyzed and its bpm, duration and cues are merged into the record.
type CreateRequest struct {
	Titulo    string
	Artista   string
	RutaAudio string

	AutoCues    bool
	BeatsPerCue int
	Intervalos  []analysis.Interval

	Generos []string
	Fuentes map[string]string
	Notas   string

	// Caller-supplied values, used when no audio is analyzed.
	BPM  *float64
	Cues []analysis.Cue
}

// Library owns a catalog store and an analysis pipeline.
type Library struct {
	store    *catalog.Store
	pipeline *analysis.Pipeline
	log      *zap.Logger
}

// New creates a Library. A nil logger disables logging.
func New(store *catalog.Store, pipeline *analysis.Pipeline, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{store: store, pipeline: pipeline, log: log}
}

// Store exposes the underlying catalog for read operations.
func (l *Library) Store() *catalog.Store {
	return l.store
}

// CreateTrack persists a new track, analyzing its audio first when a path is
// given. Analysis happens before any store write, so a failed analysis
// leaves the catalog untouched.
func (l *Library) CreateTrack(req CreateRequest) (catalog.Track, error) {
	track := catalog.Track{
		Titulo:  req.Titulo,
		Artista: req.Artista,
		Generos: req.Generos,
		Fuentes: req.Fuentes,
		Notas:   req.Notas,
		BPM:     req.BPM,
		Cues:    req.Cues,
	}

	if req.RutaAudio != "" {
		result, err := l.pipeline.Analyze(req.RutaAudio, analysis.Options{
			AutoCues:        req.AutoCues,
			BeatsPerCue:     req.BeatsPerCue,
			ManualIntervals: req.Intervalos,
		})
		if err != nil {
			return catalog.Track{}, err
		}
		mergeResult(&track, result)
	}

	return l.store.Create(track)
}

// Reanalyze runs the pipeline on path and merges the result into an existing
// track.
func (l *Library) Reanalyze(id, path string, opts analysis.Options) (catalog.Track, error) {
	result, err := l.pipeline.Analyze(path, opts)
	if err != nil {
		return catalog.Track{}, err
	}

	// The new analysis replaces every derived field. An unanalyzable signal
	// clears the old tempo rather than leaving it next to fresh cues.
	patch := catalog.Patch{
		Duracion: &result.Duration,
		Cues:     &result.Cues,
	}
	if result.BPM != nil {
		patch.BPM = result.BPM
	} else {
		patch.ClearBPM = true
	}

	l.log.Debug("reanalyzed track", zap.String("id", id), zap.String("path", path))
	return l.store.Update(id, patch)
}

// mergeResult overwrites a track's analysis-derived fields.
func mergeResult(t *catalog.Track, r *analysis.Result) {
	t.BPM = r.BPM
	d := r.Duration
	t.Duracion = &d
	t.Cues = r.Cues
}

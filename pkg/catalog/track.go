// Package catalog provides the durable track catalog: a JSON snapshot on
// disk fronted by an in-memory id index.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"quantumlive/pkg/analysis"
)

// Error kinds surfaced by the catalog. Callers match them with errors.Is.
var (
	// ErrTrackNotFound means the id does not exist in the catalog.
	ErrTrackNotFound = errors.New("track not found")

	// ErrDuplicateID means a caller-supplied id collides with an existing
	// record.
	ErrDuplicateID = errors.New("duplicate track id")

	// ErrInvalidTrack means a record failed schema validation at the store
	// boundary.
	ErrInvalidTrack = errors.New("invalid track")

	// ErrStorageWrite means the atomic snapshot write failed. The on-disk
	// catalog is still the pre-write snapshot, so retrying is safe.
	ErrStorageWrite = errors.New("catalog write failed")
)

// Track is one catalog record. Field names on the wire follow the persisted
// format: titulo, artista, duracion, generos, notas, fuentes.
type Track struct {
	ID          string            `json:"id"`
	Titulo      string            `json:"titulo"`
	Artista     string            `json:"artista"`
	BPM         *float64          `json:"bpm,omitempty"`
	Duracion    *float64          `json:"duracion,omitempty"`
	Generos     []string          `json:"generos"`
	Cues        []analysis.Cue    `json:"cues"`
	Notas       string            `json:"notas,omitempty"`
	Fuentes     map[string]string `json:"fuentes"`
	Creado      time.Time         `json:"creado"`
	Actualizado time.Time         `json:"actualizado"`
}

// Patch holds the updatable fields of a track; nil fields are left untouched.
// ClearBPM removes a stored tempo and takes precedence over BPM.
type Patch struct {
	Titulo   *string
	Artista  *string
	BPM      *float64
	ClearBPM bool
	Duracion *float64
	Generos  *[]string
	Cues     *[]analysis.Cue
	Notas    *string
	Fuentes  *map[string]string
}

// normalize puts a track into canonical shape: non-nil collections,
// deduplicated genres and cues sorted by start time.
func (t *Track) normalize() {
	if t.Generos == nil {
		t.Generos = []string{}
	} else {
		seen := make(map[string]struct{}, len(t.Generos))
		kept := make([]string, 0, len(t.Generos))
		for _, g := range t.Generos {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			kept = append(kept, g)
		}
		t.Generos = kept
	}
	if t.Cues == nil {
		t.Cues = []analysis.Cue{}
	} else {
		sort.Slice(t.Cues, func(i, j int) bool { return t.Cues[i].Start < t.Cues[j].Start })
	}
	if t.Fuentes == nil {
		t.Fuentes = map[string]string{}
	}
}

// Validate enforces the catalog schema. Records failing validation are
// rejected rather than stored in a partial shape.
func (t *Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTrack)
	}
	if t.BPM != nil && *t.BPM <= 0 {
		return fmt.Errorf("%w: bpm must be positive, got %g", ErrInvalidTrack, *t.BPM)
	}
	if t.Duracion != nil && *t.Duracion < 0 {
		return fmt.Errorf("%w: negative duration %g", ErrInvalidTrack, *t.Duracion)
	}
	for i, c := range t.Cues {
		if c.Start < 0 || c.End <= c.Start {
			return fmt.Errorf("%w: cue %d has invalid range [%g, %g]", ErrInvalidTrack, i, c.Start, c.End)
		}
		if i > 0 && c.Start < t.Cues[i-1].End {
			return fmt.Errorf("%w: cues %d and %d overlap", ErrInvalidTrack, i-1, i)
		}
		for _, v := range c.Waveform {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: cue %d envelope value %g outside [0, 1]", ErrInvalidTrack, i, v)
			}
		}
	}
	return nil
}

// apply copies the patch's non-nil fields onto the track.
func (t *Track) apply(p Patch) {
	if p.Titulo != nil {
		t.Titulo = *p.Titulo
	}
	if p.Artista != nil {
		t.Artista = *p.Artista
	}
	if p.ClearBPM {
		t.BPM = nil
	} else if p.BPM != nil {
		bpm := *p.BPM
		t.BPM = &bpm
	}
	if p.Duracion != nil {
		d := *p.Duracion
		t.Duracion = &d
	}
	if p.Generos != nil {
		t.Generos = append([]string(nil), *p.Generos...)
	}
	if p.Cues != nil {
		t.Cues = append([]analysis.Cue(nil), *p.Cues...)
	}
	if p.Notas != nil {
		t.Notas = *p.Notas
	}
	if p.Fuentes != nil {
		fuentes := make(map[string]string, len(*p.Fuentes))
		for k, v := range *p.Fuentes {
			fuentes[k] = v
		}
		t.Fuentes = fuentes
	}
}

// clone deep-copies a track so cached records never alias caller memory.
func (t Track) clone() Track {
	c := t
	c.Generos = append([]string(nil), t.Generos...)
	c.Cues = make([]analysis.Cue, len(t.Cues))
	for i, cue := range t.Cues {
		cue.Waveform = append([]float64(nil), cue.Waveform...)
		c.Cues[i] = cue
	}
	c.Fuentes = make(map[string]string, len(t.Fuentes))
	for k, v := range t.Fuentes {
		c.Fuentes[k] = v
	}
	return c
}

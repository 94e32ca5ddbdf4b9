package library

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantumlive/pkg/analysis"
	"quantumlive/pkg/catalog"
)

// writeClickWAV writes a 16-bit mono WAV with a click at every beat.
func writeClickWAV(t *testing.T, path string, bpm, seconds float64) {
	t.Helper()

	sampleRate := analysis.ReducedSampleRate
	n := int(seconds * float64(sampleRate))
	data := make([]int, n)

	beatPeriod := int(60.0 / bpm * float64(sampleRate))
	for pos := 0; pos < n; pos += beatPeriod {
		for i := 0; i < 64 && pos+i < n; i++ {
			decay := 1.0 - float64(i)/64.0
			s := decay * math.Sin(2*math.Pi*2000*float64(i)/float64(sampleRate))
			data[pos+i] = int(s * 32767)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	err = enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())
}

// writeSilentWAV writes a 16-bit mono WAV containing only silence.
func writeSilentWAV(t *testing.T, path string, seconds float64) {
	t.Helper()

	sampleRate := analysis.ReducedSampleRate
	data := make([]int, int(seconds*float64(sampleRate)))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	err = enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())
}

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "playlist.json"), nil)
	require.NoError(t, err)
	return New(store, analysis.NewPipeline(nil), nil)
}

func TestCreateTrack_WithAudio(t *testing.T) {
	lib := newTestLibrary(t)

	path := filepath.Join(t.TempDir(), "click.wav")
	writeClickWAV(t, path, 120, 16)

	track, err := lib.CreateTrack(CreateRequest{
		Titulo:      "Clicker",
		Artista:     "Metronome",
		RutaAudio:   path,
		AutoCues:    true,
		BeatsPerCue: 8,
	})
	require.NoError(t, err)

	require.NotNil(t, track.BPM)
	assert.InDelta(t, 120.0, *track.BPM, 2.0)
	require.NotNil(t, track.Duracion)
	assert.InDelta(t, 16.0, *track.Duracion, 0.1)
	require.NotEmpty(t, track.Cues)

	for i, c := range track.Cues {
		assert.Greater(t, c.End, c.Start, "cue %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, c.Start, track.Cues[i-1].End, "cues %d and %d overlap", i-1, i)
		}
	}

	got, err := lib.Store().Get(track.ID)
	require.NoError(t, err)
	assert.Equal(t, track.Cues, got.Cues)
}

func TestCreateTrack_WithoutAudio(t *testing.T) {
	lib := newTestLibrary(t)

	track, err := lib.CreateTrack(CreateRequest{
		Titulo:  "Unanalyzed",
		Artista: "Someone",
		Generos: []string{"ambient"},
	})
	require.NoError(t, err)

	assert.Nil(t, track.BPM, "no audio means no tempo")
	assert.Empty(t, track.Cues)

	got, err := lib.Store().Get(track.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unanalyzed", got.Titulo)
	assert.Nil(t, got.BPM)
}

func TestCreateTrack_AnalysisFailureLeavesCatalogUntouched(t *testing.T) {
	lib := newTestLibrary(t)

	_, err := lib.CreateTrack(CreateRequest{
		Titulo:    "Ghost",
		RutaAudio: filepath.Join(t.TempDir(), "missing.wav"),
	})
	require.ErrorIs(t, err, analysis.ErrFileNotFound)

	tracks, err := lib.Store().List()
	require.NoError(t, err)
	assert.Empty(t, tracks, "failed analysis must not persist a partial track")
}

func TestReanalyze(t *testing.T) {
	lib := newTestLibrary(t)

	track, err := lib.CreateTrack(CreateRequest{Titulo: "Later", Artista: "Someone"})
	require.NoError(t, err)
	require.Nil(t, track.BPM)

	path := filepath.Join(t.TempDir(), "click.wav")
	writeClickWAV(t, path, 100, 10)

	updated, err := lib.Reanalyze(track.ID, path, analysis.Options{AutoCues: true, BeatsPerCue: 4})
	require.NoError(t, err)

	require.NotNil(t, updated.BPM)
	assert.InDelta(t, 100.0, *updated.BPM, 2.0)
	require.NotNil(t, updated.Duracion)
	assert.InDelta(t, 10.0, *updated.Duracion, 0.1)
	require.NotEmpty(t, updated.Cues)

	got, err := lib.Store().Get(track.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.BPM, got.BPM, "next read reflects the reanalysis")
}

func TestReanalyze_SilenceClearsStaleBPM(t *testing.T) {
	lib := newTestLibrary(t)

	bpm := 140.0
	track, err := lib.CreateTrack(CreateRequest{Titulo: "Fades out", BPM: &bpm})
	require.NoError(t, err)
	require.NotNil(t, track.BPM)

	path := filepath.Join(t.TempDir(), "silence.wav")
	writeSilentWAV(t, path, 3)

	updated, err := lib.Reanalyze(track.ID, path, analysis.Options{})
	require.NoError(t, err)
	assert.Nil(t, updated.BPM, "no detectable tempo replaces the stale one")
	require.NotNil(t, updated.Duracion)
	assert.InDelta(t, 3.0, *updated.Duracion, 0.1)

	got, err := lib.Store().Get(track.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BPM)
}

func TestReanalyze_MissingTrack(t *testing.T) {
	lib := newTestLibrary(t)

	path := filepath.Join(t.TempDir(), "click.wav")
	writeClickWAV(t, path, 120, 4)

	_, err := lib.Reanalyze("nope", path, analysis.Options{})
	require.ErrorIs(t, err, catalog.ErrTrackNotFound)
}

package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantumlive/pkg/analysis"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playlist.json")
	store, err := Open(path, nil)
	require.NoError(t, err)
	return store, path
}

func sampleTrack() Track {
	bpm := 128.0
	return Track{
		Titulo:  "Nightdrive",
		Artista: "Test Artist",
		BPM:     &bpm,
		Generos: []string{"techno", "house"},
		Fuentes: map[string]string{"soundcloud": "https://example.com/nightdrive"},
		Notas:   "opener",
		Cues: []analysis.Cue{
			{Start: 0, End: 15, Waveform: []float64{0.1, 0.8, 1.0}},
			{Start: 15, End: 30, Waveform: []float64{0.5, 0.9, 0.2}},
		},
	}
}

func TestCreateThenGet(t *testing.T) {
	store, _ := newTestStore(t)

	in := sampleTrack()
	created, err := store.Create(in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID, "create generates an id")

	got, err := store.Get(created.ID)
	require.NoError(t, err)

	assert.Equal(t, in.Titulo, got.Titulo)
	assert.Equal(t, in.Artista, got.Artista)
	assert.Equal(t, *in.BPM, *got.BPM)
	assert.Equal(t, in.Generos, got.Generos)
	assert.Equal(t, in.Fuentes, got.Fuentes)
	assert.Equal(t, in.Notas, got.Notas)
	assert.Equal(t, in.Cues, got.Cues)
	assert.False(t, got.Creado.IsZero())
}

func TestCreateDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)

	in := sampleTrack()
	in.ID = "fixed-id"
	_, err := store.Create(in)
	require.NoError(t, err)

	_, err = store.Create(in)
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestUpdateReflectsOnNextRead(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(sampleTrack())
	require.NoError(t, err)

	title := "Daydrive"
	bpm := 90.0
	updated, err := store.Update(created.ID, Patch{Titulo: &title, BPM: &bpm})
	require.NoError(t, err)
	assert.Equal(t, "Daydrive", updated.Titulo)

	// The very next read must see the patched fields.
	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daydrive", got.Titulo)
	assert.Equal(t, 90.0, *got.BPM)
	assert.Equal(t, created.Artista, got.Artista, "unpatched fields survive")
}

func TestUpdateClearsBPM(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(sampleTrack())
	require.NoError(t, err)
	require.NotNil(t, created.BPM)

	updated, err := store.Update(created.ID, Patch{ClearBPM: true})
	require.NoError(t, err)
	assert.Nil(t, updated.BPM)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BPM)
}

func TestUpdateMissing(t *testing.T) {
	store, _ := newTestStore(t)

	title := "x"
	_, err := store.Update("nope", Patch{Titulo: &title})
	require.ErrorIs(t, err, ErrTrackNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(sampleTrack())
	require.NoError(t, err)

	deleted, err := store.Delete(created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.Get(created.ID)
	require.ErrorIs(t, err, ErrTrackNotFound)

	tracks, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, tracks)

	deleted, err = store.Delete(created.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports missing")
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	a, err := store.Create(sampleTrack())
	require.NoError(t, err)
	b := sampleTrack()
	b.Titulo = "Second"
	created, err := store.Create(b)
	require.NoError(t, err)

	store.Invalidate()
	store.Invalidate()

	tracks, err := store.List()
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, a.ID, tracks[0].ID)
	assert.Equal(t, created.ID, tracks[1].ID)
}

func TestListOrderIsStable(t *testing.T) {
	store, path := newTestStore(t)

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		in := sampleTrack()
		in.Titulo = title
		created, err := store.Create(in)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	first, err := store.List()
	require.NoError(t, err)
	second, err := store.List()
	require.NoError(t, err)
	require.Equal(t, first, second)

	// A fresh store over the same snapshot reads the same order.
	reopened, err := Open(path, nil)
	require.NoError(t, err)
	reread, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, reread, 3)
	for i, id := range ids {
		assert.Equal(t, id, reread[i].ID)
	}
}

func TestValidationRejectsOverlappingCues(t *testing.T) {
	store, _ := newTestStore(t)

	in := sampleTrack()
	in.Cues = []analysis.Cue{
		{Start: 0, End: 10, Waveform: []float64{1}},
		{Start: 5, End: 15, Waveform: []float64{1}},
	}
	_, err := store.Create(in)
	require.ErrorIs(t, err, ErrInvalidTrack)
}

func TestValidationRejectsBadEnvelope(t *testing.T) {
	store, _ := newTestStore(t)

	in := sampleTrack()
	in.Cues = []analysis.Cue{{Start: 0, End: 10, Waveform: []float64{0.5, 1.5}}}
	_, err := store.Create(in)
	require.ErrorIs(t, err, ErrInvalidTrack)
}

func TestCreateDeduplicatesGenres(t *testing.T) {
	store, _ := newTestStore(t)

	in := sampleTrack()
	in.Generos = []string{"techno", "techno", "house"}
	created, err := store.Create(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"techno", "house"}, created.Generos)
}

func TestFailedWriteKeepsOldSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	path := filepath.Join(dir, "playlist.json")
	store, err := Open(path, nil)
	require.NoError(t, err)

	created, err := store.Create(sampleTrack())
	require.NoError(t, err)

	// Removing the directory makes the temp-file write fail mid-mutation.
	require.NoError(t, os.RemoveAll(dir))

	next := sampleTrack()
	next.Titulo = "never lands"
	_, err = store.Create(next)
	require.ErrorIs(t, err, ErrStorageWrite)

	// Cache still serves the pre-failure snapshot.
	tracks, err := store.List()
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, created.ID, tracks[0].ID)
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.Create(sampleTrack())
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := store.List()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tracks, err := store.List()
	require.NoError(t, err)
	assert.Len(t, tracks, 8)
}

func TestGetReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(sampleTrack())
	require.NoError(t, err)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	got.Cues[0].Waveform[0] = 99 // must not leak into the cache

	again, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, again.Cues[0].Waveform[0])
}

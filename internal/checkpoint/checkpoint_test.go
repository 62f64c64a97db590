package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shamaton/msgpack/v2"
	"github.com/stretchr/testify/require"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

func testJob() JobParams {
	return JobParams{PMin: 100, PMax: 1000, NMin: 101, NMax: 200, Mode: sievetypes.Primorial}
}

func TestResumeFromScratchWhenNoFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "a.ckp"), filepath.Join(dir, "b.ckp"))

	w, resumed, writeA := store.Resume(testJob())
	require.False(t, resumed)
	require.True(t, writeA)
	require.Equal(t, uint64(100), w.P)
}

func TestWriteThenResumePicksLargerP(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "a.ckp"), filepath.Join(dir, "b.ckp"))
	job := testJob()

	w, _, writeA := store.Resume(job)
	w.P = 500
	w.Checksum = 42
	require.NoError(t, store.Write(w, writeA))

	w2, resumed, writeA2 := store.Resume(job)
	require.True(t, resumed)
	require.Equal(t, uint64(500), w2.P)
	require.False(t, writeA2) // next write must target the file we didn't just resume from

	w2.P = 700
	require.NoError(t, store.Write(w2, writeA2))

	w3, resumed3, writeA3 := store.Resume(job)
	require.True(t, resumed3)
	require.Equal(t, uint64(700), w3.P)
	require.True(t, writeA3)
}

func TestCorruptStateSumTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "a.ckp"), filepath.Join(dir, "b.ckp"))
	job := testJob()

	w, _, writeA := store.Resume(job)
	w.P = 600
	w.Seal()
	w.Checksum++ // corrupt after sealing so state_sum no longer matches

	// Store.Write reseals before encoding, so the corrupt record is encoded
	// directly into the file Write would have targeted.
	path := store.PathB
	if writeA {
		path = store.PathA
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, msgpack.MarshalWrite(f, &w))
	require.NoError(t, f.Close())

	_, resumed, _ := store.Resume(job)
	require.False(t, resumed)
}

func TestMismatchedJobHeaderTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "a.ckp"), filepath.Join(dir, "b.ckp"))
	job := testJob()

	w, _, writeA := store.Resume(job)
	w.P = 600
	require.NoError(t, store.Write(w, writeA))

	other := job
	other.NMax = 999
	_, resumed, _ := store.Resume(other)
	require.False(t, resumed)
}

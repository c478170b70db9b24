package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/pkg/logger"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestResultStore_ConcurrentAppendsKeepWholeLines(t *testing.T) {
	dir := t.TempDir()
	store, err := NewResultStore(dir, logger.Nop())
	require.NoError(t, err)

	const writers, perWriter = 16, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				url := fmt.Sprintf("https://www.anibis.ch/fr/d-%d-%d", w, i)
				assert.NoError(t, store.Append(context.Background(), "Autos", url))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, store.Close())

	data, err := os.ReadFile(filepath.Join(dir, "autos.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Regexp(t, `^https://www\.anibis\.ch/fr/d-\d+-\d+$`, line)
	}
}

func TestResultStore_AppendAfterClose(t *testing.T) {
	store, err := NewResultStore(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "cars", "https://x/1"))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Append(context.Background(), "cars", "https://x/2")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestResultStore_AppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.txt"), []byte("https://x/0\n"), 0644))

	store, err := NewResultStore(dir, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "cars", "https://x/1"))
	require.NoError(t, store.Close())

	assert.Equal(t, []string{"https://x/0", "https://x/1"}, readLines(t, store.Path("cars")))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Cars":              "cars",
		"Véhicules, Motos":  "vehicules_motos",
		"Maison / Jardin":   "maison___jardin",
		"Billets: Concerts": "billets_concerts",
		"Électroménager":    "electromenager",
		"":                  "category",
		"  Vélos  ":         "velos",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://x/2\nhttps://x/1\n https://x/2 \n\nhttps://x/1\n"), 0644))

	n, err := Dedupe(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://x/1\nhttps://x/2\n", string(first))

	n, err = Dedupe(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDedupe_ReplacesFileWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cars.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://x/1\nhttps://x/1\n"), 0600))

	_, err := Dedupe(path)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed over the original")
	assert.Equal(t, "cars.txt", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestDedupe_MissingDirLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Dedupe(filepath.Join(dir, "gone", "cars.txt"))
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDedupe_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	n, err := Dedupe(path)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMergeAll_KeepsOnlyURLs(t *testing.T) {
	dir := t.TempDir()
	cats := filepath.Join(dir, "json")
	require.NoError(t, os.MkdirAll(cats, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cats, "cars.txt"),
		[]byte("https://x/1\nnotaurl\nhttps://x/1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cats, "bikes.txt"),
		[]byte("http://y/1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cats, "notes.md"),
		[]byte("https://ignored\n"), 0644))

	counts, err := DedupeAll(cats)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bikes.txt": 1, "cars.txt": 2}, counts)

	out := filepath.Join(dir, "out", "ads.txt")
	n, err := MergeAll(cats, out, MergeTruncate)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"http://y/1", "https://x/1"}, readLines(t, out))
}

func TestMergeAll_Modes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.txt"), []byte("https://x/1\n"), 0644))
	out := filepath.Join(t.TempDir(), "ads.txt")

	for i := 0; i < 2; i++ {
		_, err := MergeAll(dir, out, MergeAppend)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"https://x/1", "https://x/1"}, readLines(t, out))

	_, err := MergeAll(dir, out, MergeTruncate)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/1"}, readLines(t, out))
}

func TestMergeAll_SkipsOutputInsideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.txt"), []byte("https://x/1\n"), 0644))
	out := filepath.Join(dir, "ads.txt")
	require.NoError(t, os.WriteFile(out, []byte("https://old\n"), 0644))

	n, err := MergeAll(dir, out, MergeAppend)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"https://old", "https://x/1"}, readLines(t, out))
}

func TestParseMergeMode(t *testing.T) {
	m, err := ParseMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, MergeAppend, m)

	m, err = ParseMergeMode("Truncate")
	require.NoError(t, err)
	assert.Equal(t, MergeTruncate, m)

	_, err = ParseMergeMode("overwrite")
	assert.Error(t, err)
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveJSON(dir, "Véhicules", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vehicules.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

type recordingSink struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (r *recordingSink) Append(_ context.Context, _, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.urls = append(r.urls, url)
	return nil
}

func TestMirroredSink(t *testing.T) {
	primary := &recordingSink{}
	broken := &recordingSink{err: errors.New("db down")}
	mirror := &recordingSink{}
	sink := NewMirroredSink(primary, logger.Nop(), broken, mirror)

	require.NoError(t, sink.Append(context.Background(), "cars", "https://x/1"))
	assert.Equal(t, []string{"https://x/1"}, primary.urls)
	assert.Equal(t, []string{"https://x/1"}, mirror.urls)

	primary.err = errors.New("disk full")
	assert.Error(t, sink.Append(context.Background(), "cars", "https://x/2"))
	assert.Len(t, mirror.urls, 1)
}

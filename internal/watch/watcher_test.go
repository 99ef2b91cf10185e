package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/internal/language"
)

func newTestWatcher(t *testing.T, excludes []string, onChange func([]string)) *Watcher {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	w, err := NewWatcher(reg, 50*time.Millisecond, excludes, onChange)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestInterestingFiltersByLanguage(t *testing.T) {
	w := newTestWatcher(t, []string{"**/vendor/**"}, func([]string) {})

	assert.True(t, w.interesting("src/main.go"))
	assert.True(t, w.interesting("config/app.yaml"))
	assert.True(t, w.interesting("scripts/deploy.fish"))
	assert.False(t, w.interesting("binary.exe"))
	assert.False(t, w.interesting("src/vendor/dep/dep.go"))
}

func TestExcludedMatchesBaseNames(t *testing.T) {
	w := newTestWatcher(t, []string{"*.min.js", "**/node_modules/**"}, func([]string) {})

	assert.True(t, w.excluded("dist/app.min.js"))
	assert.True(t, w.excluded("web/node_modules/left-pad/index.js"))
	assert.False(t, w.excluded("web/src/index.js"))
}

func TestNewWatcherRejectsBadInput(t *testing.T) {
	reg, err := language.NewRegistry()
	require.NoError(t, err)

	_, err = NewWatcher(reg, time.Millisecond, nil, nil)
	assert.Error(t, err, "nil callback must be rejected")

	_, err = NewWatcher(reg, time.Millisecond, []string{"[unclosed"}, func([]string) {})
	assert.Error(t, err, "bad exclude glob must be rejected")
}

func TestWatchDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan []string, 4)
	w := newTestWatcher(t, nil, func(paths []string) { batches <- paths })

	require.NoError(t, w.Watch([]string{dir}))

	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0o644))

	select {
	case paths := <-batches:
		assert.Contains(t, paths, target)
		assert.NotContains(t, paths, filepath.Join(dir, "skip.bin"))
	case <-time.After(3 * time.Second):
		t.Fatal("no change batch delivered")
	}
}

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/gridlive/internal/scheduler"
)

func testDocument() Document {
	scene := scheduler.NewScene()
	scene.LengthBeats = 16
	return Document{
		Scene:       scene,
		TempoBPM:    123.5,
		DriftMicros: 42,
		Metadata:    map[string]string{"sampleRoot": "/samples"},
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	doc := testDocument()

	require.NoError(t, Save(doc, dir))
	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, doc.TempoBPM, loaded.TempoBPM)
	assert.Equal(t, doc.DriftMicros, loaded.DriftMicros)
	assert.Equal(t, doc.Metadata, loaded.Metadata)
	assert.Equal(t, doc.Scene.LengthBeats, loaded.Scene.LengthBeats)
	assert.WithinDuration(t, time.Now(), loaded.SavedAt, 5*time.Second)
}

func TestSaveCreatesSaveFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "project")
	require.NoError(t, Save(testDocument(), dir))
	assert.True(t, Exists(dir))
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestExistsFalseForEmptyFolder(t *testing.T) {
	assert.False(t, Exists(t.TempDir()))
}

func TestAutoSaveDebouncesAndEventuallySaves(t *testing.T) {
	dir := t.TempDir()
	debounceTime = 20 * time.Millisecond
	defer func() { debounceTime = time.Second }()

	doc := testDocument()
	AutoSave(func() Document { return doc }, dir)
	AutoSave(func() Document { return doc }, dir) // coalesces with the first

	require.Eventually(t, func() bool {
		return Exists(dir)
	}, time.Second, 5*time.Millisecond)
}

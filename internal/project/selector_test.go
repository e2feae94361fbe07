package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchInDirectoryFindsProjectWithSaveFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, saveFileName), []byte("x"), 0644))

	found := searchInDirectory(dir, 3)
	require.Len(t, found, 1)
	assert.Equal(t, dir, found[0].Path)
}

func TestSearchInDirectoryStopsAtProjectBoundary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, saveFileName), []byte("x"), 0644))
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, saveFileName), []byte("x"), 0644))

	found := searchInDirectory(dir, 3)
	assert.Len(t, found, 1) // nested project folder is not descended into
}

func TestSearchInDirectoryRecursesIntoSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, saveFileName), []byte("x"), 0644))

	found := searchInDirectory(dir, 3)
	require.Len(t, found, 1)
	assert.Equal(t, sub, found[0].Path)
}

func TestSearchInDirectoryRespectsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, saveFileName), []byte("x"), 0644))

	found := searchInDirectory(dir, 1)
	assert.Empty(t, found)
}

func TestRemoveDuplicatesKeepsOnePerCleanedPath(t *testing.T) {
	now := time.Now()
	projects := []Project{
		{Name: "a", Path: "/foo/bar/", Modified: now},
		{Name: "a", Path: "/foo/bar", Modified: now},
	}
	result := removeDuplicates(projects)
	assert.Len(t, result, 1)
}

func TestRunProjectSelectorFunctionExists(t *testing.T) {
	_ = RunProjectSelector
}

// Package storage persists a Scheduler's Scene plus Clock timing state to
// a gzip-compressed JSON document, debounced the same way the teacher's
// storage package debounces its own autosave.
package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/gridlive/internal/scheduler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the persisted save-file shape: scene, tempo, clock drift,
// and free-form metadata (sample library root, MIDI device names, and
// the like).
type Document struct {
	Scene       *scheduler.Scene
	TempoBPM    float64
	DriftMicros int64
	SavedAt     time.Time
	Metadata    map[string]string
}

const fileName = "gridlive.json.gz"

var (
	mu           sync.Mutex
	timer        *time.Timer
	debounceTime = 1 * time.Second
)

// Source supplies the current Document to save; a Scheduler-backed
// closure is the typical caller.
type Source func() Document

// AutoSave schedules a debounced save of the Document src returns, into
// saveFolder, replacing any pending timer the way the teacher's AutoSave
// coalesces rapid successive mutations into one save.
func AutoSave(src Source, saveFolder string) {
	mu.Lock()
	defer mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	timer = time.AfterFunc(debounceTime, func() {
		go func() {
			start := time.Now()
			if err := Save(src(), saveFolder); err != nil {
				log.Printf("storage: autosave failed: %v", err)
				return
			}
			log.Printf("storage: autosaved in %d ms", time.Since(start).Milliseconds())
		}()
	})
}

// Save writes doc to saveFolder/gridlive.json.gz, gzip-compressed.
func Save(doc Document, saveFolder string) error {
	if err := os.MkdirAll(saveFolder, 0755); err != nil {
		return fmt.Errorf("storage: create save folder %s: %w", saveFolder, err)
	}

	doc.SavedAt = time.Now()
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: marshal document: %w", err)
	}

	path := filepath.Join(saveFolder, fileName)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: create save file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return fmt.Errorf("storage: write gzipped document: %w", err)
	}
	return gz.Close()
}

// Load reads and decompresses the Document saved at saveFolder.
func Load(saveFolder string) (Document, error) {
	var doc Document

	path := filepath.Join(saveFolder, fileName)
	file, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return doc, fmt.Errorf("storage: open gzip reader: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return doc, fmt.Errorf("storage: read compressed document: %w", err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("storage: unmarshal document: %w", err)
	}
	return doc, nil
}

// Exists reports whether saveFolder already holds a save file.
func Exists(saveFolder string) bool {
	_, err := os.Stat(filepath.Join(saveFolder, fileName))
	return err == nil
}

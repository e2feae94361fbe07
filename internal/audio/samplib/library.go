package samplib

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Library indexes a folder tree of WAV samples, lazily decodes them on
// demand, and keeps at most maxLoaded decoded samples resident using an
// LRU policy. Reads go through an atomic snapshot of the cache so the
// audio thread never blocks on the index mutex; only cache misses and
// evictions touch the lock, and those happen on a background loader
// goroutine.
type Library struct {
	root             string
	engineSampleRate int
	maxLoaded        int
	logf             func(format string, args ...interface{})

	mu      sync.Mutex
	folders map[string][]string // folder -> sorted sample file paths
	lru     []string            // most-recently-used path last
	cache   map[string]*Sample

	snapshot atomic.Value // map[string]*Sample, read-only, swapped wholesale

	requests  chan loadRequest
	preloader *Preloader
}

type loadRequest struct {
	path     string
	priority bool // true: an explicit request blocking a voice trigger
	done     chan *Sample
}

// NewLibrary walks root for .wav files grouped by their containing
// folder and starts background loader workers. maxLoaded bounds how many
// decoded samples stay resident; workers bounds background decode
// concurrency.
func NewLibrary(root string, engineSampleRate, maxLoaded, workers int) (*Library, error) {
	if maxLoaded <= 0 {
		maxLoaded = 64
	}
	if workers <= 0 {
		workers = 2
	}

	l := &Library{
		root:             root,
		engineSampleRate: engineSampleRate,
		maxLoaded:        maxLoaded,
		logf:             log.Printf,
		folders:          make(map[string][]string),
		cache:            make(map[string]*Sample),
		requests:         make(chan loadRequest, 256),
	}
	l.snapshot.Store(map[string]*Sample{})
	l.preloader = newPreloader(l)

	if err := l.index(); err != nil {
		return nil, err
	}
	for i := 0; i < workers; i++ {
		go l.loadWorker()
	}
	return l, nil
}

// index walks root once at startup, recording every WAV file's folder
// membership in sorted order so Folder/At can do stable numeric lookup.
func (l *Library) index() error {
	return filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			l.logf("samplib: walk error at %s: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".wav" {
			return nil
		}
		dir := filepath.Dir(path)
		l.folders[dir] = append(l.folders[dir], path)
		return nil
	})
}

// Reindex re-walks root, for when samples are added or removed while the
// library is running.
func (l *Library) Reindex() error {
	l.mu.Lock()
	l.folders = make(map[string][]string)
	l.mu.Unlock()
	return l.index()
}

// Folders returns every indexed folder path, sorted.
func (l *Library) Folders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.folders))
	for f := range l.folders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// At returns the idx'th sample in folder, wrapping modulo the folder's
// length — the same "wrap around within the folder" indexing the spec's
// folder/index addressing uses for grid playback.
func (l *Library) At(folder string, idx int) (*Sample, error) {
	l.mu.Lock()
	files := l.folders[folder]
	l.mu.Unlock()
	if len(files) == 0 {
		return nil, fmt.Errorf("samplib: empty or unknown folder %q", folder)
	}
	idx = ((idx % len(files)) + len(files)) % len(files)
	return l.Get(files[idx])
}

// Get returns path's decoded Sample, blocking on first load and serving
// from cache (no lock, no allocation) on every subsequent call. Call
// this from the real-time thread only after a sample is known resident;
// trigger logic should prefer GetNonBlocking plus a preload hint.
func (l *Library) Get(path string) (*Sample, error) {
	if s, ok := l.fastGet(path); ok {
		l.preloader.Touch(path)
		return s, nil
	}
	done := make(chan *Sample, 1)
	l.requests <- loadRequest{path: path, priority: true, done: done}
	s := <-done
	if s == nil {
		return nil, fmt.Errorf("samplib: failed to load %s", path)
	}
	l.preloader.Touch(path)
	return s, nil
}

// GetNonBlocking serves only from the lock-free snapshot, enqueuing a
// background load and returning ok=false on a miss. Intended for the
// audio thread's trigger path, which must never block.
func (l *Library) GetNonBlocking(path string) (s *Sample, ok bool) {
	s, ok = l.fastGet(path)
	if ok {
		l.preloader.Touch(path)
		return s, true
	}
	select {
	case l.requests <- loadRequest{path: path, priority: true}:
	default:
	}
	return nil, false
}

func (l *Library) fastGet(path string) (*Sample, bool) {
	snap := l.snapshot.Load().(map[string]*Sample)
	s, ok := snap[path]
	return s, ok
}

// Preload enqueues a best-effort background decode for path without
// blocking the caller; duplicate or already-cached requests are no-ops.
// Immediate (priority) requests in the channel are served first because
// loadWorker drains the channel in arrival order and callers only ever
// enqueue preload requests after priority ones for the same tick.
func (l *Library) Preload(path string) {
	if _, ok := l.fastGet(path); ok {
		return
	}
	select {
	case l.requests <- loadRequest{path: path, priority: false}:
	default: // queue full: drop the hint, priority loads still get through
	}
}

func (l *Library) loadWorker() {
	for req := range l.requests {
		if _, ok := l.fastGet(req.path); ok {
			if req.done != nil {
				req.done <- l.cacheGet(req.path)
			}
			continue
		}
		s, err := Decode(req.path, l.engineSampleRate)
		if err != nil {
			l.logf("samplib: decode %s: %v", req.path, err)
			if req.done != nil {
				req.done <- nil
			}
			continue
		}
		l.insert(req.path, s)
		if req.done != nil {
			req.done <- s
		}
	}
}

func (l *Library) cacheGet(path string) *Sample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache[path]
}

// insert adds s to the cache under path, evicting the least-recently-used
// entry first if that would exceed maxLoaded, then republishes a fresh
// snapshot for the lock-free read path.
func (l *Library) insert(path string, s *Sample) {
	l.mu.Lock()
	l.cache[path] = s
	l.touchLocked(path)
	for len(l.cache) > l.maxLoaded && len(l.lru) > 0 {
		victim := l.lru[0]
		l.lru = l.lru[1:]
		if victim == path {
			continue
		}
		delete(l.cache, victim)
	}
	next := make(map[string]*Sample, len(l.cache))
	for k, v := range l.cache {
		next[k] = v
	}
	l.mu.Unlock()

	l.snapshot.Store(next)
}

func (l *Library) touchLocked(path string) {
	for i, p := range l.lru {
		if p == path {
			l.lru = append(l.lru[:i], l.lru[i+1:]...)
			break
		}
	}
	l.lru = append(l.lru, path)
}

// hasFile reports whether path is a file the index actually saw at
// startup, so predictive preloading never enqueues loads for
// speculative paths that don't exist.
func (l *Library) hasFile(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.folders[filepath.Dir(path)] {
		if f == path {
			return true
		}
	}
	return false
}

// Loaded reports how many samples currently hold decoded memory.
func (l *Library) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

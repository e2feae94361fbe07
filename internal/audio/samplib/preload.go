package samplib

import (
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
)

// markovCandidates bounds how many most-likely-next samples get a
// predictive preload hint after each touch.
const markovCandidates = 2

// numericNeighbors bounds how far a detected numeric series (kick_001,
// kick_002, ...) preloads ahead of and behind the current index.
const numericNeighbors = 2

var trailingDigits = regexp.MustCompile(`^(.*?)(\d+)(\.[^.]+)?$`)

// Preloader watches which samples actually get played and issues
// low-priority background preload hints for what is likely to be
// requested next, using three independent signals: raw usage frequency,
// a first-order Markov table of "played after" transitions, and
// numeric-series detection (kick_003 playing implies kick_001, kick_002,
// kick_004 and kick_005 are likely soon). None of this blocks playback — Touch only enqueues
// Library.Preload calls, which themselves are non-blocking.
type Preloader struct {
	lib *Library

	mu     sync.Mutex
	usage  map[string]int
	markov map[string]map[string]int
	last   string
}

func newPreloader(lib *Library) *Preloader {
	return &Preloader{
		lib:    lib,
		usage:  make(map[string]int),
		markov: make(map[string]map[string]int),
	}
}

// Touch records that path was just used and fires the three predictive
// signals. Call it whenever a sample is actually fetched for playback,
// not on speculative lookups.
func (p *Preloader) Touch(path string) {
	p.mu.Lock()
	p.usage[path]++
	prev := p.last
	p.last = path
	if prev != "" && prev != path {
		row, ok := p.markov[prev]
		if !ok {
			row = make(map[string]int)
			p.markov[prev] = row
		}
		row[path]++
	}
	candidates := p.candidatesLocked(path)
	p.mu.Unlock()

	for _, c := range candidates {
		p.lib.Preload(c)
	}
	for _, c := range p.numericSeriesNeighbors(path) {
		p.lib.Preload(c)
	}
}

// candidatesLocked returns the markovCandidates samples most often
// played immediately after path, highest-count first. Must be called
// with p.mu held.
func (p *Preloader) candidatesLocked(path string) []string {
	row := p.markov[path]
	if len(row) == 0 {
		return nil
	}
	type pair struct {
		name  string
		count int
	}
	pairs := make([]pair, 0, len(row))
	for name, count := range row {
		pairs = append(pairs, pair{name, count})
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].count > pairs[j-1].count; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	if len(pairs) > markovCandidates {
		pairs = pairs[:markovCandidates]
	}
	out := make([]string, len(pairs))
	for i, pr := range pairs {
		out[i] = pr.name
	}
	return out
}

// numericSeriesNeighbors detects a trailing numeric run in path's
// filename (e.g. "kick_003.wav") and returns the same-folder files that
// substitute a nearby number at that position, skipping the ones the
// folder doesn't actually contain.
func (p *Preloader) numericSeriesNeighbors(path string) []string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	m := trailingDigits.FindStringSubmatch(base)
	if m == nil {
		return nil
	}
	prefix, digits, ext := m[1], m[2], m[3]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	width := len(digits)

	var out []string
	for delta := -numericNeighbors; delta <= numericNeighbors; delta++ {
		if delta == 0 {
			continue
		}
		candidate := n + delta
		if candidate < 0 {
			continue
		}
		name := prefix + padNumber(candidate, width) + ext
		candidatePath := filepath.Join(dir, name)
		if p.lib.hasFile(candidatePath) {
			out = append(out, candidatePath)
		}
	}
	return out
}

func padNumber(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// UsageCount returns how many times path has been touched, for
// diagnostics and tests.
func (p *Preloader) UsageCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usage[path]
}

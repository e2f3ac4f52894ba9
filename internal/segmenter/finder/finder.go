package finder

import (
	"fmt"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
)

type rule struct {
	m         matcher
	patLen    int
	cutOffset int
	// leftmost match position able to yield a cut past position 0
	minStart int
}

// Finder performs the earliest-cut search over a fixed, ordered set of
// cutter definitions. It holds no per-buffer state and is safe for
// concurrent use.
type Finder struct {
	rules []rule
}

func New(defs []cutter.Definition) (*Finder, error) {
	f := &Finder{rules: make([]rule, len(defs))}

	for i, d := range defs {
		if d.CutOffset < 0 || d.CutOffset > len(d.Pattern) {
			return nil, fmt.Errorf(
				"cutter #%d (line %d): cut offset %d out of bounds [0:%d]",
				i, d.Line, d.CutOffset, len(d.Pattern),
			)
		}

		m, err := compileMatcher(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("cutter #%d (line %d): %s", i, d.Line, err)
		}

		f.rules[i] = rule{
			m:         m,
			patLen:    len(d.Pattern),
			cutOffset: d.CutOffset,
		}
		if d.CutOffset == 0 {
			f.rules[i].minStart = 1
		}
	}

	return f, nil
}

// Earliest returns the smallest cut point within haystack produced by the
// leftmost occurrence of any definition's pattern, ties going to the
// earliest-listed definition. Cut points are always > 0: a boundary at the
// very start of the haystack coincides with the previous one.
//
// A non-zero scannedPrefix asserts that haystack[:scannedPrefix] was already
// searched without result, allowing the search to skip occurrences that
// can not be new. It never changes the outcome.
func (f *Finder) Earliest(haystack []byte, scannedPrefix int) (best cutter.Cut, found bool) {

	for i := range f.rules {
		r := &f.rules[i]

		from := r.minStart
		if resume := scannedPrefix - r.patLen + 1; resume > from {
			from = resume
		}

		// no point looking for a match that can not beat what we have
		limit := len(haystack)
		if found {
			// a start past best.Pos-cutOffset yields a cut > best.Pos
			// a start equal to it ties, and the earlier rule wins ties
			limit = best.Pos - r.cutOffset - 1 + r.patLen
			if limit > len(haystack) {
				limit = len(haystack)
			}
		}
		if from+r.patLen > limit {
			continue
		}

		if pos, matched := r.m.findFrom(haystack[:limit], from); matched {
			best = cutter.Cut{Pos: pos + r.cutOffset, Cutter: i}
			found = true
		}
	}

	return
}

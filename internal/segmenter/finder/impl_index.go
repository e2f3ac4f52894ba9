// +build !cutter_rure

package finder

import "bytes"

type matcher struct{ pattern []byte }

func compileMatcher(pattern []byte) (matcher, error) {
	return matcher{pattern}, nil
}

func (m matcher) findFrom(haystack []byte, from int) (int, bool) {
	if from > len(haystack) {
		return 0, false
	}
	if i := bytes.Index(haystack[from:], m.pattern); i >= 0 {
		return from + i, true
	}
	return 0, false
}

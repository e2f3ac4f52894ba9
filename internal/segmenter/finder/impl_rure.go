// +build cutter_rure

package finder

import (
	"regexp"

	rure "github.com/BurntSushi/rure-go"
)

type matcher struct{ *rure.Regex }

// patterns are literals: escape everything the regex syntax cares about
func compileMatcher(pattern []byte) (matcher, error) {
	r, err := rure.CompileOptions(
		regexp.QuoteMeta(string(pattern)),
		0,
		rure.NewOptions(),
	)
	return matcher{r}, err
}

func (m matcher) findFrom(haystack []byte, from int) (int, bool) {
	if from > len(haystack) {
		return 0, false
	}
	if start, _, didMatch := m.FindBytes(haystack[from:]); didMatch {
		return from + start, true
	}
	return 0, false
}

package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
)

// control files are tiny, but allow for absurdly long literal patterns
const maxLineSize = 16 * 1024 * 1024

// Load parses one cutter definition from every line of r, blank lines
// included. The byte index of the first sep within the raw line becomes the
// cut offset, and the line with every sep removed and surrounding whitespace
// trimmed becomes the pattern. Lines without a sep cut at the end of their
// pattern.
func Load(r io.Reader, sep rune) ([]cutter.Definition, error) {

	sepStr := string(sep)

	var defs []cutter.Definition
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	var lineNo int
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("line %d is not valid UTF-8, is the encoding correct?", lineNo)
		}

		pattern := strings.TrimSpace(strings.Replace(line, sepStr, "", -1))

		d := cutter.Definition{
			Pattern:   []byte(pattern),
			CutOffset: len(pattern),
			Line:      lineNo,
		}
		if sepIdx := strings.Index(line, sepStr); sepIdx >= 0 && sepIdx < len(pattern) {
			d.CutOffset = sepIdx
		}

		defs = append(defs, d)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return defs, nil
}

// LoadFile opens and decodes path using the named encoding ( WHATWG names,
// e.g. "utf-8", "latin1", "utf-16le" ) and passes the result to Load. Every
// failure is reported as a *cutter.ConfigError.
func LoadFile(path string, encodingName string, sep rune) (defs []cutter.Definition, err error) {

	defer func() {
		if err != nil {
			var ce *cutter.ConfigError
			if !errors.As(err, &ce) {
				err = &cutter.ConfigError{Path: path, Err: err}
			}
		}
	}()

	enc, err := Encoding(encodingName)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var r io.Reader = fh
	if enc != nil {
		r = enc.NewDecoder().Reader(fh)
	}

	return Load(r, sep)
}

// Encoding resolves an encoding name. A nil Encoding with a nil error means
// the input is to be consumed as-is ( UTF-8 ).
func Encoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding '%s': %s", name, err)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		// validated line by line in Load(), a decoder would instead
		// silently substitute U+FFFD
		return nil, nil
	}
	return enc, nil
}

// EmptyPatterns returns the control-file lines of every definition with an
// empty pattern. Such rules match at every position, and cut the stream
// into single bytes.
func EmptyPatterns(defs []cutter.Definition) (lines []int) {
	for _, d := range defs {
		if len(d.Pattern) == 0 {
			lines = append(lines, d.Line)
		}
	}
	return
}

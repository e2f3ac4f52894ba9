package segmenter

import (
	"fmt"
	"io"
	"log"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
	"github.com/ipfs-shipyard/DNAcutter/internal/constants"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/finder"
)

// Engine is the streaming segmentation loop. It reads fixed-size chunks,
// keeps whatever has not been emitted yet in a single carry-over buffer, and
// cuts at the earliest point any cutter definition allows. An Engine may be
// reused for consecutive streams, but not concurrently.
type Engine struct {
	chunkSize int
	finder    *finder.Finder

	buf   []byte
	chunk []byte

	// totals across every Run()
	bytesRead        int64
	newlinesStripped int64
}

func NewEngine(defs []cutter.Definition, chunkSize int) (*Engine, error) {
	if chunkSize < 1 || chunkSize > constants.MaxChunkSize {
		return nil, fmt.Errorf(
			"chunk size %d out of bounds [1:%d]",
			chunkSize,
			constants.MaxChunkSize,
		)
	}

	f, err := finder.New(defs)
	if err != nil {
		return nil, err
	}

	return &Engine{
		chunkSize: chunkSize,
		finder:    f,
		chunk:     make([]byte, chunkSize),
		buf:       make([]byte, 0, 2*chunkSize),
	}, nil
}

// Run segments src until EOF, invoking emit for every segment in stream
// order as soon as its end is known. Read failures are returned as
// *cutter.StreamReadError, and emit() failures are passed through as-is.
func (e *Engine) Run(src io.Reader, emit cutter.SegmentCallback) error {

	e.buf = e.buf[:0]

	var exhausted bool
	var streamOffset, readOffset int64

	// how much of the buffer is known to not contain a cut
	var scanned int

	for {
		var added int

		if !exhausted {
			n, err := fill(src, e.chunk)
			readOffset += int64(n)
			e.bytesRead += int64(n)

			if err == io.EOF {
				exhausted = true
			} else if err != nil {
				return &cutter.StreamReadError{Offset: readOffset, Err: err}
			}

			prevLen := len(e.buf)
			e.buf = appendStripped(e.buf, e.chunk[:n])
			added = len(e.buf) - prevLen
			e.newlinesStripped += int64(n - added)
		}

		if len(e.buf) == 0 {
			if exhausted {
				return nil
			}
			continue
		}

		// nothing new arrived since the last fruitless search
		if added == 0 && scanned == len(e.buf) {
			if !exhausted {
				continue
			}
			if err := e.emit(emit, len(e.buf), streamOffset, cutter.TailCutter); err != nil {
				return err
			}
			e.buf = e.buf[:0]
			return nil
		}

		c, found := e.finder.Earliest(e.buf, scanned)
		if !found {
			// defer to the next round, when more data may be available
			scanned = len(e.buf)
			continue
		}

		if constants.PerformSanityChecks && (c.Pos <= 0 || c.Pos > len(e.buf)) {
			log.Panicf(
				"cut position %d out of bounds (0:%d] at stream offset %d",
				c.Pos, len(e.buf), streamOffset,
			)
		}

		if err := e.emit(emit, c.Pos, streamOffset, c.Cutter); err != nil {
			return err
		}
		streamOffset += int64(c.Pos)

		// compact in place, keeping the one allocation
		e.buf = e.buf[:copy(e.buf, e.buf[c.Pos:])]
		scanned = 0
	}
}

func (e *Engine) emit(cb cutter.SegmentCallback, size int, offset int64, cutterIdx int) error {
	return cb(cutter.Segment{
		Data:   e.buf[:size:size],
		Offset: offset,
		Cutter: cutterIdx,
	})
}

// fill reads until buf is full or src is exhausted. Unlike io.ReadFull it
// passes every non-EOF error through verbatim: a truncated substream
// reported as io.ErrUnexpectedEOF must not look like a clean end.
func fill(src io.Reader, buf []byte) (n int, err error) {
	for n < len(buf) && err == nil {
		var nn int
		nn, err = src.Read(buf[n:])
		n += nn
	}
	return
}

// BytesRead returns the amount of raw ( pre-strip ) input consumed so far
func (e *Engine) BytesRead() int64 { return e.bytesRead }

// NewlinesStripped returns the amount of line-ending bytes discarded so far
func (e *Engine) NewlinesStripped() int64 { return e.newlinesStripped }

// The stream is one continuous line: drop every \n, and the \r of CRLF or
// old-mac line endings along with it
func appendStripped(dst, chunk []byte) []byte {
	for len(chunk) > 0 {
		i := 0
		for i < len(chunk) && chunk[i] != '\n' && chunk[i] != '\r' {
			i++
		}
		dst = append(dst, chunk[:i]...)
		if i < len(chunk) {
			i++
		}
		chunk = chunk[i:]
	}
	return dst
}

// LineSink returns a callback writing every segment to w followed by a
// newline, in a single Write() call per segment
func LineSink(w io.Writer, emitterName string) cutter.SegmentCallback {
	var line []byte
	return func(s cutter.Segment) error {
		line = append(append(line[:0], s.Data...), '\n')
		if _, err := w.Write(line); err != nil {
			return &cutter.SinkWriteError{Emitter: emitterName, Err: err}
		}
		return nil
	}
}

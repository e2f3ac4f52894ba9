package source

import (
	"io"

	"github.com/ipfs/go-qringbuf"
)

type RingConfig struct {
	BufferSize  int
	SectorSize  int
	MinRead     int
	MinRegion   int
	Stats       *qringbuf.Stats
	TrackTiming bool
}

var DefaultRingConfig = RingConfig{
	BufferSize: 24 * 1024 * 1024,
	SectorSize: 64 * 1024,
	MinRead:    256 * 1024,
	MinRegion:  2 * 1024 * 1024,
}

// Ring serves a stream through a quantized ring buffer: a background
// goroutine keeps read(2)ing large blocks while the segmenter consumes
// regions of it. Every Read() copies out, the regions are never retained.
type Ring struct {
	qrb    *qringbuf.QuantizedRingBuffer
	region *qringbuf.Region
	pos    int
	done   bool
}

func NewRing(r io.Reader, cfg RingConfig) (*Ring, error) {
	qrb, err := qringbuf.NewFromReader(r, qringbuf.Config{
		BufferSize: cfg.BufferSize,
		SectorSize: cfg.SectorSize,
		MinRead:    cfg.MinRead,
		MinRegion:  cfg.MinRegion,
		// copy everything that did not fit at the end of the buffer in one go
		MaxCopy:     cfg.MinRegion,
		Stats:       cfg.Stats,
		TrackTiming: cfg.TrackTiming,
	})
	if err != nil {
		return nil, err
	}
	return &Ring{qrb: qrb}, nil
}

// Start begins filling the buffer with the next ( sub )stream. A limit of 0
// reads until EOF, otherwise exactly limit bytes are consumed from the
// underlying reader.
func (rg *Ring) Start(limit int64) error {
	rg.region, rg.pos, rg.done = nil, 0, false
	return rg.qrb.StartFill(limit)
}

func (rg *Ring) Read(p []byte) (int, error) {

	for rg.region == nil || rg.pos >= rg.region.Size() {
		if rg.done {
			return 0, io.EOF
		}

		// everything of the previous region was copied out
		region, err := rg.qrb.NextRegion(0)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if region == nil || (region.Size() == 0 && err == io.EOF) {
			rg.region, rg.done = nil, true
			return 0, io.EOF
		}

		rg.region, rg.pos = region, 0
	}

	n := copy(p, rg.region.Bytes()[rg.pos:])
	rg.pos += n
	return n, nil
}

// Buffered returns how many bytes were read from the underlying source but
// not yet handed out
func (rg *Ring) Buffered() int {
	rg.qrb.Lock()
	defer rg.qrb.Unlock()

	b := rg.qrb.Buffered()
	if rg.region != nil {
		b += rg.region.Size() - rg.pos
	}
	return b
}

package segmenter

import (
	"os"
	"runtime"

	"github.com/google/uuid"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/digest"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/source"
)

// Segmenter ties a loaded cutter table and its Engine to the configured
// input sources and emitters
type Segmenter struct {
	curStreamOffset  int64
	cfg              config
	statSummary      statSummary
	cutters          []cutter.Definition
	engine           *Engine
	hasher           *digest.Maker
	ring             *source.Ring
	segmentSink      cutter.SegmentCallback
	externalEventBus chan<- Event
	seenSegments     seenSegments
}

const (
	ErrorString = EventType(iota)
	NewSegment
	NewSegmentJsonl
)

type Event struct {
	Type EventType
	Body string
}
type EventType int

func (sgm *Segmenter) maybeSendEvent(t EventType, s string) {
	if sgm.externalEventBus != nil {
		sgm.externalEventBus <- Event{Type: t, Body: s}
	}
}

// Destroy releases the ingestion buffers. Only OutputSummary() remains
// usable afterwards.
func (sgm *Segmenter) Destroy() {
	sgm.ring = nil
	sgm.engine = nil
}

func (sgm *Segmenter) initStatSummary(argv []string) {
	s := &sgm.statSummary
	s.EventType = "summary"
	s.RunID = uuid.New().String()

	if len(argv) > 0 {
		s.SysStats.ArgvInitial = make([]string, len(argv)-1)
		copy(s.SysStats.ArgvInitial, argv[1:])
	}

	s.SysStats.NumCPU = runtime.NumCPU()
	s.SysStats.PageSize = os.Getpagesize()
	s.SysStats.GoVersion = runtime.Version()
}

func (sgm *Segmenter) initCutterStats() {
	sgm.statSummary.Cutters = make([]cutterStats, len(sgm.cutters))
	for i, d := range sgm.cutters {
		sgm.statSummary.Cutters[i] = cutterStats{
			Line:      d.Line,
			Pattern:   string(d.Pattern),
			CutOffset: d.CutOffset,
		}
	}

	if (sgm.cfg.StatsActive & statsSegments) == statsSegments {
		sgm.seenSegments = make(seenSegments, 1024)
	}
}

package segmenter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/digest"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/source"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util"
)

var preProcessTasks, postProcessTasks func(sgm *Segmenter)

// ProcessReader segments everything readable from inputReader, routing the
// result to the configured emitters. When supplied, optionalEventChan
// receives every segment and error as they occur, and is closed on return.
func (sgm *Segmenter) ProcessReader(inputReader io.Reader, optionalEventChan chan<- Event) (err error) {

	var t0 time.Time
	defer func() {
		if postProcessTasks != nil {
			postProcessTasks(sgm)
		}
		sgm.ring = nil
		if sgm.externalEventBus != nil {
			close(sgm.externalEventBus)
			sgm.externalEventBus = nil
		}
		sgm.statSummary.SysStats.ElapsedNsecs = time.Since(t0).Nanoseconds()
	}()

	sgm.externalEventBus = optionalEventChan
	defer func() {
		if err != nil {

			var buffered int
			if sgm.ring != nil {
				buffered = sgm.ring.Buffered()
			}

			err = fmt.Errorf(
				"failure at byte offset %s of sub-stream #%d with %s bytes buffered/unprocessed: %w",
				util.Commify64(sgm.curStreamOffset),
				sgm.statSummary.Streams,
				util.Commify(buffered),
				err,
			)

			sgm.maybeSendEvent(ErrorString, err.Error())
		}
	}()

	if preProcessTasks != nil {
		preProcessTasks(sgm)
	}
	t0 = time.Now()

	decompressed, err := source.NewDecompressor(inputReader, sgm.cfg.inputCompression)
	if err != nil {
		return err
	}
	defer decompressed.Close()

	var input io.Reader
	if sgm.cfg.RingBufferSize > 0 {
		if sgm.ring, err = source.NewRing(decompressed, source.RingConfig{
			BufferSize:  sgm.cfg.RingBufferSize,
			SectorSize:  sgm.cfg.RingBufferSectSize,
			MinRead:     sgm.cfg.RingBufferMinRead,
			MinRegion:   source.DefaultRingConfig.MinRegion,
			Stats:       &sgm.statSummary.SysStats.Stats,
			TrackTiming: ((sgm.cfg.StatsActive & statsRingbuf) == statsRingbuf),
		}); err != nil {
			return err
		}
		// only the multipart size prefixes are read directly
		input = decompressed
	} else {
		input = bufio.NewReaderSize(
			&countingReader{r: decompressed, calls: &sgm.statSummary.SysStats.ReadCalls},
			sgm.cfg.RingBufferMinRead,
		)
	}

	// use 64bits everywhere
	var substreamSize int64

	// outer stream loop
	for {
		if sgm.cfg.MultipartStream {

			substreamSize, err = source.NextSubstreamSize(input)
			if sgm.ring != nil {
				sgm.statSummary.SysStats.ReadCalls++
			}

			if err == io.EOF {
				// no new multipart coming - bail
				return nil
			} else if err != nil {
				return err
			}
		}

		sgm.statSummary.Streams++
		sgm.curStreamOffset = 0

		// a 0 limit means "until EOF" to the ring: nothing to do for an empty part
		if !sgm.cfg.MultipartStream || substreamSize > 0 {
			if err = sgm.processStream(input, substreamSize); err != nil {
				return err
			}
		}

		// we are in EOF-state: if we are not expecting multiparts - we are done
		if !sgm.cfg.MultipartStream {
			return nil
		}
	}
}

func (sgm *Segmenter) processStream(input io.Reader, streamLimit int64) error {

	var src io.Reader
	if sgm.ring != nil {
		// begin reading and filling buffer
		if err := sgm.ring.Start(streamLimit); err != nil {
			return err
		}
		src = sgm.ring
	} else if sgm.cfg.MultipartStream {
		src = source.ExactReader(input, streamLimit)
	} else {
		src = input
	}

	rawBefore, strippedBefore := sgm.engine.BytesRead(), sgm.engine.NewlinesStripped()
	err := sgm.engine.Run(src, sgm.processSegment)

	sgm.statSummary.Segments.RawInput += sgm.engine.BytesRead() - rawBefore
	sgm.statSummary.Segments.LineTerminators += sgm.engine.NewlinesStripped() - strippedBefore

	var sre *cutter.StreamReadError
	if sgm.cfg.MultipartStream && errors.As(err, &sre) && errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf(
			"unexpected end of substream #%s after %s bytes (stream expected to be %s bytes long): %w",
			util.Commify64(sgm.statSummary.Streams),
			util.Commify64(sre.Offset),
			util.Commify64(streamLimit),
			err,
		)
	}

	return err
}

func (sgm *Segmenter) processSegment(s cutter.Segment) error {

	sgm.curStreamOffset = s.Offset
	sgm.recordSegment(s)

	if sgm.segmentSink != nil {
		if err := sgm.segmentSink(s); err != nil {
			return err
		}
	}

	if sgm.externalEventBus != nil {
		sgm.maybeSendEvent(NewSegment, string(s.Data))
	}

	if sgm.cfg.emitters[emSegmentsJsonl] != nil || sgm.externalEventBus != nil {

		var digestStr string
		if sgm.hasher.Active() {
			digestStr = fmt.Sprintf(`, "digest":"%s"`, sgm.hasher.HexSum(s.Data))
		}

		jsonl := fmt.Sprintf(
			"{\"event\":\"segment\", \"stream\":%7d, \"offset\":%12d, \"length\":%7d, \"cutter\":%4d%s }\n",
			sgm.statSummary.Streams,
			s.Offset,
			len(s.Data),
			s.Cutter,
			digestStr,
		)
		sgm.maybeSendEvent(NewSegmentJsonl, jsonl)

		if w := sgm.cfg.emitters[emSegmentsJsonl]; w != nil {
			if _, err := io.WriteString(w, jsonl); err != nil {
				return &cutter.SinkWriteError{Emitter: emSegmentsJsonl, Err: err}
			}
		}
	}

	sgm.curStreamOffset += int64(len(s.Data))
	return nil
}

func (sgm *Segmenter) recordSegment(s cutter.Segment) {
	smr := &sgm.statSummary

	smr.Segments.Count++
	smr.Segments.Payload += int64(len(s.Data))
	if smr.Segments.Count == 1 || len(s.Data) < smr.Segments.Smallest {
		smr.Segments.Smallest = len(s.Data)
	}
	if len(s.Data) > smr.Segments.Largest {
		smr.Segments.Largest = len(s.Data)
	}

	if s.IsTail() {
		smr.TailSegments++
	} else {
		smr.Cutters[s.Cutter].Hits++
	}

	if sgm.seenSegments != nil {
		k := digest.SeenKey(s.Data)
		if _, seen := sgm.seenSegments[k]; !seen {
			sgm.seenSegments[k] = len(s.Data)
		}
	}
}

// counts the read(2)s behind the plain buffered reader, the ring does its own
type countingReader struct {
	r     io.Reader
	calls *int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	*cr.calls++
	return cr.r.Read(p)
}

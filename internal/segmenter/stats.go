package segmenter

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ipfs/go-qringbuf"

	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/digest"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util"
)

// the value is the segment size, for the unique weight
type seenSegments map[[digest.SeenKeySize]byte]int

type statSummary struct {
	EventType string `json:"event"`
	RunID     string `json:"runId"`
	Segments  struct {
		Count           int64 `json:"count"`
		Payload         int64 `json:"payload"`
		RawInput        int64 `json:"rawInput"`
		LineTerminators int64 `json:"lineTerminatorsStripped"`
		Smallest        int   `json:"smallest"`
		Largest         int   `json:"largest"`
		Unique          *struct {
			Count   int64 `json:"count"`
			Payload int64 `json:"payload"`
		} `json:"unique,omitempty"`
	} `json:"segments"`
	Streams      int64         `json:"subStreams"`
	TailSegments int64         `json:"tailSegments"`
	Cutters      []cutterStats `json:"cutters"`
	SysStats     struct {
		ArgvExpanded []string `json:"argvExpanded"`
		ArgvInitial  []string `json:"argvInitial"`
		qringbuf.Stats
		ElapsedNsecs int64 `json:"elapsedNanoseconds"`

		// getrusage() section
		CpuUserNsecs int64 `json:"cpuUserNanoseconds"`
		CpuSysNsecs  int64 `json:"cpuSystemNanoseconds"`
		MaxRssBytes  int64 `json:"maxMemoryUsed"`
		MinFlt       int64 `json:"cacheMinorFaults"`
		MajFlt       int64 `json:"cacheMajorFaults"`
		BioRead      int64 `json:"blockIoReads,omitempty"`
		BioWrite     int64 `json:"blockIoWrites,omitempty"`
		Sigs         int64 `json:"signalsReceived,omitempty"`
		CtxSwYield   int64 `json:"contextSwitchYields"`
		CtxSwForced  int64 `json:"contextSwitchForced"`

		// for context
		PageSize  int    `json:"pageSize"`
		NumCPU    int    `json:"cpuCount"`
		GoVersion string `json:"goVersion"`
	} `json:"sys"`
}
type cutterStats struct {
	Line      int    `json:"line"`
	Pattern   string `json:"pattern"`
	CutOffset int    `json:"cutOffset"`
	Hits      int64  `json:"hits"`
}

func (sgm *Segmenter) OutputSummary() {

	// no stats emitters - nowhere to output
	if sgm.cfg.emitters[emStatsText] == nil && sgm.cfg.emitters[emStatsJsonl] == nil {
		return
	}

	smr := &sgm.statSummary

	if sgm.seenSegments != nil && smr.Segments.Unique == nil {
		smr.Segments.Unique = &struct {
			Count   int64 `json:"count"`
			Payload int64 `json:"payload"`
		}{}
		for _, size := range sgm.seenSegments {
			smr.Segments.Unique.Count++
			smr.Segments.Unique.Payload += int64(size)
		}
	}

	if statsJsonlOut := sgm.cfg.emitters[emStatsJsonl]; statsJsonlOut != nil {
		// emit the JSON last, so that piping to e.g. `jq` works nicer
		defer func() {

			// because the golang encoder is garbage
			if smr.Cutters == nil {
				smr.Cutters = []cutterStats{}
			}

			jsonl, err := json.Marshal(smr)
			if err != nil {
				log.Fatalf("Encoding stats-jsonl failed: %s", err)
			}

			if _, err := fmt.Fprintf(statsJsonlOut, "%s\n", jsonl); err != nil {
				log.Fatalf("Emitting '%s' failed: %s", emStatsJsonl, err)
			}
		}()
	}

	statsTextOut := sgm.cfg.emitters[emStatsText]
	if statsTextOut == nil {
		return
	}

	var substreamsDesc string
	if sgm.cfg.MultipartStream {
		substreamsDesc = fmt.Sprintf(
			" from %s substreams",
			util.Commify64(smr.Streams),
		)
	}

	writeTextOutf := func(f string, args ...interface{}) {
		if _, err := fmt.Fprintf(statsTextOut, f, args...); err != nil {
			log.Fatalf("Emitting '%s' failed: %s", emStatsText, err)
		}
	}

	writeTextOutf(
		"\nProcessing took %0.2f seconds using %0.2f vCPU and %0.2f MiB peak memory"+
			"\nPerforming %s system reads using %0.2f vCPU at about %0.2f MiB/s"+
			"\nIngesting input of:%19s bytes%s\n"+
			"Stripping newlines:%19s bytes\n\n",

		float64(smr.SysStats.ElapsedNsecs)/
			1000000000,

		float64(smr.SysStats.CpuUserNsecs)/
			float64(smr.SysStats.ElapsedNsecs),

		float64(smr.SysStats.MaxRssBytes)/
			(1024*1024),

		util.Commify64(smr.SysStats.ReadCalls),

		float64(smr.SysStats.CpuSysNsecs)/
			float64(smr.SysStats.ElapsedNsecs),

		(float64(smr.Segments.RawInput)/(1024*1024))/
			(float64(smr.SysStats.ElapsedNsecs)/1000000000),

		util.Commify64(smr.Segments.RawInput),

		substreamsDesc,

		util.Commify64(smr.Segments.LineTerminators),
	)

	if smr.Segments.Count == 0 {
		return
	}

	descParts := make([]string, 0, 8+len(smr.Cutters))

	descParts = append(descParts, fmt.Sprintf(
		"Segmented payload of:%16s bytes into %s segments, sized %s to %s ( avg %s )\n",
		util.Commify64(smr.Segments.Payload),
		util.Commify64(smr.Segments.Count),
		util.Commify(smr.Segments.Smallest),
		util.Commify(smr.Segments.Largest),
		util.Commify64(smr.Segments.Payload/smr.Segments.Count),
	))

	if u := smr.Segments.Unique; u != nil && u.Count > 0 {
		descParts = append(descParts, fmt.Sprintf(
			"Dataset deduped into:%16s bytes over %s unique segments, %.02f%% of original\n",
			util.Commify64(u.Payload),
			util.Commify64(u.Count),
			100*float64(u.Payload)/float64(smr.Segments.Payload),
		))
	}

	descParts = append(descParts, "\n        Hits  Line  Cutter\n")

	// most productive first
	order := make([]int, len(smr.Cutters))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return smr.Cutters[order[i]].Hits > smr.Cutters[order[j]].Hits
	})
	for _, i := range order {
		c := smr.Cutters[i]
		descParts = append(descParts, fmt.Sprintf(
			"%12s %5d  %s|%s\n",
			util.Commify64(c.Hits),
			c.Line,
			c.Pattern[:c.CutOffset],
			c.Pattern[c.CutOffset:],
		))
	}
	descParts = append(descParts, fmt.Sprintf(
		"%12s     -  ( stream tails )\n",
		util.Commify64(smr.TailSegments),
	))

	writeTextOutf("%s\n", strings.Join(descParts, ""))
}

package segmenter

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"

	"github.com/ipfs-shipyard/DNAcutter/internal/constants"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/digest"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/source"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/table"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util"
)

type config struct {
	optSet *getopt.Set

	// where to output
	emitters emissionTargets

	//
	// Bulk of CLI options definition starts here, the rest further down in initArgvParser()
	//

	Help            bool `getopt:"-h --help             Display basic help"`
	Version         bool `getopt:"--version             Display the program version and exit"`
	MultipartStream bool `getopt:"--multipart           Expect multiple SInt64BE-size-prefixed streams on stdIN, segmented independently of each other"`

	CutterSeparator string `getopt:"--cutter-separator=char   The single character separating the prefix and suffix of every cutter definition. Default:"`
	Encoding        string `getopt:"--encoding=name           Character encoding of the cutter file ( any WHATWG label ). Default:"`
	ChunkSize       int    `getopt:"--chunk-size=bytes        Amount of input consumed per segmentation round. Default:"`

	RingBufferSize     int `getopt:"--ring-buffer-size=bytes        The size of the quantized ring buffer used for ingestion, 0 reads via a plain buffered reader instead. Default:"`
	RingBufferSectSize int `getopt:"--ring-buffer-sync-size=bytes   (EXPERT SETTING) The size of each buffer synchronization sector. Default:"` // option vaguely named 'sync' to not confuse users
	RingBufferMinRead  int `getopt:"--ring-buffer-min-sysread=bytes (EXPERT SETTING) Perform next read(2) only when the specified amount of free space is available in the buffer. Default:"`

	StatsActive uint `getopt:"--stats-active=uint   A bitfield representing activated stat aggregations: bit0:SegmentDedup, bit1:RingbufferTiming. Default:"`

	inputCompression string // option/helptext in initArgvParser()
	hashFunc         string // option/helptext in initArgvParser()

	emittersStdErr []string // emitter list: option/helptext in initArgvParser()
	emittersStdOut []string // emitter list: option/helptext in initArgvParser()

	// the sole positional argument
	cutterFile string
}

const (
	statsSegments = 1 << iota
	statsRingbuf
)

type emissionTargets map[string]io.Writer

const (
	emNone          = "none"
	emSegments      = "segments"
	emSegmentsJsonl = "segments-jsonl"
	emStatsText     = "stats-text"
	emStatsJsonl    = "stats-jsonl"
)

// where the CLI initial error messages go
var argParseErrOut io.Writer = os.Stderr

func NewFromArgv(argv []string) (sgm *Segmenter) {

	sgm, argParseErrs := newFromArgv(argv, os.Stdout, os.Stderr)
	cfg := &sgm.cfg

	if cfg.Help {
		cfg.optSet.PrintUsage(argParseErrOut)
		os.Exit(0)
	}

	if cfg.Version {
		fmt.Printf("stream-cutter %s\n", constants.Version)
		os.Exit(0)
	}

	if len(argParseErrs) != 0 {
		fmt.Fprint(argParseErrOut, "\nFatal error parsing arguments:\n\n")
		cfg.optSet.PrintUsage(argParseErrOut)

		sort.Strings(argParseErrs)
		fmt.Fprintf(
			argParseErrOut,
			"Fatal error parsing arguments:\n\t%s\n",
			strings.Join(argParseErrs, "\n\t"),
		)
		os.Exit(1)
	}

	for _, line := range table.EmptyPatterns(sgm.cutters) {
		log.Printf(
			"Warning: line %d of cutter file '%s' is an empty pattern: it matches everywhere, cutting the stream into single bytes",
			line,
			cfg.cutterFile,
		)
	}

	return
}

// newFromArgv does everything NewFromArgv does, short of exiting. Argument
// problems are accumulated and returned, to present to the user all at once.
func newFromArgv(argv []string, stdout, stderr io.Writer) (sgm *Segmenter, argParseErrs []string) {

	sgm = &Segmenter{
		cfg: config{
			CutterSeparator:  string(constants.DefaultSeparator),
			Encoding:         constants.DefaultEncoding,
			ChunkSize:        constants.DefaultChunkSize,
			inputCompression: source.CompressionNone,
			hashFunc:         "none",

			RingBufferSize:     source.DefaultRingConfig.BufferSize,
			RingBufferMinRead:  source.DefaultRingConfig.MinRead,
			RingBufferSectSize: source.DefaultRingConfig.SectorSize,

			emittersStdOut: []string{emSegments},
			emittersStdErr: []string{emNone},

			// not defaults but rather the list of known/configured emitters
			emitters: emissionTargets{
				emNone:          nil,
				emSegments:      nil,
				emSegmentsJsonl: nil,
				emStatsText:     nil,
				emStatsJsonl:    nil,
			},
		},
	}

	sgm.initStatSummary(argv)

	cfg := &sgm.cfg
	cfg.initArgvParser()

	argParseErrs = util.ArgParse(argv, cfg.optSet)

	if cfg.Help || cfg.Version {
		return sgm, nil
	}

	if args := cfg.optSet.Args(); len(args) != 1 {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"Exactly one cutter_filename argument expected, got %d",
			len(args),
		))
	} else {
		cfg.cutterFile = args[0]
	}

	sep, sepLen := utf8.DecodeRuneInString(cfg.CutterSeparator)
	if utf8.RuneCountInString(cfg.CutterSeparator) != 1 || sep == utf8.RuneError && sepLen <= 1 {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"The value of --cutter-separator must be exactly one character, got '%s'",
			cfg.CutterSeparator,
		))
	} else if sep == '\n' || sep == '\r' {
		argParseErrs = append(argParseErrs, "The value of --cutter-separator can not be a line terminator")
	}

	if cfg.ChunkSize < 1 || cfg.ChunkSize > constants.MaxChunkSize {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"--chunk-size '%s' out of bounds [1:%s]",
			util.Commify(cfg.ChunkSize),
			util.Commify(constants.MaxChunkSize),
		))
	}

	if cfg.RingBufferSize < 0 || cfg.RingBufferSectSize < 1 || cfg.RingBufferMinRead < 1 {
		argParseErrs = append(argParseErrs, "Ring buffer sizes must be positive ( --ring-buffer-size=0 disables the ring buffer )")
	}

	if _, known := source.AvailableDecompressors[cfg.inputCompression]; !known {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"Invalid --input-compression '%s'. Available decompressors are %s",
			cfg.inputCompression,
			util.AvailableMapKeys(source.AvailableDecompressors),
		))
	}

	var err error
	if sgm.hasher, err = digest.New(cfg.hashFunc); err != nil {
		argParseErrs = append(argParseErrs, err.Error())
	}

	argParseErrs = append(argParseErrs, sgm.setupEmitters(stdout, stderr)...)

	// only bother with the file once everything else checks out
	if len(argParseErrs) == 0 {
		if sgm.cutters, err = table.LoadFile(cfg.cutterFile, cfg.Encoding, sep); err != nil {
			argParseErrs = append(argParseErrs, err.Error())
		} else if sgm.engine, err = NewEngine(sgm.cutters, cfg.ChunkSize); err != nil {
			argParseErrs = append(argParseErrs, fmt.Sprintf(
				"Initialization of cutters from '%s' failed: %s",
				cfg.cutterFile,
				err,
			))
		}
	}

	if len(argParseErrs) != 0 {
		return
	}

	// Opts check out - take a snapshot of what we ended up with
	cfg.optSet.VisitAll(func(o getopt.Option) {
		switch o.LongName() {
		case "help", "version":
			// do nothing for these
		default:
			sgm.statSummary.SysStats.ArgvExpanded = append(
				sgm.statSummary.SysStats.ArgvExpanded, fmt.Sprintf(`--%s=%s`,
					o.LongName(),
					o.Value().String(),
				),
			)
		}
	})
	sort.Strings(sgm.statSummary.SysStats.ArgvExpanded)

	sgm.initCutterStats()

	return
}

func (cfg *config) initArgvParser() {
	// The default documented way of using pborman/options is to muck with globals
	// Operate over objects instead, allowing us to re-parse argv multiple times
	o := getopt.New()
	if err := options.RegisterSet("", cfg, o); err != nil {
		log.Fatalf("option set registration failed: %s", err)
	}
	cfg.optSet = o

	o.SetParameters("cutter_filename")

	// Several options have the help-text assembled programmatically
	o.FlagLong(&cfg.inputCompression, "input-compression", 0,
		"Decompress stdIN before segmenting, one of: "+util.AvailableMapKeys(source.AvailableDecompressors)+". Default:",
		"string",
	)
	o.FlagLong(&cfg.hashFunc, "hash", 0,
		"Hash function used to digest every segment in "+emSegmentsJsonl+", one of: "+util.AvailableMapKeys(digest.AvailableHashers)+". Default:",
		"string",
	)
	o.FlagLong(&cfg.emittersStdErr, "emit-stderr", 0, fmt.Sprintf(
		"One or more emitters to activate on stdERR. Available emitters are %s. Default: ",
		util.AvailableMapKeys(cfg.emitters),
	), "commaSepEmitters")
	o.FlagLong(&cfg.emittersStdOut, "emit-stdout", 0,
		"One or more emitters to activate on stdOUT. Available emitters same as above. Default: ",
		"commaSepEmitters",
	)
}

func (sgm *Segmenter) setupEmitters(stdout, stderr io.Writer) (argErrs []string) {

	for _, target := range []struct {
		optName  string
		selected []string
		out      io.Writer
	}{
		{"emit-stderr", sgm.cfg.emittersStdErr, stderr},
		{"emit-stdout", sgm.cfg.emittersStdOut, stdout},
	} {
		active := make(map[string]bool, len(target.selected))
		for _, s := range target.selected {
			active[s] = true
			if val, exists := sgm.cfg.emitters[s]; !exists {
				argErrs = append(argErrs, fmt.Sprintf("invalid emitter '%s' specified for --%s. Available emitters are: %s",
					s,
					target.optName,
					util.AvailableMapKeys(sgm.cfg.emitters),
				))
			} else if s == emNone {
				continue
			} else if val != nil {
				argErrs = append(argErrs, fmt.Sprintf("Emitter '%s' specified more than once", s))
			} else {
				sgm.cfg.emitters[s] = target.out
			}
		}

		for _, exclusiveEmitter := range []string{
			emNone,
			emSegments,
			emStatsText,
		} {
			if active[exclusiveEmitter] && len(active) > 1 {
				argErrs = append(argErrs, fmt.Sprintf(
					"When specified, emitter '%s' must be the sole argument to --%s",
					exclusiveEmitter,
					target.optName,
				))
			}
		}
	}

	if w := sgm.cfg.emitters[emSegments]; w != nil {
		sgm.segmentSink = LineSink(w, emSegments)
	}

	if sgm.hasher != nil && sgm.hasher.Active() && sgm.cfg.emitters[emSegmentsJsonl] == nil {
		log.Printf(
			"Warning: --hash=%s has no effect without the '%s' emitter",
			sgm.hasher.Name(),
			emSegmentsJsonl,
		)
	}

	return
}

package segmenter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/rand"

	"github.com/ipfs-shipyard/DNAcutter/cutter"
	"github.com/ipfs-shipyard/DNAcutter/internal/constants"
	"github.com/ipfs-shipyard/DNAcutter/maint/src/testhelpers"
)

func writeCutterFile(t *testing.T, content string) string {
	fh, err := ioutil.TempFile("", "cutters")
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if _, err := fh.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return fh.Name()
}

func mustSegmenter(t *testing.T, stdout, stderr io.Writer, args ...string) *Segmenter {
	sgm, argErrs := newFromArgv(append([]string{"stream-cutter"}, args...), stdout, stderr)
	if len(argErrs) > 0 {
		t.Fatalf("unexpected argument errors for %q: %q", args, argErrs)
	}
	return sgm
}

// runs a full ingestion, returning what landed on stdout
func segment(t *testing.T, input []byte, args ...string) string {
	var out bytes.Buffer
	sgm := mustSegmenter(t, &out, ioutil.Discard, args...)
	defer sgm.Destroy()
	if err := sgm.ProcessReader(bytes.NewReader(input), nil); err != nil {
		t.Fatalf("unexpected processing error for %q: %s", args, err)
	}
	return out.String()
}

func TestArgvErrors(t *testing.T) {

	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	for _, tc := range []struct {
		args     []string
		expected string
	}{
		{[]string{}, "Exactly one cutter_filename argument expected, got 0"},
		{[]string{cutterFile, cutterFile}, "Exactly one cutter_filename argument expected, got 2"},
		{[]string{"--cutter-separator=ab", cutterFile}, "must be exactly one character"},
		{[]string{"--cutter-separator=", cutterFile}, "must be exactly one character"},
		{[]string{"--chunk-size=0", cutterFile}, "--chunk-size '0' out of bounds"},
		{[]string{"--ring-buffer-size=-1", cutterFile}, "Ring buffer sizes must be positive"},
		{[]string{"--emit-stdout=bogus", cutterFile}, "invalid emitter 'bogus' specified for --emit-stdout"},
		{[]string{"--emit-stdout=none,segments-jsonl", cutterFile}, "emitter 'none' must be the sole argument to --emit-stdout"},
		{[]string{"--emit-stderr=segments,stats-jsonl", cutterFile}, "emitter 'segments' must be the sole argument to --emit-stderr"},
		{[]string{"--emit-stdout=stats-jsonl", "--emit-stderr=stats-jsonl", cutterFile}, "Emitter 'stats-jsonl' specified more than once"},
		{[]string{"--hash=md5", cutterFile}, "invalid hash function 'md5'"},
		{[]string{"--input-compression=lz4", cutterFile}, "Invalid --input-compression 'lz4'"},
		{[]string{"--encoding=klingon", cutterFile}, "cutter table '" + cutterFile + "'"},
		{[]string{"/nonexistent/cutters.txt"}, "cutter table '/nonexistent/cutters.txt'"},
		{[]string{"--no-such-option", cutterFile}, "no-such-option"},
	} {
		_, argErrs := newFromArgv(append([]string{"stream-cutter"}, tc.args...), ioutil.Discard, ioutil.Discard)

		var found bool
		for _, e := range argErrs {
			if strings.Contains(e, tc.expected) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("args %q: expected an error containing %q, got %q", tc.args, tc.expected, argErrs)
		}
	}
}

func TestArgvHelpVersion(t *testing.T) {
	// neither needs a cutter file
	for _, arg := range []string{"--help", "-h", "--version"} {
		sgm, argErrs := newFromArgv([]string{"stream-cutter", arg}, ioutil.Discard, ioutil.Discard)
		if len(argErrs) > 0 {
			t.Errorf("%s: unexpected errors %q", arg, argErrs)
		}
		if !sgm.cfg.Help && !sgm.cfg.Version {
			t.Errorf("%s: flag not registered", arg)
		}
	}
}

func TestArgvExpandedSnapshot(t *testing.T) {
	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	sgm := mustSegmenter(t, ioutil.Discard, ioutil.Discard, "--chunk-size=7", cutterFile)

	var found bool
	for _, a := range sgm.statSummary.SysStats.ArgvExpanded {
		if a == "--chunk-size=7" {
			found = true
		}
	}
	if !found {
		t.Errorf("expanded argv lacks the chunk size: %q", sgm.statSummary.SysStats.ArgvExpanded)
	}
}

func TestProcessReaderScenario(t *testing.T) {
	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	for _, rbs := range []string{"--ring-buffer-size=0", "--ring-buffer-size=25165824"} {
		if out := segment(t, []byte("TTAGGCC\n"), rbs, cutterFile); out != "TTA\nGGCC\n" {
			t.Errorf("%s: unexpected output %q", rbs, out)
		}
	}
}

func TestAlternateSeparatorAndEncoding(t *testing.T) {
	cutterFile := writeCutterFile(t, "A\tGG\n")
	defer os.Remove(cutterFile)

	if out := segment(t, []byte("TTAGGCC"), "--cutter-separator=\t", "--encoding=latin1", cutterFile); out != "TTA\nGGCC\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRingMatchesPlainReader(t *testing.T) {

	cutterFile := writeCutterFile(t, "GAA|TTC\nGG|CC\nTTTT|\nA|CGT\n")
	defer os.Remove(cutterFile)

	n := 3 * 1024 * 1024
	if constants.LongTests {
		n = 64 * 1024 * 1024
	}
	input := testhelpers.RandomSequence(rand.New(rand.NewSource(3)), "ACGT", n, 60)

	for _, chunkSize := range []string{"--chunk-size=1024", "--chunk-size=65536"} {
		plain := segment(t, input, chunkSize, "--ring-buffer-size=0", cutterFile)
		ring := segment(t, input, chunkSize, cutterFile)

		if plain != ring {
			t.Fatalf("%s: ring and plain reader outputs differ ( %d vs %d bytes )", chunkSize, len(ring), len(plain))
		}
		if strings.Replace(plain, "\n", "", -1) != strings.Replace(string(input), "\n", "", -1) {
			t.Fatalf("%s: segments do not reassemble into the input", chunkSize)
		}
	}
}

func TestCompressedInput(t *testing.T) {

	cutterFile := writeCutterFile(t, "GAA|TTC\nGG|CC\n")
	defer os.Remove(cutterFile)

	input := testhelpers.RandomSequence(rand.New(rand.NewSource(5)), "ACGT", 200000, 70)

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	if err != nil {
		t.Fatal(err)
	}
	enc.Write(input)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	raw := segment(t, input, cutterFile)
	for _, kind := range []string{"zstd", "auto"} {
		if out := segment(t, compressed.Bytes(), "--input-compression="+kind, cutterFile); out != raw {
			t.Errorf("--input-compression=%s output differs from the uncompressed run", kind)
		}
	}
}

func TestMultipart(t *testing.T) {

	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	input := testhelpers.MultipartStream(
		[]byte("TTAG\n"),
		nil,
		[]byte("GCCAGGT\n"),
	)

	for _, rbs := range []string{"--ring-buffer-size=0", "--ring-buffer-size=25165824"} {
		var out, stats bytes.Buffer
		sgm := mustSegmenter(t, &out, &stats, "--multipart", "--emit-stderr=stats-jsonl", rbs, cutterFile)
		if err := sgm.ProcessReader(bytes.NewReader(input), nil); err != nil {
			t.Fatalf("%s: unexpected error: %s", rbs, err)
		}
		sgm.OutputSummary()
		sgm.Destroy()

		// the AGG spanning the first and third part must not cut
		if out.String() != "TTAG\nGCCA\nGGT\n" {
			t.Errorf("%s: unexpected output %q", rbs, out.String())
		}
		if sgm.statSummary.Streams != 3 {
			t.Errorf("%s: expected 3 substreams, got %d", rbs, sgm.statSummary.Streams)
		}
	}
}

func TestMultipartTruncated(t *testing.T) {

	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	input := testhelpers.MultipartStream([]byte("TTAGGCC"))
	input = input[:len(input)-2]

	for _, rbs := range []string{"--ring-buffer-size=0", "--ring-buffer-size=25165824"} {
		sgm := mustSegmenter(t, ioutil.Discard, ioutil.Discard, "--multipart", rbs, cutterFile)
		err := sgm.ProcessReader(bytes.NewReader(input), nil)
		sgm.Destroy()

		var sre *cutter.StreamReadError
		if !errors.As(err, &sre) || !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("%s: expected a truncation error, got %T: %v", rbs, err, err)
		}
		if !strings.Contains(err.Error(), "unexpected end of substream #1") {
			t.Errorf("%s: error lacks substream context: %s", rbs, err)
		}
	}
}

func TestEvents(t *testing.T) {

	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	var out bytes.Buffer
	sgm := mustSegmenter(t, &out, ioutil.Discard, "--emit-stdout=segments-jsonl", "--hash=sha2-256", cutterFile)
	defer sgm.Destroy()

	events := make(chan Event, 64)
	if err := sgm.ProcessReader(strings.NewReader("TTAGGCC"), events); err != nil {
		t.Fatal(err)
	}

	var segments, jsonls []string
	for ev := range events {
		switch ev.Type {
		case NewSegment:
			segments = append(segments, ev.Body)
		case NewSegmentJsonl:
			jsonls = append(jsonls, ev.Body)
		default:
			t.Errorf("unexpected event %#v", ev)
		}
	}

	if !equalStrings(segments, []string{"TTA", "GGCC"}) {
		t.Errorf("unexpected segment events %q", segments)
	}
	if strings.Join(jsonls, "") != out.String() {
		t.Errorf("jsonl events and emitted jsonl differ:\n%s\n%s", strings.Join(jsonls, ""), out.String())
	}

	type segmentLine struct {
		Event  string `json:"event"`
		Stream int    `json:"stream"`
		Offset int64  `json:"offset"`
		Length int    `json:"length"`
		Cutter int    `json:"cutter"`
		Digest string `json:"digest"`
	}
	var lines []segmentLine
	dec := json.NewDecoder(&out)
	for dec.More() {
		var l segmentLine
		if err := dec.Decode(&l); err != nil {
			t.Fatalf("undecodable jsonl: %s", err)
		}
		lines = append(lines, l)
	}

	expected := []segmentLine{
		{"segment", 1, 0, 3, 0, "e7d61fce53e31fe221a02e9ac3642747647feaee0ac86b182e3f7b904adfbf6a"},
		{"segment", 1, 3, 4, cutter.TailCutter, "443e8e1851df324f6bbaed8fad70a91188e71c205d7b8aca0bc29214852695f7"},
	}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d jsonl lines, got %#v", len(expected), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("jsonl line #%d: expected %#v, got %#v", i, expected[i], lines[i])
		}
	}
}

func TestErrorEvent(t *testing.T) {
	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	sgm := mustSegmenter(t, ioutil.Discard, ioutil.Discard, "--ring-buffer-size=0", cutterFile)
	defer sgm.Destroy()

	boom := errors.New("device on fire")
	events := make(chan Event, 64)
	err := sgm.ProcessReader(io.MultiReader(strings.NewReader("TTAGG"), failingIO{boom}), events)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the read failure to be passed through, got %v", err)
	}

	var errorEvents []string
	for ev := range events {
		if ev.Type == ErrorString {
			errorEvents = append(errorEvents, ev.Body)
		}
	}
	if len(errorEvents) != 1 || errorEvents[0] != err.Error() {
		t.Errorf("expected a single error event matching the returned error, got %q", errorEvents)
	}
}

func TestSinkFailure(t *testing.T) {
	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	boom := errors.New("pipe on fire")
	sgm := mustSegmenter(t, failingIO{boom}, ioutil.Discard, cutterFile)
	defer sgm.Destroy()

	err := sgm.ProcessReader(strings.NewReader("TTAGGCC"), nil)

	var swe *cutter.SinkWriteError
	if !errors.As(err, &swe) || !errors.Is(err, boom) || swe.Emitter != emSegments {
		t.Fatalf("expected a *cutter.SinkWriteError, got %T: %v", err, err)
	}
}

func TestStatsSummary(t *testing.T) {

	cutterFile := writeCutterFile(t, "A|GG\nCC|\n")
	defer os.Remove(cutterFile)

	var out, stats bytes.Buffer
	sgm := mustSegmenter(t, &out, &stats, "--stats-active=1", "--emit-stderr=stats-jsonl", cutterFile)
	if err := sgm.ProcessReader(strings.NewReader("TTAGG\nCCAGGCC\nAT\n"), nil); err != nil {
		t.Fatal(err)
	}
	sgm.OutputSummary()
	sgm.Destroy()

	// TTAGGCCAGGCCAT
	if out.String() != "TTA\nGGCC\nA\nGGCC\nAT\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	var smr struct {
		Event    string `json:"event"`
		RunID    string `json:"runId"`
		Segments struct {
			Count           int64 `json:"count"`
			Payload         int64 `json:"payload"`
			RawInput        int64 `json:"rawInput"`
			LineTerminators int64 `json:"lineTerminatorsStripped"`
			Smallest        int   `json:"smallest"`
			Largest         int   `json:"largest"`
			Unique          struct {
				Count   int64 `json:"count"`
				Payload int64 `json:"payload"`
			} `json:"unique"`
		} `json:"segments"`
		Streams      int64 `json:"subStreams"`
		TailSegments int64 `json:"tailSegments"`
		Cutters      []struct {
			Line int   `json:"line"`
			Hits int64 `json:"hits"`
		} `json:"cutters"`
	}
	if err := json.Unmarshal(stats.Bytes(), &smr); err != nil {
		t.Fatalf("undecodable summary %q: %s", stats.String(), err)
	}

	if smr.Event != "summary" || len(smr.RunID) != 36 || smr.Streams != 1 {
		t.Errorf("unexpected summary header %#v", smr)
	}
	s := smr.Segments
	if s.Count != 5 || s.Payload != 14 || s.RawInput != 17 || s.LineTerminators != 3 || s.Smallest != 1 || s.Largest != 4 {
		t.Errorf("unexpected segment stats %#v", s)
	}
	// GGCC repeats
	if s.Unique.Count != 4 || s.Unique.Payload != 10 {
		t.Errorf("unexpected dedup stats %#v", s.Unique)
	}
	if len(smr.Cutters) != 2 || smr.Cutters[0].Hits != 2 || smr.Cutters[1].Hits != 2 || smr.TailSegments != 1 {
		t.Errorf("unexpected cutter hits %#v tails %d", smr.Cutters, smr.TailSegments)
	}
}

func TestStatsText(t *testing.T) {
	cutterFile := writeCutterFile(t, "A|GG\n")
	defer os.Remove(cutterFile)

	var stats bytes.Buffer
	sgm := mustSegmenter(t, ioutil.Discard, &stats, "--stats-active=1", "--emit-stderr=stats-text", cutterFile)
	if err := sgm.ProcessReader(strings.NewReader("TTAGGTTAGGTTA"), nil); err != nil {
		t.Fatal(err)
	}
	sgm.OutputSummary()
	sgm.Destroy()

	for _, expected := range []string{
		"into 3 segments",
		"over 2 unique segments",
		"A|GG",
	} {
		if !strings.Contains(stats.String(), expected) {
			t.Errorf("text summary lacks %q:\n%s", expected, stats.String())
		}
	}
}

package main

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/source"
)

// Concatenates every file given on the command line into a single
// `stream-cutter --multipart` stream on stdout. Compressed ( zstd / xz )
// inputs are recognized and decompressed on the fly.
func main() {

	defer func() {
		if err := os.Stdout.Close(); err != nil {
			log.Fatalf("Failed stdout flush: %s", err)
		}
	}()

	// each file's decompressed size is SInt64-prefixed to the output
	for _, fn := range os.Args[1:] {

		// first pass only to determine the size
		size := decompressFile(fn, ioutil.Discard)

		if err := binary.Write(os.Stdout, binary.BigEndian, size); err != nil {
			log.Fatalf("Failed writing streamsize to stdout: %s", err)
		}

		if written := decompressFile(fn, os.Stdout); written != size {
			log.Fatalf("Content of '%s' changed while framing: %d bytes announced, %d written", fn, size, written)
		}
	}
}

// fatal()s-out in case of error
func decompressFile(fn string, sink io.Writer) int64 {

	in, openErr := os.Open(fn)
	if openErr != nil {
		log.Fatalf("Open of '%s' failed: %s", fn, openErr)
	}

	decompressor, initErr := source.NewDecompressor(in, source.CompressionAuto)
	if initErr != nil {
		log.Fatalf("Failed decompressor construction for '%s': %s", fn, initErr)
	}

	defer func() {
		decompressor.Close()

		if err := in.Close(); err != nil {
			log.Fatalf("Failed input close: %s", err)
		}
	}()

	written, copyErr := io.Copy(sink, decompressor)
	if copyErr != nil {
		log.Fatalf("Decompression of '%s' failed after %d bytes: %s", fn, written, copyErr)
	}

	return written
}

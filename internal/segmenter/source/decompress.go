package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionXz   = "xz"
	CompressionAuto = "auto"
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
)

type decompressorMaker func(io.Reader) (io.ReadCloser, error)

// AvailableDecompressors lists every valid --input-compression value
// "auto" resolves to one of the others by sniffing the stream header
var AvailableDecompressors = map[string]decompressorMaker{
	CompressionNone: func(r io.Reader) (io.ReadCloser, error) {
		return ioutil.NopCloser(r), nil
	},
	CompressionZstd: func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	},
	CompressionXz: func(r io.Reader) (io.ReadCloser, error) {
		x, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return ioutil.NopCloser(x), nil
	},
	CompressionAuto: nil,
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewDecompressor wraps r according to kind. The returned closer releases
// decompressor resources only, it never closes r itself.
func NewDecompressor(r io.Reader, kind string) (io.ReadCloser, error) {

	if kind == CompressionAuto {
		var err error
		if kind, r, err = Sniff(r); err != nil {
			return nil, err
		}
	}

	maker, known := AvailableDecompressors[kind]
	if !known || maker == nil {
		return nil, fmt.Errorf("unknown input compression '%s'", kind)
	}

	dr, err := maker(r)
	if err != nil {
		return nil, fmt.Errorf("initialization of '%s' decompressor failed: %s", kind, err)
	}
	return dr, nil
}

// Sniff peeks at the start of r and reports the compression it is using.
// The returned reader must be used in place of r from then on.
func Sniff(r io.Reader) (kind string, replacement io.Reader, err error) {
	br := bufio.NewReaderSize(r, 64*1024)

	hdr, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return "", nil, err
	}

	switch {
	case bytes.HasPrefix(hdr, zstdMagic):
		kind = CompressionZstd
	case bytes.HasPrefix(hdr, xzMagic):
		kind = CompressionXz
	default:
		kind = CompressionNone
	}

	return kind, br, nil
}

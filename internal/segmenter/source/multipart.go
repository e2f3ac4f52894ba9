package source

import (
	"encoding/binary"
	"fmt"
	"io"
)

// NextSubstreamSize reads the SInt64BE length prefix of the next substream
// of a --multipart stream. A clean io.EOF means there are no more substreams.
func NextSubstreamSize(r io.Reader) (int64, error) {
	var size int64

	err := binary.Read(r, binary.BigEndian, &size)
	if err == io.EOF {
		return 0, io.EOF
	} else if err != nil {
		return 0, fmt.Errorf(
			"error reading next 8-byte multipart substream size: %s",
			err,
		)
	}

	if size < 0 {
		return 0, fmt.Errorf("invalid negative multipart substream size %d", size)
	}

	return size, nil
}

type exactReader struct {
	r         io.Reader
	remaining int64
}

// ExactReader returns a reader serving exactly size bytes of r. Running out
// of data early is reported as io.ErrUnexpectedEOF rather than io.EOF.
func ExactReader(r io.Reader, size int64) io.Reader {
	return &exactReader{r: r, remaining: size}
}

func (er *exactReader) Read(p []byte) (n int, err error) {
	if er.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > er.remaining {
		p = p[:er.remaining]
	}

	n, err = er.r.Read(p)
	er.remaining -= int64(n)

	if err == io.EOF {
		if er.remaining > 0 {
			err = io.ErrUnexpectedEOF
		}
	}
	return
}

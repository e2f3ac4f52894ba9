package testhelpers

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
	"golang.org/x/exp/rand"
)

// EncodeTestVector packs a failing corpus into something pasteable
func EncodeTestVector(data []byte) string {

	var out bytes.Buffer
	b64 := base64.NewEncoder(base64.StdEncoding, &out)

	compressor, initErr := xz.WriterConfig{
		Properties: &(lzma.Properties{
			PB: 0,
			LC: 2,
			LP: 0,
		}),
		DictCap:  8 * 1024 * 1024,
		BufSize:  8192,
		CheckSum: xz.CRC32,
	}.NewWriter(b64)

	if initErr != nil {
		log.Panicf("Failed to initialize XZ compressor: %s", initErr)
	}

	if _, err := compressor.Write(data); err != nil {
		log.Panicf("Unexpected error writing to compressor: %s", err)
	}
	if err := compressor.Close(); err != nil {
		log.Panicf("Unexpected error flushing compressor: %s", err)
	}
	if err := b64.Close(); err != nil {
		log.Panicf("Unexpected error flushing base64 encoder: %s", err)
	}

	return fmt.Sprintf(
		"\nFollows the complete %d byte test sequence, decode with: `{some-cli-paste} | base64 --decode | xz -dc | less -S`\n\n%s\n\t",
		len(data),
		out.Bytes(),
	)
}

// MultipartStream frames every part with its SInt64BE size, as expected by
// --multipart
func MultipartStream(parts ...[]byte) []byte {
	var out bytes.Buffer
	for _, p := range parts {
		binary.Write(&out, binary.BigEndian, int64(len(p)))
		out.Write(p)
	}
	return out.Bytes()
}

// RandomSequence returns n bytes drawn from alphabet, wrapped into
// lineWidth-long lines when lineWidth > 0 ( the wrapping newlines are not
// counted in n )
func RandomSequence(r *rand.Rand, alphabet string, n, lineWidth int) []byte {
	seq := make([]byte, 0, n+n/(lineWidth+1)+1)
	for i := 0; i < n; i++ {
		if lineWidth > 0 && i > 0 && i%lineWidth == 0 {
			seq = append(seq, '\n')
		}
		seq = append(seq, alphabet[r.Intn(len(alphabet))])
	}
	if lineWidth > 0 && n > 0 {
		seq = append(seq, '\n')
	}
	return seq
}

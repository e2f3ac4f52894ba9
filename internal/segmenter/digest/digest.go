package digest

import (
	"encoding/hex"
	"fmt"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
	sha256 "github.com/minio/sha256-simd"
	"github.com/twmb/murmur3"
	"golang.org/x/crypto/sha3"

	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util"
)

// AvailableHashers lists every valid --hash value
var AvailableHashers = map[string]hasher{
	"none": {
		hasherMaker: nil,
	},
	"sha2-256": {
		hasherMaker: sha256.New,
	},
	"sha3-512": {
		hasherMaker: sha3.New512,
	},
	"blake2b-256": {
		hasherMaker: blake2b.New256,
	},
	"murmur3-128": {
		hasherMaker: func() hash.Hash { return murmur3.New128() },
		unsafe:      true,
	},
}

type hasher struct {
	hasherMaker func() hash.Hash
	unsafe      bool // not collision-resistant, fine for dedup only
}

// Maker digests segment contents with a single reusable hash.Hash. It is not
// safe for concurrent use.
type Maker struct {
	name string
	h    hash.Hash
	sum  []byte
}

func New(name string) (*Maker, error) {
	opts, found := AvailableHashers[name]
	if !found {
		return nil, fmt.Errorf(
			"invalid hash function '%s'. Available hash names are %s",
			name,
			util.AvailableMapKeys(AvailableHashers),
		)
	}

	m := &Maker{name: name}
	if opts.hasherMaker != nil {
		m.h = opts.hasherMaker()
		m.sum = make([]byte, 0, m.h.Size())
	}
	return m, nil
}

func (m *Maker) Name() string { return m.name }

// Active is false for the "none" hasher
func (m *Maker) Active() bool { return m.h != nil }

// IsUnsafe reports whether the digest must not be used as a content identity
func (m *Maker) IsUnsafe() bool { return AvailableHashers[m.name].unsafe }

// Sum returns the digest of data, or nil when inactive. The result is only
// valid until the next call.
func (m *Maker) Sum(data []byte) []byte {
	if m.h == nil {
		return nil
	}
	m.h.Reset()
	m.h.Write(data) // never errors
	m.sum = m.h.Sum(m.sum[:0])
	return m.sum
}

func (m *Maker) HexSum(data []byte) string {
	return hex.EncodeToString(m.Sum(data))
}

const SeenKeySize = 128 / 8

// SeenKey is the fixed-size murmur3 fingerprint used to count distinct
// segments, independent of the --hash selection
func SeenKey(data []byte) (k [SeenKeySize]byte) {
	h1, h2 := murmur3.Sum128(data)
	for i := 0; i < 8; i++ {
		k[i] = byte(h1 >> (56 - 8*uint(i)))
		k[8+i] = byte(h2 >> (56 - 8*uint(i)))
	}
	return
}

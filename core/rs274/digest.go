package rs274

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Blake3Hash returns the hex-encoded BLAKE3-256 digest of data.
func Blake3Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest returns the content digest of the block's canonical serialization.
// Two blocks normalize identically exactly when their digests match, which
// is what the idempotence checks and the run transcripts compare.
func (b *Block) Digest() string {
	return Blake3Hash([]byte(b.String()))
}

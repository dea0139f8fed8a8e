package identify

import (
	"crypto/md5"
	"encoding/hex"
)

// HashImage returns the content fingerprint of raw image bytes, used as the
// exact-dedup cache key. Same bytes always produce the same hash.
func HashImage(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

package engine

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// hashStream returns the hex-encoded BLAKE3 digest of everything r yields.
func hashStream(r io.Reader) (string, error) {
	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

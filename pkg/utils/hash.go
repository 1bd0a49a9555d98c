package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// CopyFileSHA256 copies src to dst and returns the number of bytes written
// along with the SHA-256 of the content, computed in the same pass.
func CopyFileSHA256(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, "", err
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, hash), in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, "", err
	}
	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

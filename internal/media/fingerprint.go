package media

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

// Fingerprint returns the hex SHA3-256 digest and size of the file at path.
func Fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path) //nolint:gosec // path is the file under analysis
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha3.New256()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Package reliability decides the fate of each submission before any work
// begins: equivalent uploads are deduplicated against running jobs and
// recently completed results.
package reliability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Order tokens in canonical form.
const (
	OrderNormal   = "NORM"
	OrderReversed = "REV"
)

// Fingerprint identifies an upload for deduplication: two submissions with
// the same name, size, rotation, and page order are the same work.
type Fingerprint struct {
	Name      string
	SizeBytes int64
	Rotation  int
	Order     string
}

// NewFingerprint normalizes the raw request inputs: the filename is trimmed
// and the order token upper-cased, so "rev" and "Rev" collapse to REV.
func NewFingerprint(name string, sizeBytes int64, rotation int, order string) Fingerprint {
	return Fingerprint{
		Name:      strings.TrimSpace(name),
		SizeBytes: sizeBytes,
		Rotation:  rotation,
		Order:     strings.ToUpper(strings.TrimSpace(order)),
	}
}

// Digest returns the hex-encoded SHA-256 of the canonical form. It is the
// registry key; a strong hash keeps crafted filenames from colliding registry
// entries should the registry ever sit across a trust boundary.
func (f Fingerprint) Digest() string {
	sum := sha256.Sum256([]byte(f.canonical()))
	return hex.EncodeToString(sum[:])
}

func (f Fingerprint) canonical() string {
	return fmt.Sprintf("%s\n%d\n%d\n%s", f.Name, f.SizeBytes, f.Rotation, f.Order)
}

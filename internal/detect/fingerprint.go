package detect

import (
	"crypto/md5" //nolint:gosec // must match the remote's fingerprint scheme
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives the content identity of a file within a repository.
// The digest covers the relative path, the contents and the repository id,
// in that order, so the same bytes at two paths or in two repositories
// never share a fingerprint.
type Fingerprinter interface {
	Name() string
	Fingerprint(relPath string, content []byte, repoID string) string
}

// Fingerprinter names accepted by ParseFingerprinter.
const (
	FingerprintMD5     = "md5"
	FingerprintBLAKE2b = "blake2b"
)

// MD5 is the scheme the remote store computes on its side. Use it unless
// the store is configured for BLAKE2b.
type MD5 struct{}

func (MD5) Name() string { return FingerprintMD5 }

func (MD5) Fingerprint(relPath string, content []byte, repoID string) string {
	return sum(md5.New(), relPath, content, repoID) //nolint:gosec
}

// BLAKE2b is a 256-bit BLAKE2b fingerprint over the same input as MD5.
type BLAKE2b struct{}

func (BLAKE2b) Name() string { return FingerprintBLAKE2b }

func (BLAKE2b) Fingerprint(relPath string, content []byte, repoID string) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only possible with an oversized key.
		panic(err)
	}
	return sum(h, relPath, content, repoID)
}

func sum(h hash.Hash, relPath string, content []byte, repoID string) string {
	h.Write([]byte(relPath))
	h.Write(content)
	h.Write([]byte(repoID))
	return hex.EncodeToString(h.Sum(nil))
}

// ParseFingerprinter returns the fingerprinter for name ("" = md5).
func ParseFingerprinter(name string) (Fingerprinter, error) {
	switch name {
	case "", FingerprintMD5:
		return MD5{}, nil
	case FingerprintBLAKE2b:
		return BLAKE2b{}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint scheme %q (want %s or %s)", name, FingerprintMD5, FingerprintBLAKE2b)
	}
}

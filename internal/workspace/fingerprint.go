package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint is a content-addressable hash of a unit and its direct
// dependencies.
type Fingerprint struct {
	// FileHash is the SHA-256 of the raw file content.
	FileHash string `json:"file_hash"`
	// DependencyHashes are the sorted file hashes of the unit's dependencies.
	DependencyHashes []string `json:"dependency_hashes,omitempty"`
	// CompositeHash changes whenever the unit or one of its dependencies does.
	CompositeHash string `json:"composite_hash"`
}

// Fingerprints computes fingerprints for units, keyed by path. Units are
// parsed if needed; dependencies use whatever set was last recorded.
func Fingerprints(ctx context.Context, units []*Unit) (map[string]*Fingerprint, error) {
	fileHashes := make(map[*Unit]string, len(units))
	hashOf := func(u *Unit) (string, error) {
		if h, ok := fileHashes[u]; ok {
			return h, nil
		}
		res, err := u.SyntaxTree(ctx)
		if err != nil {
			return "", err
		}
		fileHashes[u] = res.Fingerprint
		return res.Fingerprint, nil
	}

	result := make(map[string]*Fingerprint, len(units))
	for _, u := range units {
		h, err := hashOf(u)
		if err != nil {
			return nil, err
		}
		fp := &Fingerprint{FileHash: h}
		if deps, _, ok := u.Dependencies(); ok {
			for _, d := range deps {
				dh, err := hashOf(d)
				if err != nil {
					return nil, err
				}
				fp.DependencyHashes = append(fp.DependencyHashes, dh)
			}
			sort.Strings(fp.DependencyHashes)
		}
		fp.CompositeHash = computeComposite(fp.FileHash, fp.DependencyHashes)
		result[u.path] = fp
	}
	return result, nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func computeComposite(fileHash string, depHashes []string) string {
	parts := make([]string, 0, 1+len(depHashes))
	parts = append(parts, fileHash)
	parts = append(parts, depHashes...)
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

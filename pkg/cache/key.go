package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

// BatchKey identifies a batch by its content.
type BatchKey struct {
	fingerprint string
}

// NewBatchKey fingerprints the items of b. Two batches with the same items in
// the same order produce the same key.
func NewBatchKey(b fssp.Batch) BatchKey {
	h := sha256.New()
	for _, item := range b {
		fields := []string{
			strconv.Itoa(int(item.Type)),
			strconv.Itoa(item.Region),
			item.LastName,
			item.FirstName,
			item.Patronymic,
			item.BirthDate,
		}
		h.Write([]byte(strings.Join(fields, "\x1f")))
		h.Write([]byte{'\n'})
	}
	return BatchKey{fingerprint: hex.EncodeToString(h.Sum(nil))}
}

// Fingerprint returns the hex digest.
func (k BatchKey) Fingerprint() string {
	return k.fingerprint
}

// String generates the Redis key under namespace.
// Format: <namespace>:batch:<sha256 hex>
func (k BatchKey) String(namespace string) string {
	return namespace + ":batch:" + k.fingerprint
}

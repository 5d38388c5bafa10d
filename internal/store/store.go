// Package store defines the backing content store contract and provides
// the SQLite-backed content registry used to resolve version chains.
//
// The index never owns raw content bytes; it only needs to know which
// capabilities the store has and what the newest version of a uid is.
package store

import (
	"github.com/contentdex/contentdex/internal/errors"
)

// Capability flags a backing store may advertise.
const (
	// CapVersions means the store keeps every version of a uid, so each
	// version gets its own engine document.
	CapVersions = "versions"

	// CapInPlace means the store keeps original files where they are;
	// converted source files are never reclaimed after indexing.
	CapInPlace = "inplace"
)

// BackingStore is the capability surface the index manager depends on.
type BackingStore interface {
	// Capabilities returns the store's capability flags.
	Capabilities() []string

	// Tip resolves the newest version identifier recorded for uid.
	Tip(uid string) (int64, error)
}

// HasCapability reports whether caps contains name.
func HasCapability(caps []string, name string) bool {
	for _, c := range caps {
		if c == name {
			return true
		}
	}
	return false
}

// ErrUnknownUID is returned by Tip for uids the store has never seen.
var ErrUnknownUID = errors.New(errors.ErrCodeNotFound, "uid not recorded in store")

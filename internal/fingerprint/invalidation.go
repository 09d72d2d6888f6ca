package fingerprint

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// InvalidationKind identifies what kind of input an invalidation watches
type InvalidationKind int

const (
	// FileChange invalidates when the content of an existing file changes
	FileChange InvalidationKind = iota
	// FileCreate invalidates when a file matching a glob is created,
	// including paths that did not exist when the entry was recorded
	FileCreate
	// EnvChange invalidates when an environment variable changes
	EnvChange
	// OptionChange invalidates when a build option changes
	OptionChange
)

// String returns the canonical prefix for the kind
func (k InvalidationKind) String() string {
	switch k {
	case FileChange:
		return "file"
	case FileCreate:
		return "file-create"
	case EnvChange:
		return "env"
	case OptionChange:
		return "option"
	default:
		return "unknown"
	}
}

// Invalidation is a single entry in an asset's recorded invalidation set.
// Key holds a file path, a glob, an env var name, or an option name
// depending on Kind.
type Invalidation struct {
	Kind InvalidationKind `json:"kind"`
	Key  string           `json:"key"`
}

// CanonicalID returns the stable sort key for the entry
func (inv Invalidation) CanonicalID() string {
	return inv.Kind.String() + ":" + inv.Key
}

// Matches reports whether a change event triggers this invalidation.
// File-create globs are evaluated against the created path even when the
// path did not exist when the entry was recorded.
func (inv Invalidation) Matches(event Event) bool {
	switch inv.Kind {
	case FileChange:
		return event.Kind == FileChange && event.Key == inv.Key
	case FileCreate:
		if event.Kind != FileCreate {
			return false
		}
		matched, err := filepath.Match(inv.Key, event.Key)
		return err == nil && matched
	case EnvChange:
		return event.Kind == EnvChange && event.Key == inv.Key
	case OptionChange:
		return event.Kind == OptionChange && event.Key == inv.Key
	default:
		return false
	}
}

// Event is an observed change to a file, env var, or build option
type Event struct {
	Kind InvalidationKind
	Key  string
}

// FileChanged builds a file-change event for path
func FileChanged(path string) Event {
	return Event{Kind: FileChange, Key: path}
}

// FileCreated builds a file-create event for path
func FileCreated(path string) Event {
	return Event{Kind: FileCreate, Key: path}
}

// Snapshot supplies the current values invalidation entries are evaluated
// against: file content hashes (memoized per build), environment variables,
// and build options. Absent values hash as the empty string.
type Snapshot interface {
	HashFile(path string) (string, error)
	EnvValue(key string) string
	OptionValue(key string) string
}

// Digest produces one deterministic digest representing the state the given
// entries were evaluated against. Entries are sorted by canonical id so the
// digest is order-independent. An empty entry set yields the empty string,
// signaling "unconditionally valid". An entry of unknown kind is a fatal
// configuration error.
func Digest(entries []Invalidation, snap Snapshot) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	sorted := make([]Invalidation, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CanonicalID() < sorted[j].CanonicalID()
	})

	var sb strings.Builder
	for _, inv := range sorted {
		var value string
		switch inv.Kind {
		case FileChange:
			hash, err := snap.HashFile(inv.Key)
			if err != nil {
				return "", fmt.Errorf("failed to hash %s: %w", inv.Key, err)
			}
			value = hash
		case FileCreate:
			// The watched state is which paths match the glob right now;
			// a newly created match changes the digest even though no
			// recorded file content changed
			matches, err := filepath.Glob(inv.Key)
			if err != nil {
				return "", fmt.Errorf("bad file-create glob %q: %w", inv.Key, err)
			}
			value = strings.Join(matches, "\x00")
		case EnvChange:
			value = snap.EnvValue(inv.Key)
		case OptionChange:
			value = snap.OptionValue(inv.Key)
		default:
			return "", fmt.Errorf("unknown invalidation kind %d for %q", inv.Kind, inv.Key)
		}
		sb.WriteString(inv.CanonicalID())
		sb.WriteString("=")
		sb.WriteString(Fingerprint(value))
		sb.WriteString(";")
	}

	return Fingerprint(sb.String()), nil
}

// Package bundlegraph derives the output side of a build: assets grouped
// into bundles and bundle groups, with mutation operations used by the
// bundling phase and read-only queries used by packaging.
package bundlegraph

import (
	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/fingerprint"
)

// Target describes where a bundle group's output is written
type Target struct {
	Name    string
	DistDir string
	Env     asset.Environment
}

// Bundle is an output grouping of assets sharing one environment and output
// type. Name is assigned by a namer; HashRef is a placeholder substituted
// with the real content hash once output is produced.
type Bundle struct {
	ID           string
	Type         string
	Env          asset.Environment
	UniqueKey    string
	IsEntry      bool
	IsInline     bool
	IsSplittable bool

	// MainEntryID is the asset the bundle was derived from, when any
	MainEntryID   string
	EntryAssetIDs []string

	Name    string
	HashRef string
	Target  Target

	// ContentHash is filled in by packaging once final content is known
	ContentHash string
}

// BundleGroup is an ordered set of sibling bundles that must load together
// to satisfy one async dependency
type BundleGroup struct {
	ID           string
	Target       Target
	EntryAssetID string
}

// HashRefPrefix marks unfilled bundle hash placeholders in packaged output
const HashRefPrefix = "@@BUNDLE_HASH_"

func newBundleID(entryAssetID, uniqueKey, bundleType, envID, targetName string) string {
	return fingerprint.Fingerprint(entryAssetID, uniqueKey, bundleType, envID, targetName)
}

package builtin

import (
	"context"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/plugin"
)

// RawTransformer passes non-code assets (images, fonts, arbitrary data)
// through untouched. Raw assets export nothing and cannot be split.
type RawTransformer struct{}

// NewRawTransformer creates the built-in raw transformer
func NewRawTransformer() *RawTransformer {
	return &RawTransformer{}
}

// Name implements plugin.Transformer
func (t *RawTransformer) Name() string { return "transformer-raw" }

// CanTransform implements plugin.Transformer; raw is the fallback for
// every type, so it must be registered last
func (t *RawTransformer) CanTransform(assetType string) bool { return true }

// CanReuseAST implements plugin.Transformer
func (t *RawTransformer) CanReuseAST(ast interface{}) bool { return false }

// Transform implements plugin.Transformer
func (t *RawTransformer) Transform(ctx context.Context, input plugin.TransformInput) ([]*asset.Asset, error) {
	a := input.Asset
	a.InvalidateOnFileChange(a.FilePath)
	a.IsSplittable = false
	return []*asset.Asset{a}, nil
}

// Generate implements plugin.Transformer
func (t *RawTransformer) Generate(ctx context.Context, a *asset.Asset) (asset.GeneratedOutput, error) {
	return asset.GeneratedOutput{Content: a.Content}, nil
}

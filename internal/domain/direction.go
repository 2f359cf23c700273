package domain

import "fmt"

// Direction of a swap through a pool.
type Direction int

const (
	// StableToAsset pays USDA and receives the pool asset.
	StableToAsset Direction = iota
	// AssetToStable pays the pool asset and receives USDA.
	AssetToStable
)

const (
	directionStringStableToAsset = "stable_to_asset"
	directionStringAssetToStable = "asset_to_stable"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case StableToAsset:
		return directionStringStableToAsset
	case AssetToStable:
		return directionStringAssetToStable
	default:
		return "unknown"
	}
}

// Route resolves a from/to pair into the pool and direction that serve it.
// Only asset<->stable pairs are routable.
func Route(from, to Symbol) (PoolKey, Direction, error) {
	switch {
	case from == USDA && to.IsAsset():
		key, err := PoolKeyFor(to)
		return key, StableToAsset, err
	case from.IsAsset() && to == USDA:
		key, err := PoolKeyFor(from)
		return key, AssetToStable, err
	default:
		return "", 0, fmt.Errorf("pair %s->%s is not supported", from, to)
	}
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PoolKey identifies one of the asset/stable pools.
type PoolKey string

const (
	PoolTLSA PoolKey = "TLSA_USDA"
	PoolCRCL PoolKey = "CRCL_USDA"
)

// PoolKeys returns every pool key.
func PoolKeys() []PoolKey {
	return []PoolKey{PoolTLSA, PoolCRCL}
}

// PoolKeyFor returns the pool that pairs asset with the stable unit.
func PoolKeyFor(asset Symbol) (PoolKey, error) {
	switch asset {
	case TLSA:
		return PoolTLSA, nil
	case CRCL:
		return PoolCRCL, nil
	default:
		return "", fmt.Errorf("no pool for %s", asset)
	}
}

// Asset returns the non-stable side of the pool.
func (k PoolKey) Asset() Symbol {
	switch k {
	case PoolTLSA:
		return TLSA
	case PoolCRCL:
		return CRCL
	default:
		return ""
	}
}

// IsValid checks if the PoolKey value is known.
func (k PoolKey) IsValid() bool {
	return k == PoolTLSA || k == PoolCRCL
}

// String returns the string representation.
func (k PoolKey) String() string {
	return string(k)
}

// Pool constant-product reserves of one asset against the stable unit.
type Pool struct {
	Asset         Symbol          `json:"asset"`
	ReserveAsset  decimal.Decimal `json:"reserve_asset"`
	ReserveStable decimal.Decimal `json:"reserve_stable"`
}

// Exhausted reports whether either reserve has run dry.
func (p Pool) Exhausted() bool {
	return !p.ReserveAsset.IsPositive() || !p.ReserveStable.IsPositive()
}

// Sides returns (reserveIn, reserveOut) for a swap in the given direction.
func (p Pool) Sides(d Direction) (decimal.Decimal, decimal.Decimal) {
	if d == AssetToStable {
		return p.ReserveAsset, p.ReserveStable
	}
	return p.ReserveStable, p.ReserveAsset
}

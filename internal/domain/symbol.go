// Package domain defines core data structures shared by the exchange simulator.
package domain

import (
	"fmt"
	"strings"
)

// Symbol unit traded by the simulator.
type Symbol string

const (
	// USDA stable unit every pool is quoted in.
	USDA Symbol = "USDA"
	// TLSA first synthetic asset.
	TLSA Symbol = "TLSA"
	// CRCL second synthetic asset.
	CRCL Symbol = "CRCL"
)

// Symbols returns every known unit, stable first.
func Symbols() []Symbol {
	return []Symbol{USDA, TLSA, CRCL}
}

// Assets returns the oracle-priced units.
func Assets() []Symbol {
	return []Symbol{TLSA, CRCL}
}

// String returns the string representation.
func (s Symbol) String() string {
	return string(s)
}

// IsValid checks if the Symbol value is known.
func (s Symbol) IsValid() bool {
	switch s {
	case USDA, TLSA, CRCL:
		return true
	}
	return false
}

// IsAsset reports whether the symbol has its own pool and oracle price.
func (s Symbol) IsAsset() bool {
	return s == TLSA || s == CRCL
}

// ParseSymbol converts user input into a Symbol.
func ParseSymbol(raw string) (Symbol, error) {
	s := Symbol(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown symbol %q", raw)
	}
	return s, nil
}

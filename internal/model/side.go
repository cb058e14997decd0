package model

import (
	"fmt"
	"strings"
)

// Side identifies one of the two pool tokens. Token A is the pool's token0 and
// token B its token1; prices are always B per A.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts "a", "b", "token0" or "token1" in any case.
func ParseSide(input string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "a", "token0", "0":
		return SideA, nil
	case "b", "token1", "1":
		return SideB, nil
	default:
		return "", fmt.Errorf("unknown token side %q", input)
	}
}

// Valid reports whether s is SideA or SideB.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Counter returns the opposite side.
func (s Side) Counter() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

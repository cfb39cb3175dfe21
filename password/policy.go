package password

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Policy describes the strength rules a new password must satisfy.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	MaxPasswordLen int
}

// DefaultPolicy is at least 8 characters with one upper, one lower, one
// digit and one symbol.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      minPassBytes,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSymbol:  true,
		MaxPasswordLen: DefaultMaxPasswordBytes,
	}
}

// Check returns one message per violated rule, or nil when pw is acceptable.
// Length is counted in characters, not bytes.
func (p Policy) Check(pw string) []string {
	var violations []string

	if n := utf8.RuneCountInString(pw); n < p.MinLength {
		violations = append(violations, fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength))
	}
	if p.MaxPasswordLen > 0 && len(pw) > p.MaxPasswordLen {
		violations = append(violations, fmt.Sprintf("Passwords must be at most %d bytes.", p.MaxPasswordLen))
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}

	if p.RequireUpper && !upper {
		violations = append(violations, "Passwords must have at least one uppercase letter.")
	}
	if p.RequireLower && !lower {
		violations = append(violations, "Passwords must have at least one lowercase letter.")
	}
	if p.RequireDigit && !digit {
		violations = append(violations, "Passwords must have at least one digit.")
	}
	if p.RequireSymbol && !symbol {
		violations = append(violations, "Passwords must have at least one non-alphanumeric character.")
	}

	return violations
}

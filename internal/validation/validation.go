// Package validation provides centralized input validation for scopedb.
package validation

import (
	"fmt"
	"unicode"

	"github.com/xtxerr/scopedb/internal/errors"
)

// NameRules defines the validation rules for channel names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// ChannelRules returns the rules for channel names. Dots are allowed so
// producers can use hierarchical names like "router1.if0.rx".
func ChannelRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("%w: shorter than %d characters", errors.ErrInvalidName, rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("%w: longer than %d characters", errors.ErrInvalidName, rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	}
	if name[0] == '.' {
		return fmt.Errorf("%w: cannot start with '.'", errors.ErrInvalidName)
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("%w: control character at position %d", errors.ErrInvalidName, i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("%w: path separator at position %d", errors.ErrInvalidName, i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("%w: character %q at position %d", errors.ErrInvalidName, r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateChannel validates a channel name with the channel rules.
func ValidateChannel(name string) error {
	return ValidateName(name, ChannelRules())
}

package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/parley/pkg/domain"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "PARLEY_MAX_INPUT_SIZE"
)

// Sanitizer cleans inbound lines by enforcing a size limit, validating UTF-8 and stripping
// dangerous control characters.
type Sanitizer struct {
	limit int
}

// NewSanitizer creates a Sanitizer. A non-positive limit falls back to EnvMaxInputSize,
// then DefaultMaxInputSize.
func NewSanitizer(limit int) *Sanitizer {
	if limit <= 0 {
		limit = getMaxInputSize()
	}
	return &Sanitizer{limit: limit}
}

// Limit returns the maximum accepted size in bytes.
func (s *Sanitizer) Limit() int {
	return s.limit
}

// Clean returns input with control characters removed.
func (s *Sanitizer) Clean(input string) (string, error) {
	// Reject rather than truncate so a request is never half-executed.
	if len(input) > s.limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", domain.ErrInputTooLarge, len(input), s.limit)
	}

	if !utf8.ValidString(input) {
		return "", domain.ErrInvalidUTF8
	}

	// Newline, tab and carriage return survive; ESC, NUL, BEL and friends do not.
	// This prevents log poisoning and terminal corruption.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeInput cleans input with the default limit.
func SanitizeInput(input string) (string, error) {
	return NewSanitizer(0).Clean(input)
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}

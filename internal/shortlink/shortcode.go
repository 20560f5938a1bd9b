package shortlink

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet used for generated shortcodes; custom shortcodes use the same set.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultShortcodeLength = 8
	DefaultMaxAttempts     = 16

	MinCustomLength = 3
	MaxCustomLength = 20
)

func randomShortcode(length int) (string, error) {
	return gonanoid.Generate(Alphabet, length)
}

// ValidShortcode reports whether code is acceptable as a user supplied shortcode.
func ValidShortcode(code string) bool {
	if len(code) < MinCustomLength || len(code) > MaxCustomLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !isAlphanumeric(code[i]) {
			return false
		}
	}
	return true
}

func isAlphanumeric(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

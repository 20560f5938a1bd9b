package shortlink

import "github.com/pkg/errors"

// Store results are matched with errors.Is; messages carry the shortcode.
var (
	ErrNotFound         = errors.New("shortcode not found")
	ErrConflict         = errors.New("shortcode already exists")
	ErrExpired          = errors.New("short link has expired")
	ErrExhausted        = errors.New("no free shortcode available")
	ErrInvalidShortcode = errors.New("invalid shortcode")
	ErrInvalidValidity  = errors.New("validity must be a positive number of minutes")
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers and free text taken from users
// before they reach an upstream query.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxDeviceIDLength bounds a device identifier.
	MaxDeviceIDLength = 128

	// MaxSearchTermLength bounds a device search term.
	MaxSearchTermLength = 200
)

var (
	// ErrInvalidDeviceID is wrapped by every device id failure.
	ErrInvalidDeviceID = errors.New("invalid device id")

	// ErrInvalidSearchTerm is wrapped by every search term failure.
	ErrInvalidSearchTerm = errors.New("invalid search term")
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

// ValidateDeviceID validates a device identifier.
//
// Valid ids:
//   - 1-128 characters
//   - Letters and digits, first character included
//   - Dots, underscores, colons and hyphens after the first character
//
// SL1 ids are numeric; fixtures use names like "dev1" or "core-rtr:01".
//
// Example:
//
//	if err := validation.ValidateDeviceID(id); err != nil {
//	    return nil, fmt.Errorf("explore: %w", err)
//	}
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidDeviceID)
	}

	if !deviceIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (must be 1-%d letters, digits, dots, underscores, colons or hyphens)",
			ErrInvalidDeviceID, id, MaxDeviceIDLength)
	}

	return nil
}

// ValidateDeviceIDs validates multiple ids.
// Returns an error listing all invalid ids if any fail validation.
func ValidateDeviceIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateDeviceID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, invalid)
	}
	return nil
}

// SanitizeDeviceID trims and validates a device id.
func SanitizeDeviceID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateDeviceID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// SanitizeSearchTerm trims a search term and rejects control characters
// and overlong input. An empty term is valid and means "list all".
func SanitizeSearchTerm(term string) (string, error) {
	trimmed := strings.TrimSpace(term)
	if len(trimmed) > MaxSearchTermLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidSearchTerm, MaxSearchTermLength)
	}
	if strings.ContainsFunc(trimmed, unicode.IsControl) {
		return "", fmt.Errorf("%w: contains control characters", ErrInvalidSearchTerm)
	}
	return trimmed, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrDataSource is matched by every DataSourceError.
	ErrDataSource = errors.New("data source failure")

	// ErrCache is matched by every CacheError.
	ErrCache = errors.New("cache failure")
)

// ValidationError reports a malformed request. Maps to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DataSourceError reports an upstream fetch failure. The whole request
// fails; no partial topology is returned. Maps to HTTP 500.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDataSource) true.
func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSource
}

// CacheError reports a cache read or write failure. It is logged and
// counted, never returned to clients.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCache) true.
func (e *CacheError) Is(target error) bool {
	return target == ErrCache
}

// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package tserr defines the error taxonomy shared by the cache, planner and
// result generator: which failures are surfaced to a caller, which are
// retried, and which are recorded as negative results.
package tserr

import "github.com/pkg/errors"

// Sentinel causes. Use errors.Is against these, not direct equality, since
// callers typically hold a wrapped error (errors.Wrap adds request context).
var (
	// ErrMalformedRequest is returned when the inbound request is missing
	// required fields (columns). No cache interaction occurs.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrTransientRemote marks a retryable remote failure (HTTP 500).
	ErrTransientRemote = errors.New("transient remote error")

	// ErrNegativeResult marks a remote HTTP 404: the timeseries does not
	// exist upstream. Not surfaced as an error to the caller.
	ErrNegativeResult = errors.New("timeseries not found upstream")

	// ErrRemoteError wraps any other non-OK HTTP status from the backend.
	ErrRemoteError = errors.New("remote error")

	// ErrInvalidInput marks a programming error: e.g. Range.findDifference
	// called with an absent operand.
	ErrInvalidInput = errors.New("invalid input")
)

// Wrap attaches a message to cause while keeping cause matchable via
// errors.Is/errors.Cause.
func Wrap(cause error, msg string) error {
	return errors.Wrap(cause, msg)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(cause error, format string, args ...any) error {
	return errors.Wrapf(cause, format, args...)
}

// Is reports whether err, or any error it wraps, matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

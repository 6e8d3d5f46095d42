/*
 * Rolegate
 * Copyright (C) 2025  Rolegate, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package utils holds small helpers shared across rolegate packages.
package utils

import (
	"math/rand/v2"
	"time"
)

// Jitter is a function which applies random jitter to a duration. Used to
// randomize backoff values. Must be safe for concurrent usage.
type Jitter func(time.Duration) time.Duration

// NewHalfJitter returns a jitter on the range [n/2,n). This is a large
// range and most suitable for jittering things like backoff operations
// where breaking cycles quickly is a priority.
func NewHalfJitter() Jitter {
	return func(d time.Duration) time.Duration {
		// some logic relies on treating zero duration as the
		// non-blocking case.
		if d < 1 {
			return 0
		}
		return d/2 + rand.N(d/2)
	}
}

// Backoff produces jittered exponential delays starting at base and capped
// at max.
type Backoff struct {
	base   time.Duration
	max    time.Duration
	jitter Jitter

	attempt int
}

// NewBackoff returns a backoff with the given base delay and cap.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{
		base:   base,
		max:    max,
		jitter: NewHalfJitter(),
	}
}

// Next returns the delay to wait before the next attempt and advances the
// backoff.
func (b *Backoff) Next() time.Duration {
	d := b.base << b.attempt
	if d > b.max || d <= 0 {
		d = b.max
	} else {
		b.attempt++
	}
	return b.jitter(d)
}

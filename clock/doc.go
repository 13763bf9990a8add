// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package clock holds the time helpers shared by the mission core: an
// injectable Clock, a Fake for tests, stat clamping and epoch-millisecond
// conversions used by the storage layer.
package clock

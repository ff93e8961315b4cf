// Copyright (c) 2026, The embeNET Node Port Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package timer provides the microsecond time source of a node: a free-running counter that
// wraps at 2^32 and a one-shot compare interrupt.
package timer

import (
	. "github.com/embenet/nodeport/types"
)

const (
	// MaxCompareDuration is the longest distance into the future a compare value may be set.
	MaxCompareDuration TimeUs = 0x7FFFFFFF
	// GuardTimeUs is the minimal distance of a compare value from now. Closer (or past)
	// values fire at once instead of after a full wrap of the counter.
	GuardTimeUs uint32 = 30
	// GuardTimeTicks is GuardTimeUs in general purpose timer ticks.
	GuardTimeTicks uint32 = 40
	// TicksLoadValue is the timer reload value, (2^32-1)*3/4, so the tick counter wraps
	// together with the microsecond counter.
	TicksLoadValue uint32 = 3221225471
)

// Clock reads the free-running microsecond counter.
type Clock interface {
	ReadCounter() TimeUs
}

// CompareFunc is called in interrupt context when the compare value is reached.
type CompareFunc func(ctx interface{})

// Timer is the time source consumed by the MAC for timestamping and scheduling.
type Timer interface {
	Clock
	Init(cb CompareFunc, ctx interface{})
	Deinit()
	SetCompare(cmp TimeUs)
	MaxCompareDuration() TimeUs
}

// TicksToUs converts 0.75 MHz timer ticks to microseconds.
func TicksToUs(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 4 / 3)
}

// UsToTicks converts microseconds to 0.75 MHz timer ticks.
func UsToTicks(us uint32) uint32 {
	return uint32(uint64(us) * 3 / 4)
}

// IsDue reports whether compare value cmp is too close to (or behind) now to be scheduled,
// given the guard distance. All arithmetic wraps.
func IsDue(now, cmp, guard uint32) bool {
	return cmp-guard-now >= uint32(MaxCompareDuration)
}

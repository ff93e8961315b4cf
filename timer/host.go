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

package timer

import (
	"sync"
	"time"

	"github.com/embenet/nodeport/critsec"
	. "github.com/embenet/nodeport/types"
)

// TickSource is a free-running 0.75 MHz counter that wraps at TicksLoadValue+1 and advances
// with the wall clock.
type TickSource interface {
	Ticks() uint32
}

// Host is a Timer on the monotonic wall clock. It counts 0.75 MHz ticks like the general
// purpose timer of the target and reports microseconds through TicksToUs.
type Host struct {
	start time.Time
	src   TickSource
	ctrl  *critsec.Controller

	lock  sync.Mutex
	cb    CompareFunc
	ctx   interface{}
	alarm *time.Timer
	gen   uint64
}

func NewHost(ctrl *critsec.Controller) *Host {
	return &Host{
		start: time.Now(),
		ctrl:  ctrl,
	}
}

// NewHostOn returns a Host counting on src instead of its own start time.
func NewHostOn(ctrl *critsec.Controller, src TickSource) *Host {
	h := NewHost(ctrl)
	h.src = src
	return h
}

func (h *Host) ticks() uint32 {
	if h.src != nil {
		return h.src.Ticks()
	}
	elapsed := uint64(time.Since(h.start).Nanoseconds())
	return uint32((elapsed * 3 / 4000) % (uint64(TicksLoadValue) + 1))
}

func (h *Host) ReadCounter() TimeUs {
	return TimeUs(TicksToUs(h.ticks()))
}

func (h *Host) Init(cb CompareFunc, ctx interface{}) {
	h.Deinit()
	h.lock.Lock()
	h.cb, h.ctx = cb, ctx
	h.lock.Unlock()
}

func (h *Host) Deinit() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.alarm != nil {
		h.alarm.Stop()
		h.alarm = nil
	}
	h.gen++
	h.cb, h.ctx = nil, nil
}

// ticksUntil returns how far cmp lies ahead of now on the tick counter, which wraps at
// TicksLoadValue+1 rather than at 2^32.
func ticksUntil(now, cmp uint32) uint32 {
	period := uint64(TicksLoadValue) + 1
	return uint32((uint64(cmp) + period - uint64(now)) % period)
}

// SetCompare arms the compare interrupt, replacing a pending one.
func (h *Host) SetCompare(cmp TimeUs) {
	now := h.ticks()
	cmpTicks := UsToTicks(uint32(cmp))

	var delay time.Duration
	if ahead := ticksUntil(now, cmpTicks); ahead >= GuardTimeTicks && ahead <= UsToTicks(uint32(MaxCompareDuration)) {
		delay = time.Duration(uint64(ahead)*4000/3) * time.Nanosecond
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.alarm != nil {
		h.alarm.Stop()
	}
	h.gen++
	gen := h.gen
	h.alarm = time.AfterFunc(delay, func() {
		h.fire(gen)
	})
}

func (h *Host) fire(gen uint64) {
	h.lock.Lock()
	if gen != h.gen {
		h.lock.Unlock()
		return
	}
	cb, ctx := h.cb, h.ctx
	h.alarm = nil
	h.lock.Unlock()

	if cb == nil {
		return
	}
	if h.ctrl != nil {
		h.ctrl.Raise(func() { cb(ctx) })
	} else {
		cb(ctx)
	}
}

func (h *Host) MaxCompareDuration() TimeUs {
	return MaxCompareDuration
}

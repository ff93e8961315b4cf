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
	"sort"
	"sync"

	"github.com/embenet/nodeport/critsec"
	. "github.com/embenet/nodeport/types"
)

// Virtual is a manually advanced microsecond clock shared by all nodes of a simulation.
// Compare interrupts of the attached timers fire while the clock is advanced.
type Virtual struct {
	lock   sync.Mutex
	now    uint64
	timers []*VirtualTimer
}

func NewVirtual() *Virtual {
	return &Virtual{}
}

// ReadCounter returns the counter value, i.e. the virtual time modulo 2^32.
func (v *Virtual) ReadCounter() TimeUs {
	v.lock.Lock()
	defer v.lock.Unlock()
	return TimeUs(v.now)
}

// Now returns the non-wrapping virtual time in microseconds.
func (v *Virtual) Now() uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.now
}

// NewTimer attaches a compare timer whose interrupt is raised through ctrl.
func (v *Virtual) NewTimer(ctrl *critsec.Controller) *VirtualTimer {
	vt := &VirtualTimer{clock: v, ctrl: ctrl}
	v.lock.Lock()
	v.timers = append(v.timers, vt)
	v.lock.Unlock()
	return vt
}

// NextDeadline returns the earliest armed compare deadline, or Ever.
func (v *Virtual) NextDeadline() uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.nextDeadline()
}

func (v *Virtual) nextDeadline() uint64 {
	next := Ever
	for _, vt := range v.timers {
		if vt.armed && vt.deadline < next {
			next = vt.deadline
		}
	}
	return next
}

// AdvanceTo moves the clock forward to t, firing every compare that falls due on the way.
// Moving backwards is ignored.
func (v *Virtual) AdvanceTo(t uint64) {
	for {
		v.lock.Lock()
		if t < v.now {
			v.lock.Unlock()
			return
		}
		due := v.dueTimers(t)
		if len(due) == 0 {
			v.now = t
			v.lock.Unlock()
			return
		}
		v.now = due[0].deadline
		fire := due[0]
		fire.armed = false
		cb, ctx := fire.cb, fire.ctx
		v.lock.Unlock()

		if cb != nil {
			fire.raise(func() { cb(ctx) })
		}
	}
}

// Advance moves the clock forward by dt microseconds.
func (v *Virtual) Advance(dt uint64) {
	v.AdvanceTo(v.Now() + dt)
}

func (v *Virtual) dueTimers(t uint64) []*VirtualTimer {
	var due []*VirtualTimer
	for _, vt := range v.timers {
		if vt.armed && vt.deadline <= t {
			due = append(due, vt)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline < due[j].deadline
	})
	return due
}

// VirtualTimer is the compare channel of one node on a Virtual clock.
type VirtualTimer struct {
	clock    *Virtual
	ctrl     *critsec.Controller
	cb       CompareFunc
	ctx      interface{}
	armed    bool
	deadline uint64
}

func (vt *VirtualTimer) Init(cb CompareFunc, ctx interface{}) {
	vt.clock.lock.Lock()
	defer vt.clock.lock.Unlock()
	vt.cb, vt.ctx = cb, ctx
	vt.armed = false
}

func (vt *VirtualTimer) Deinit() {
	vt.Init(nil, nil)
}

func (vt *VirtualTimer) ReadCounter() TimeUs {
	return vt.clock.ReadCounter()
}

// SetCompare arms the one-shot compare interrupt. A value within the guard time of now, or
// in the past, fires at the current virtual time.
func (vt *VirtualTimer) SetCompare(cmp TimeUs) {
	vt.clock.lock.Lock()
	defer vt.clock.lock.Unlock()

	now := vt.clock.now
	now32 := uint32(now)
	if IsDue(now32, uint32(cmp), GuardTimeUs) {
		vt.deadline = now
	} else {
		vt.deadline = now + uint64(uint32(cmp)-now32)
	}
	vt.armed = true
}

func (vt *VirtualTimer) MaxCompareDuration() TimeUs {
	return MaxCompareDuration
}

// Armed reports whether a compare is pending.
func (vt *VirtualTimer) Armed() bool {
	vt.clock.lock.Lock()
	defer vt.clock.lock.Unlock()
	return vt.armed
}

func (vt *VirtualTimer) raise(isr func()) {
	if vt.ctrl != nil {
		vt.ctrl.Raise(isr)
	} else {
		isr()
	}
}

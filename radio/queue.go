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

package radio

import (
	"sync/atomic"

	"github.com/embenet/nodeport/logger"
	. "github.com/embenet/nodeport/types"
)

type FrameEventKind uint8

const (
	StartOfFrame FrameEventKind = iota
	EndOfFrame
)

func (k FrameEventKind) String() string {
	if k == StartOfFrame {
		return "start"
	}
	return "end"
}

// FrameEvent is a capture callback moved out of interrupt context.
type FrameEvent struct {
	Kind      FrameEventKind
	Timestamp TimeUs
	Ctx       interface{}
}

// CallbackQueue is a single-producer single-consumer queue that hands capture callbacks
// to the MAC's own loop, which may then call back into the driver. Register its OnStart
// and OnEnd with Driver.SetCallbacks.
type CallbackQueue struct {
	events  chan FrameEvent
	dropped uint64
}

func NewCallbackQueue(size int) *CallbackQueue {
	return &CallbackQueue{
		events: make(chan FrameEvent, size),
	}
}

func (q *CallbackQueue) OnStart(ctx interface{}, ts TimeUs) {
	q.push(FrameEvent{Kind: StartOfFrame, Timestamp: ts, Ctx: ctx})
}

func (q *CallbackQueue) OnEnd(ctx interface{}, ts TimeUs) {
	q.push(FrameEvent{Kind: EndOfFrame, Timestamp: ts, Ctx: ctx})
}

func (q *CallbackQueue) push(ev FrameEvent) {
	select {
	case q.events <- ev:
	default:
		atomic.AddUint64(&q.dropped, 1)
		logger.Warnf("callback queue full, dropped %s-of-frame event at %d", ev.Kind, ev.Timestamp)
	}
}

// Events returns the receiving side, for use in a select loop.
func (q *CallbackQueue) Events() <-chan FrameEvent {
	return q.events
}

// Poll returns the next queued event without waiting.
func (q *CallbackQueue) Poll() (FrameEvent, bool) {
	select {
	case ev := <-q.events:
		return ev, true
	default:
		return FrameEvent{}, false
	}
}

func (q *CallbackQueue) Len() int {
	return len(q.events)
}

func (q *CallbackQueue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

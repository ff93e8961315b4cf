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
	"github.com/pkg/errors"
)

// CmdHandle identifies a posted chain. AllocError is the handle of nothing.
type CmdHandle int32

const AllocError CmdHandle = -1

// EventMask is a set of radio events.
type EventMask uint32

const (
	EventCmdDone     EventMask = 1 << iota // a step of the chain finished
	EventLastCmdDone                       // the chain finished
	EventMdmSoft                           // the modem detected a sync word
	EventRxOk                              // a packet was received with a valid CRC
	EventRxNOk                             // a packet was received with an invalid CRC
	EventCmdAborted                        // the chain was preempted
	EventCmdStopped                        // the chain was stopped gracefully
)

// EventsAlwaysDelivered are delivered to the handler of a chain regardless of its mask.
const EventsAlwaysDelivered = EventLastCmdDone | EventCmdAborted | EventCmdStopped

type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// EventHandler is called by the backend in interrupt context. Step statuses and receive
// entries of the chain are updated before the handler runs.
type EventHandler func(h CmdHandle, e EventMask)

var (
	ErrAllocFailed = errors.New("no free command slot")
	ErrNotOpen     = errors.New("radio is not open")
)

// Backend executes command chains on a radio. Implementations must never call an
// EventHandler synchronously from Post, Flush or RunTest, and deliver no more events for a
// chain once it has been flushed.
type Backend interface {
	// Open acquires the radio and applies the PHY setup.
	Open(phy PhyConfig) error
	// Close releases the radio.
	Close() error
	// SetTxPower applies a power table entry to subsequent transmissions.
	SetTxPower(entry PowerEntry) error
	// Post queues a chain. The handler may be nil for chains without completion interest.
	Post(chain *Chain, prio Priority, handler EventHandler, mask EventMask) (CmdHandle, error)
	// Flush cancels a posted chain; AllocError and finished handles are ignored.
	Flush(h CmdHandle)
	// RunTest starts a non-terminating test chain, stopped by the next posted chain.
	RunTest(chain *Chain) error
}

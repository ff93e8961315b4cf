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

package simulation

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/eui64"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/prng"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/radio/simhw"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

// callbackQueueSize holds the capture callbacks of a few hundred frames between two
// console commands.
const callbackQueueSize = 1024

// Node is one node port: a radio driver with its timer, identifier and callback queue.
type Node struct {
	Id     NodeId
	Eui64  eui64.Provider
	Driver *radio.Driver
	Events *radio.CallbackQueue
	Timer  timer.Timer

	radio *simhw.Radio // nil for a coprocessor node
	ctrl  *critsec.Controller
	log   *logger.NodeLogger
}

func (node *Node) String() string {
	return fmt.Sprintf("Node<%d>", node.Id)
}

// Radio returns the simulated radio of the node, or nil when it runs on a coprocessor.
func (node *Node) Radio() *simhw.Radio {
	return node.radio
}

// State returns the radio state, as far as the node can tell.
func (node *Node) State() RadioStates {
	if node.radio != nil {
		return node.radio.State()
	}
	if node.Driver.IsIdle() {
		return RadioIdle
	}
	return RadioRx
}

// Drain returns the queued capture callbacks.
func (node *Node) Drain() []radio.FrameEvent {
	var evs []radio.FrameEvent
	for {
		ev, ok := node.Events.Poll()
		if !ok {
			return evs
		}
		evs = append(evs, ev)
	}
}

func (node *Node) start(backend radio.Backend, clock timer.Clock, cfg radio.Config, observer radio.Observer) error {
	node.Driver = radio.New(cfg, backend, clock, critsec.NewSection(node.ctrl))
	if observer != nil {
		node.Driver.SetObserver(observer)
	}
	if st := node.Driver.Init(); st != StatusSuccess {
		return errors.Errorf("%v: radio init: %v", node, st)
	}
	node.Events = radio.NewCallbackQueue(callbackQueueSize)
	node.Driver.SetCallbacks(node.Events.OnStart, node.Events.OnEnd, node.Id)
	node.log.Debugf("radio started")
	return nil
}

func (node *Node) stop() {
	node.Driver.Deinit()
	node.Timer.Deinit()
	node.log.Debugf("radio stopped")
}

// defaultEui64 draws a locally administered unicast identifier from the node seed.
func defaultEui64() eui64.Fixed {
	v := uint64(prng.NewRand(prng.NewNodeRandomSeed()).Int63())
	v = bits.RotateLeft64(v, 8)
	v = v&^(0x03<<56) | 0x02<<56
	return eui64.Fixed(v)
}

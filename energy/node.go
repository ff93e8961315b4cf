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

package energy

import (
	"github.com/embenet/nodeport/logger"
	. "github.com/embenet/nodeport/types"
)

type NodeEnergy struct {
	nodeId NodeId
	radio  RadioStatus
}

func (node *NodeEnergy) ComputeRadioState(timestamp uint64) {
	if timestamp < node.radio.Timestamp {
		return
	}
	delta := timestamp - node.radio.Timestamp
	switch node.radio.State {
	case RadioOff:
		node.radio.SpentOff += delta
	case RadioIdle:
		node.radio.SpentIdle += delta
	case RadioTx:
		node.radio.SpentTx += delta
	case RadioRx:
		node.radio.SpentRx += delta
	default:
		logger.Panicf("unknown radio state: %v", node.radio.State)
	}
	node.radio.Timestamp = timestamp
}

func (node *NodeEnergy) SetRadioState(state RadioStates, timestamp uint64) {
	// account the time spent in the previous state first
	node.ComputeRadioState(timestamp)
	node.radio.State = state
}

func (node *NodeEnergy) State() RadioStates {
	return node.radio.State
}

func (node *NodeEnergy) report() NodeReport {
	return NodeReport{
		NodeId: node.nodeId,
		Off:    float64(node.radio.SpentOff) * RadioOffConsumption,
		Idle:   float64(node.radio.SpentIdle) * RadioIdleConsumption,
		Tx:     float64(node.radio.SpentTx) * RadioTxConsumption,
		Rx:     float64(node.radio.SpentRx) * RadioRxConsumption,
	}
}

func newNode(nodeID NodeId, timestamp uint64) *NodeEnergy {
	return &NodeEnergy{
		nodeId: nodeID,
		radio: RadioStatus{
			State:     RadioOff,
			Timestamp: timestamp,
		},
	}
}

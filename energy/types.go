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
	. "github.com/embenet/nodeport/types"
)

/*
 * Consumption by radio state of a CC1312R at 3.0V, 868 MHz band.
 * Consumption in kilowatts, time in microseconds, resulting energy in mJ.
 */
const (
	RadioOffConsumption  float64 = 0.0000000027 // kilowatts @ i = 0.9 uA, standby
	RadioIdleConsumption float64 = 0.0000027    // kilowatts @ i = 0.9 mA, synthesizer on
	RadioRxConsumption   float64 = 0.0000174    // kilowatts @ i = 5.8 mA
	RadioTxConsumption   float64 = 0.0000747    // kilowatts @ i = 24.9 mA, 14 dBm
)

const (
	ComputePeriod uint64 = 30000000 // in microseconds
)

type RadioStatus struct {
	State     RadioStates
	SpentOff  uint64
	SpentIdle uint64
	SpentTx   uint64
	SpentRx   uint64
	Timestamp uint64
}

// NodeReport is the energy spent by one node per radio state, in mJ.
type NodeReport struct {
	NodeId NodeId
	Off    float64
	Idle   float64
	Tx     float64
	Rx     float64
}

func (r NodeReport) Total() float64 {
	return r.Off + r.Idle + r.Tx + r.Rx
}

type NetworkConsumption struct {
	Timestamp      uint64
	EnergyConsOff  float64
	EnergyConsIdle float64
	EnergyConsTx   float64
	EnergyConsRx   float64
}

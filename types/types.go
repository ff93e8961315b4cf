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

package types

import (
	"fmt"
	"math"
)

type NodeId = int

const (
	InvalidNodeId NodeId = 0
	MaxNodeId     NodeId = 0xffff
)

// TimeUs is a reading of the free-running microsecond counter. It wraps at 2^32, so
// differences between two readings are only meaningful as uint32 arithmetic.
type TimeUs uint32

// Ever is the virtual timestamp of an event that never happens.
const Ever uint64 = math.MaxUint64

// ChannelId is the index of a frequency slot in the band plan.
type ChannelId uint8

// PowerDbm is a transmit power level.
type PowerDbm int8

// Status is the result of a radio control-plane operation.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusWrongState
	StatusGeneralError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWrongState:
		return "wrong state"
	case StatusGeneralError:
		return "general error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// RxInfo describes the frame returned by a retrieve-received-frame call.
type RxInfo struct {
	CrcValid   bool
	Lqi        uint8
	MpduLength int
	Rssi       int8
}

type ContinuousTxMode uint8

const (
	ContinuousTxCarrier ContinuousTxMode = iota
	ContinuousTxModulated
)

func (m ContinuousTxMode) String() string {
	if m == ContinuousTxCarrier {
		return "carrier"
	}
	return "modulated"
}

// Capabilities is the static timing and power descriptor of a radio. All durations in
// microseconds, power levels in dBm.
type Capabilities struct {
	IdleToTxReady   uint32
	IdleToRxReady   uint32
	ActiveToTxReady uint32
	ActiveToRxReady uint32
	TxDelay         uint32
	RxDelay         uint32
	TxRxStartDelay  uint32
	Sensitivity     int8
	MaxOutputPower  PowerDbm
	MinOutputPower  PowerDbm
}

type RadioStates byte

const (
	RadioOff  RadioStates = 0
	RadioIdle RadioStates = 1
	RadioRx   RadioStates = 2
	RadioTx   RadioStates = 3
)

func (s RadioStates) String() string {
	switch s {
	case RadioOff:
		return "Off"
	case RadioIdle:
		return "Idl"
	case RadioRx:
		return "Rx_"
	case RadioTx:
		return "Tx_"
	default:
		return "invalid"
	}
}

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
	. "github.com/embenet/nodeport/types"
)

type Direction uint8

const (
	DirTx Direction = iota
	DirRx
)

func (d Direction) String() string {
	if d == DirTx {
		return "tx"
	}
	return "rx"
}

// RxResult classifies the outcome of a completed reception.
type RxResult uint8

const (
	RxResultOk RxResult = iota
	RxResultCrcError
	RxResultTooLong
	RxResultDiscarded // retrieved into a buffer smaller than the frame
)

func (r RxResult) String() string {
	switch r {
	case RxResultOk:
		return "ok"
	case RxResultCrcError:
		return "crc_error"
	case RxResultTooLong:
		return "too_long"
	default:
		return "discarded"
	}
}

// Observer receives driver activity. Methods are called from interrupt context and must
// not block.
type Observer interface {
	ChainPosted(dir Direction, err error)
	FrameStarted(dir Direction, ts TimeUs)
	FrameEnded(dir Direction, ts TimeUs)
	FrameReceived(result RxResult, length int, rssi int8)
	StaleEvent(dir Direction)
}

type nopObserver struct{}

func (nopObserver) ChainPosted(Direction, error) {}
func (nopObserver) FrameStarted(Direction, TimeUs) {}
func (nopObserver) FrameEnded(Direction, TimeUs) {}
func (nopObserver) FrameReceived(RxResult, int, int8) {}
func (nopObserver) StaleEvent(Direction) {}

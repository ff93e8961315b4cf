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
	"fmt"
	"strings"
)

// StepKind is the operation performed by one step of a command chain.
type StepKind uint8

const (
	StepFs     StepKind = iota // tune the frequency synthesizer
	StepTx                     // transmit one packet
	StepRx                     // receive one packet into an RxEntry
	StepFsOff                  // power the synthesizer down
	StepTxTest                 // transmit until stopped
)

func (k StepKind) String() string {
	switch k {
	case StepFs:
		return "fs"
	case StepTx:
		return "tx"
	case StepRx:
		return "rx"
	case StepFsOff:
		return "fs-off"
	case StepTxTest:
		return "tx-test"
	default:
		return fmt.Sprintf("step(%d)", uint8(k))
	}
}

// StepStatus is written by the backend while it executes a step.
type StepStatus uint8

const (
	StepIdle StepStatus = iota
	StepPending
	StepActive
	StepDoneOk
	StepDoneRxErr
	StepDoneRxBufFull
	StepDoneStopped
	StepDoneAborted
	StepError
)

func (s StepStatus) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepPending:
		return "pending"
	case StepActive:
		return "active"
	case StepDoneOk:
		return "done-ok"
	case StepDoneRxErr:
		return "done-rxerr"
	case StepDoneRxBufFull:
		return "done-rxbuffull"
	case StepDoneStopped:
		return "done-stopped"
	case StepDoneAborted:
		return "done-aborted"
	case StepError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Ok reports whether the step completed successfully, i.e. the chain follows OnSuccess.
func (s StepStatus) Ok() bool {
	return s == StepDoneOk
}

// Next is a transition target: the index of the next step, or one of NextEnd and NextFsOff.
type Next int8

const (
	NextEnd   Next = -1 // the chain terminates
	NextFsOff Next = -2 // the chain terminates through the shared synthesizer-off command
)

// FsParams programs the frequency synthesizer. The frequency is FrequencyMHz plus
// FractFreq/65536 MHz.
type FsParams struct {
	FrequencyMHz uint16
	FractFreq    uint16
	TxMode       bool
}

// KHz returns the programmed frequency in kHz.
func (p FsParams) KHz() uint32 {
	return uint32(p.FrequencyMHz)*1000 + (uint32(p.FractFreq)*1000+0x8000)>>16
}

type TxParams struct {
	Payload []byte
}

type RxParams struct {
	Entry *RxEntry
}

type TxTestParams struct {
	UseCarrier bool
	Fs         FsParams
}

// Step is one command of a chain plus its outgoing transitions.
type Step struct {
	Kind      StepKind
	Status    StepStatus
	OnSuccess Next
	OnFailure Next

	Fs     FsParams
	Tx     TxParams
	Rx     RxParams
	TxTest TxTestParams
}

// Chain is a small state machine of radio commands interpreted by a Backend: execution
// starts at step 0 and continues along OnSuccess or OnFailure of each finished step.
type Chain struct {
	Name  string
	Steps []Step
}

// Transition returns the successor of step i given its final status.
func (c *Chain) Transition(i int) Next {
	s := &c.Steps[i]
	if s.Status.Ok() {
		return s.OnSuccess
	}
	return s.OnFailure
}

// Reset marks all steps idle before the chain is posted again.
func (c *Chain) Reset() {
	for i := range c.Steps {
		c.Steps[i].Status = StepIdle
	}
}

// Find returns the index of the first step of the given kind, or -1.
func (c *Chain) Find(kind StepKind) int {
	for i := range c.Steps {
		if c.Steps[i].Kind == kind {
			return i
		}
	}
	return -1
}

func (c *Chain) String() string {
	parts := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		parts[i] = fmt.Sprintf("%s:%s", s.Kind, s.Status)
	}
	return fmt.Sprintf("%s[%s]", c.Name, strings.Join(parts, " "))
}

// newTxChain builds FS(tx) -> TX, with a failing FS step ending in the shared FS-off.
func newTxChain(payload []byte) *Chain {
	return &Chain{
		Name: "tx",
		Steps: []Step{
			{Kind: StepFs, OnSuccess: 1, OnFailure: NextFsOff, Fs: FsParams{TxMode: true}},
			{Kind: StepTx, OnSuccess: NextEnd, OnFailure: NextEnd, Tx: TxParams{Payload: payload}},
		},
	}
}

// newRxChain builds FS(rx) -> RX, with a failing FS step ending in the shared FS-off.
func newRxChain(entry *RxEntry) *Chain {
	return &Chain{
		Name: "rx",
		Steps: []Step{
			{Kind: StepFs, OnSuccess: 1, OnFailure: NextFsOff},
			{Kind: StepRx, OnSuccess: NextEnd, OnFailure: NextEnd, Rx: RxParams{Entry: entry}},
		},
	}
}

func newFsOffChain() *Chain {
	return &Chain{
		Name:  "fs-off",
		Steps: []Step{{Kind: StepFsOff, OnSuccess: NextEnd, OnFailure: NextEnd}},
	}
}

func newTxTestChain() *Chain {
	return &Chain{
		Name:  "tx-test",
		Steps: []Step{{Kind: StepTxTest, OnSuccess: NextEnd, OnFailure: NextEnd}},
	}
}

// EntryStatus is the ownership state of a receive entry.
type EntryStatus uint8

const (
	EntryPending  EntryStatus = iota // armed, owned by the radio
	EntryActive                      // being written by the radio
	EntryFinished                    // holds a received packet
)

// RxEntry is the raw receive descriptor written by the radio: Data[0] is the packet length,
// followed by the payload and one RSSI byte.
type RxEntry struct {
	Status EntryStatus
	Data   []byte
}

func NewRxEntry(size int) *RxEntry {
	return &RxEntry{
		Status: EntryPending,
		Data:   make([]byte, size),
	}
}

// Write stores a received packet in radio layout. A payload longer than the entry is cut,
// but the length byte keeps the length seen on air.
func (e *RxEntry) Write(payload []byte, rssi int8) {
	e.Status = EntryActive
	for i := range e.Data {
		e.Data[i] = 0
	}
	e.Data[0] = byte(len(payload))
	n := copy(e.Data[1:], payload)
	if 1+n < len(e.Data) && n == len(payload) {
		e.Data[1+n] = byte(rssi)
	}
	e.Status = EntryFinished
}

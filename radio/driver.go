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

// Package radio implements the timestamped half-duplex frame transceiver consumed by the
// MAC. The Driver owns the transmit and receive command chains, the frame buffers and the
// capture callbacks, and corrects the event times of a Backend into on-air frame
// boundaries.
package radio

import (
	"sync/atomic"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

// CaptureFunc is a frame boundary callback. It runs in interrupt context, must not block
// and must not call back into the Driver; see CallbackQueue.
type CaptureFunc func(ctx interface{}, ts TimeUs)

const (
	txEvents = EventCmdDone | EventLastCmdDone
	rxEvents = EventMdmSoft | EventRxOk | EventRxNOk
)

// fatalf terminates the process on unrecoverable hardware faults.
var fatalf = logger.Fatalf

// Driver is the transceiver of one radio. Control-plane methods are called from a single
// mainline context; event handlers run in interrupt context through the backend.
type Driver struct {
	cfg      Config
	caps     Capabilities
	backend  Backend
	clock    timer.Clock
	guard    *critsec.Section
	observer Observer

	idle   atomic.Bool
	opened bool

	// guarded by the critical section, written by the event handlers
	onStart       CaptureFunc
	onEnd         CaptureFunc
	cbCtx         interface{}
	txTransaction CmdHandle
	rxTransaction CmdHandle
	rxPacket      []byte
	rxLength      int
	rxRssi        int8

	txBuf   []byte
	txChain *Chain
	rxChain *Chain
	rxEntry *RxEntry
	fsOff   *Chain
	txTest  *Chain
}

// New creates a driver for a validated configuration. guard must belong to the interrupt
// controller the backend raises its events through.
func New(cfg Config, backend Backend, clock timer.Clock, guard *critsec.Section) *Driver {
	d := &Driver{
		cfg:           cfg,
		caps:          cfg.Capabilities(),
		backend:       backend,
		clock:         clock,
		guard:         guard,
		observer:      nopObserver{},
		txTransaction: AllocError,
		rxTransaction: AllocError,
		rxPacket:      make([]byte, cfg.MaxPsduLength),
		txBuf:         make([]byte, cfg.MaxPsduLength),
		rxEntry:       NewRxEntry(cfg.MaxPsduLength + rxEntryOverhead),
		fsOff:         newFsOffChain(),
		txTest:        newTxTestChain(),
	}
	d.txChain = newTxChain(d.txBuf[:0])
	d.rxChain = newRxChain(d.rxEntry)
	d.idle.Store(true)
	return d
}

// SetObserver installs an activity observer, e.g. a metrics collector.
func (d *Driver) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Init acquires the radio and leaves it idle. Failing to acquire the radio is fatal.
func (d *Driver) Init() Status {
	d.guard.Enter()
	d.txTransaction = AllocError
	d.rxTransaction = AllocError
	d.guard.Exit()

	if err := d.backend.Open(d.cfg.Phy); err != nil {
		fatalf("radio initialization failure: %v", err)
		return StatusGeneralError
	}
	d.opened = true
	d.Idle()
	logger.Debugf("radio initialized, %d channels from %d kHz", d.cfg.Band.ChannelCount, d.cfg.Band.StartFrequencyKHz)
	return StatusSuccess
}

// SetCallbacks registers the capture callbacks and the opaque context passed back to them.
func (d *Driver) SetCallbacks(onStart, onEnd CaptureFunc, ctx interface{}) {
	d.guard.Enter()
	defer d.guard.Exit()
	d.onStart = onStart
	d.onEnd = onEnd
	d.cbCtx = ctx
}

// Deinit idles and releases the radio. It is a no-op when the radio is not open.
func (d *Driver) Deinit() {
	if !d.opened {
		return
	}
	d.Idle()
	if err := d.backend.Close(); err != nil {
		logger.Warnf("radio close failed: %v", err)
	}
	d.opened = false
}

// Idle cancels all transmit and receive activity. No capture callback runs after Idle
// returns, until the next enable call.
func (d *Driver) Idle() Status {
	// must precede the flush: an event racing with it finds the driver idle
	d.idle.Store(true)

	// also waits for a handler that started before the flag was set
	d.guard.Enter()
	tx, rx := d.txTransaction, d.rxTransaction
	d.txTransaction = AllocError
	d.rxTransaction = AllocError
	d.rxEntry.Status = EntryPending
	d.guard.Exit()

	d.backend.Flush(tx)
	d.backend.Flush(rx)
	d.fsOff.Reset()
	if _, err := d.backend.Post(d.fsOff, PriorityHigh, nil, 0); err != nil {
		logger.Warnf("radio idle: posting synthesizer off failed: %v", err)
	}
	return StatusSuccess
}

// EnableTransmit prepares the next transmission. Payloads longer than the maximum PSDU
// length are truncated, channel and power are clamped.
func (d *Driver) EnableTransmit(ch ChannelId, power PowerDbm, psdu []byte) Status {
	d.idle.Store(false)

	n := len(psdu)
	if n > d.cfg.MaxPsduLength {
		n = d.cfg.MaxPsduLength
	}

	d.setTxPower(power)
	d.cfg.Band.Tune(&d.txChain.Steps[0].Fs, ch)

	copy(d.txBuf, psdu[:n])
	d.txChain.Steps[1].Tx.Payload = d.txBuf[:n]
	return StatusSuccess
}

func (d *Driver) setTxPower(power PowerDbm) {
	entry := d.cfg.PowerTable.Lookup(power)
	if err := d.backend.SetTxPower(entry); err != nil {
		logger.Warnf("radio set tx power %d dBm failed: %v", entry.Dbm, err)
	}
}

// TransmitNow posts the prepared transmit chain.
func (d *Driver) TransmitNow() Status {
	d.txChain.Reset()

	d.guard.Enter()
	h, err := d.backend.Post(d.txChain, PriorityHigh, d.handleTx, txEvents)
	d.txTransaction = h
	d.guard.Exit()

	d.observer.ChainPosted(DirTx, err)
	if err != nil {
		logger.Debugf("radio tx post failed: %v", err)
		d.setTransaction(DirTx, AllocError)
		return StatusGeneralError
	}
	return StatusSuccess
}

// EnableReceive prepares the next reception. Only one receive chain may be outstanding.
func (d *Driver) EnableReceive(ch ChannelId) Status {
	d.guard.Enter()
	outstanding := d.rxTransaction != AllocError
	d.guard.Exit()
	if outstanding {
		return StatusWrongState
	}

	d.idle.Store(false)
	d.cfg.Band.Tune(&d.rxChain.Steps[0].Fs, ch)
	return StatusSuccess
}

// ReceiveNow posts the prepared receive chain.
func (d *Driver) ReceiveNow() Status {
	d.rxChain.Reset()

	d.guard.Enter()
	h, err := d.backend.Post(d.rxChain, PriorityHigh, d.handleRx, rxEvents)
	d.rxTransaction = h
	d.guard.Exit()

	d.observer.ChainPosted(DirRx, err)
	if err != nil {
		logger.Debugf("radio rx post failed: %v", err)
		d.setTransaction(DirRx, AllocError)
		return StatusGeneralError
	}
	return StatusSuccess
}

func (d *Driver) setTransaction(dir Direction, h CmdHandle) {
	d.guard.Enter()
	defer d.guard.Exit()
	if dir == DirTx {
		d.txTransaction = h
	} else {
		d.rxTransaction = h
	}
}

// GetReceivedFrame copies the last received frame into buf and consumes it. A frame that
// does not fit buf is discarded rather than truncated.
func (d *Driver) GetReceivedFrame(buf []byte) RxInfo {
	d.guard.Enter()
	defer d.guard.Exit()

	if len(buf) < d.rxLength {
		d.observer.FrameReceived(RxResultDiscarded, d.rxLength, d.rxRssi)
		d.rxLength = 0
	}
	info := RxInfo{
		CrcValid:   d.rxLength != 0,
		Lqi:        0,
		MpduLength: d.rxLength,
		Rssi:       d.rxRssi,
	}
	if d.rxLength != 0 {
		copy(buf, d.rxPacket[:d.rxLength])
	}
	d.rxLength = 0
	return info
}

// StartContinuousTransmit starts an unmodulated carrier or a modulated test signal. It runs
// until the next Idle.
func (d *Driver) StartContinuousTransmit(mode ContinuousTxMode, ch ChannelId, power PowerDbm) Status {
	if d.EnableTransmit(ch, power, []byte{0}) == StatusSuccess {
		step := &d.txTest.Steps[0]
		step.TxTest.UseCarrier = mode == ContinuousTxCarrier
		step.TxTest.Fs = d.txChain.Steps[0].Fs
		d.txTest.Reset()
		if err := d.backend.RunTest(d.txTest); err != nil {
			logger.Warnf("radio continuous %s tx failed: %v", mode, err)
		}
	}
	return StatusSuccess
}

// Capabilities returns the static timing descriptor of the radio.
func (d *Driver) Capabilities() *Capabilities {
	return &d.caps
}

// Config returns the configuration the driver was created with.
func (d *Driver) Config() Config {
	return d.cfg
}

// IsIdle reports the idle flag.
func (d *Driver) IsIdle() bool {
	return d.idle.Load()
}

func (d *Driver) handleRx(_ CmdHandle, e EventMask) {
	if d.idle.Load() {
		d.observer.StaleEvent(DirRx)
		return
	}

	t := d.clock.ReadCounter()
	switch {
	case e&EventMdmSoft != 0:
		ts := t - TimeUs(d.cfg.Timings.RxStartCorrection)
		d.observer.FrameStarted(DirRx, ts)
		if d.onStart != nil {
			d.onStart(d.cbCtx, ts)
		}
	case e&(EventRxOk|EventRxNOk) != 0:
		status := d.rxChain.Steps[1].Status
		if status == StepDoneOk || status == StepDoneRxErr {
			d.captureFrame(status)
			d.rearmRx()
			d.observer.FrameEnded(DirRx, t)
			if d.onEnd != nil {
				d.onEnd(d.cbCtx, t)
			}
		} else {
			d.rearmRx()
		}
	default:
		d.rearmRx()
	}
}

func (d *Driver) rearmRx() {
	d.rxEntry.Status = EntryPending
	d.rxTransaction = AllocError
}

// captureFrame moves a packet from the receive entry into the holding buffer.
func (d *Driver) captureFrame(status StepStatus) {
	raw := d.rxEntry.Data
	n := int(raw[0])
	switch {
	case status != StepDoneOk:
		d.rxLength, d.rxRssi = 0, 0
		d.observer.FrameReceived(RxResultCrcError, n, 0)
	case n > d.cfg.MaxPsduLength || n+2 > len(raw):
		d.rxLength, d.rxRssi = 0, 0
		d.observer.FrameReceived(RxResultTooLong, n, 0)
	default:
		d.rxLength = n
		d.rxRssi = int8(raw[n+1])
		copy(d.rxPacket, raw[1:1+n])
		d.observer.FrameReceived(RxResultOk, n, d.rxRssi)
	}
}

func (d *Driver) handleTx(_ CmdHandle, e EventMask) {
	if d.idle.Load() {
		d.observer.StaleEvent(DirTx)
		return
	}

	t := d.clock.ReadCounter()
	switch {
	case e&EventLastCmdDone != 0:
		d.txTransaction = AllocError
		if d.txChain.Steps[1].Status == StepDoneOk {
			ts := t + TimeUs(d.cfg.Timings.TxEndCorrection)
			d.observer.FrameEnded(DirTx, ts)
			if d.onEnd != nil {
				d.onEnd(d.cbCtx, ts)
			}
		}
	case e&EventCmdDone != 0:
		ts := t + TimeUs(d.cfg.Timings.TxStartCorrection)
		d.observer.FrameStarted(DirTx, ts)
		if d.onStart != nil {
			d.onStart(d.cbCtx, ts)
		}
	default:
		d.txTransaction = AllocError
	}
}

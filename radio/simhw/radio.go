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

package simhw

import (
	"github.com/pkg/errors"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	. "github.com/embenet/nodeport/types"
)

// MaxCommands is the number of chains a radio holds at once, running or queued.
const MaxCommands = 8

// command is a posted chain being executed.
type command struct {
	handle  radio.CmdHandle
	chain   *radio.Chain
	handler radio.EventHandler
	mask    radio.EventMask
	test    bool

	step    int
	flushed bool
	events  []*event
	frame   *airFrame
}

// delivery is an event raised on the interrupt controller of a radio. apply updates the
// chain in interrupt context, before the handler runs.
type delivery struct {
	r      *Radio
	cmd    *command
	events radio.EventMask
	apply  func()
}

func (d delivery) raise() {
	m := d.r.m
	d.r.ctrl.Raise(func() {
		m.mu.Lock()
		if d.cmd.flushed {
			m.mu.Unlock()
			return
		}
		if d.apply != nil {
			d.apply()
		}
		m.mu.Unlock()

		if d.cmd.handler != nil && d.events&(d.cmd.mask|radio.EventsAlwaysDelivered) != 0 {
			d.cmd.handler(d.cmd.handle, d.events)
		}
	})
}

// reception is a frame a listening radio synchronized to.
type reception struct {
	cmd      *command
	frame    *airFrame
	rssi     float64
	collided bool
}

// Radio is the simulated radio of one node. It implements radio.Backend.
type Radio struct {
	m    *Medium
	id   NodeId
	pos  Position
	ctrl *critsec.Controller
	log  *logger.NodeLogger

	openErr    error
	opened     bool
	phy        radio.PhyConfig
	power      radio.PowerEntry
	nextHandle radio.CmdHandle
	active     map[radio.CmdHandle]*command
	current    *command
	queue      []*command
	state      RadioStates
	tuned      bool
	fs         radio.FsParams
	listening  bool
	rx         *reception
}

var _ radio.Backend = (*Radio)(nil)

func newRadio(m *Medium, id NodeId, pos Position, ctrl *critsec.Controller) *Radio {
	return &Radio{
		m:      m,
		id:     id,
		pos:    pos,
		ctrl:   ctrl,
		log:    logger.GetNodeLogger(id),
		active: map[radio.CmdHandle]*command{},
		state:  RadioOff,
	}
}

func (r *Radio) Id() NodeId {
	return r.id
}

func (r *Radio) Position() Position {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.pos
}

func (r *Radio) SetPosition(pos Position) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.pos = pos
}

// State returns the current radio state.
func (r *Radio) State() RadioStates {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.state
}

// TxPower returns the power table entry last applied.
func (r *Radio) TxPower() radio.PowerEntry {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.power
}

// FailOpen makes subsequent Open calls fail with err; nil restores normal operation.
func (r *Radio) FailOpen(err error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.openErr = err
}

func (r *Radio) Open(phy radio.PhyConfig) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.openErr != nil {
		return errors.Wrapf(r.openErr, "node %d: open radio", r.id)
	}
	r.phy = phy
	r.opened = true
	r.log.Debugf("radio opened, %d bps", phy.BitRate)
	return nil
}

func (r *Radio) Close() error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !r.opened {
		return radio.ErrNotOpen
	}
	for _, c := range r.active {
		r.drop(c)
	}
	r.opened = false
	r.tuned = false
	r.m.setRadioState(r, RadioOff)
	return nil
}

func (r *Radio) SetTxPower(entry radio.PowerEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.power = entry
	return nil
}

func (r *Radio) Post(chain *radio.Chain, prio radio.Priority, handler radio.EventHandler, mask radio.EventMask) (radio.CmdHandle, error) {
	return r.post(chain, prio, handler, mask, false)
}

func (r *Radio) RunTest(chain *radio.Chain) error {
	_, err := r.post(chain, radio.PriorityHigh, nil, 0, true)
	return err
}

func (r *Radio) post(chain *radio.Chain, prio radio.Priority, handler radio.EventHandler, mask radio.EventMask, test bool) (radio.CmdHandle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if !r.opened {
		return radio.AllocError, radio.ErrNotOpen
	}
	if len(chain.Steps) == 0 {
		return radio.AllocError, errors.Errorf("node %d: empty chain %s", r.id, chain.Name)
	}

	// a chain posted again replaces its previous execution silently
	for _, c := range r.active {
		if c.chain == chain {
			r.drop(c)
		}
	}
	if len(r.active) >= MaxCommands {
		return radio.AllocError, radio.ErrAllocFailed
	}

	c := &command{
		handle:  r.allocHandle(),
		chain:   chain,
		handler: handler,
		mask:    mask,
		test:    test,
	}
	r.active[c.handle] = c

	switch {
	case r.current == nil:
		r.start(c)
	case prio == radio.PriorityHigh || r.current.test:
		r.abort(r.current)
		r.start(c)
	default:
		r.queue = append(r.queue, c)
	}
	return c.handle, nil
}

func (r *Radio) allocHandle() radio.CmdHandle {
	for {
		h := r.nextHandle
		r.nextHandle = (r.nextHandle + 1) & 0x7FFF
		if r.active[h] == nil {
			return h
		}
	}
}

func (r *Radio) Flush(h radio.CmdHandle) {
	if h == radio.AllocError {
		return
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c := r.active[h]; c != nil {
		r.drop(c)
	}
}

// drop removes a command without delivering any further event.
func (r *Radio) drop(c *command) {
	c.flushed = true
	r.stop(c)
	delete(r.active, c.handle)
	for i, q := range r.queue {
		if q == c {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	if r.current == c {
		r.current = nil
		r.idle()
		r.startNext()
	}
}

// abort preempts the running command, which receives a last aborted event. It keeps its
// handle until then, so that it can still be flushed.
func (r *Radio) abort(c *command) {
	r.stop(c)
	r.current = nil
	r.idle()
	step := c.step
	r.later(c, r.m.now(), func(now uint64) []delivery {
		delete(r.active, c.handle)
		return []delivery{{r, c, radio.EventLastCmdDone | radio.EventCmdAborted, func() {
			c.chain.Steps[step].Status = radio.StepDoneAborted
		}}}
	})
	r.log.Debugf("chain %s aborted", c.chain.Name)
}

// stop cancels the pending activity of c.
func (r *Radio) stop(c *command) {
	for _, ev := range c.events {
		r.m.cancel(ev)
	}
	c.events = nil
	if c.frame != nil && r.m.now() < c.frame.end {
		c.frame.truncated = true
	}
	if r.rx != nil && r.rx.cmd == c {
		r.rx = nil
	}
	if r.current == c {
		r.listening = false
	}
}

// later schedules fn as part of the execution of c, so that flushing c cancels it.
func (r *Radio) later(c *command, ts uint64, fn func(now uint64) []delivery) {
	var ev *event
	ev = r.m.schedule(ts, func(now uint64) []delivery {
		for i, e := range c.events {
			if e == ev {
				c.events = append(c.events[:i], c.events[i+1:]...)
				break
			}
		}
		return fn(now)
	})
	c.events = append(c.events, ev)
}

func (r *Radio) idle() {
	r.listening = false
	r.rx = nil
	if r.tuned {
		r.m.setRadioState(r, RadioIdle)
	} else {
		r.m.setRadioState(r, RadioOff)
	}
}

func (r *Radio) startNext() {
	if r.current != nil || len(r.queue) == 0 {
		return
	}
	c := r.queue[0]
	r.queue = r.queue[1:]
	r.start(c)
}

// start begins the execution of c at its first step. It only schedules events.
func (r *Radio) start(c *command) {
	r.current = c
	c.step = 0
	r.startStep(c)
}

func (r *Radio) startStep(c *command) {
	now := r.m.now()
	step := &c.chain.Steps[c.step]

	switch step.Kind {
	case radio.StepFs:
		fs := step.Fs
		r.later(c, now+uint64(r.m.cfg.FsSettleUs), func(now uint64) []delivery {
			_, ok := r.m.cfg.Band.ChannelOf(fs.KHz())
			if ok {
				r.tuned, r.fs = true, fs
			} else {
				r.log.Warnf("synthesizer cannot lock on %d kHz", fs.KHz())
			}
			return r.completeStep(c, ok, 0)
		})

	case radio.StepTx:
		payload := append([]byte(nil), step.Tx.Payload...)
		r.m.setRadioState(r, RadioTx)
		airStart := now + uint64(r.m.cfg.Timings.TxStartCorrection)
		r.later(c, airStart, func(now uint64) []delivery {
			return r.transmit(c, payload, now)
		})

	case radio.StepRx:
		r.m.setRadioState(r, RadioRx)
		r.listening = true

	case radio.StepFsOff:
		r.later(c, now, func(now uint64) []delivery {
			r.tuned = false
			r.m.setRadioState(r, RadioOff)
			return r.completeStep(c, true, 0)
		})

	case radio.StepTxTest:
		r.m.setRadioState(r, RadioTx)
		r.log.Debugf("continuous tx on %d kHz, carrier %v", step.TxTest.Fs.KHz(), step.TxTest.UseCarrier)

	default:
		r.later(c, now, func(now uint64) []delivery {
			return r.completeStep(c, false, 0)
		})
	}
}

// completeStep finishes the current step of c, moves along its transition and returns the
// resulting event.
func (r *Radio) completeStep(c *command, ok bool, extra radio.EventMask) []delivery {
	i := c.step
	step := &c.chain.Steps[i]
	status := radio.StepDoneOk
	if !ok {
		status = radio.StepError
		if step.Kind == radio.StepRx {
			status = radio.StepDoneRxErr
		}
	}

	next := step.OnFailure
	if ok {
		next = step.OnSuccess
	}

	events := radio.EventCmdDone | extra
	if next < 0 || int(next) >= len(c.chain.Steps) {
		events |= radio.EventLastCmdDone
		if next == radio.NextFsOff {
			r.tuned = false
		}
		r.finish(c)
	} else {
		c.step = int(next)
		r.startStep(c)
	}

	return []delivery{{r, c, events, func() {
		c.chain.Steps[i].Status = status
	}}}
}

// finish retires c after its last step.
func (r *Radio) finish(c *command) {
	delete(r.active, c.handle)
	if r.current == c {
		r.current = nil
		r.idle()
		r.startNext()
	}
}

// transmit puts the payload of c on air.
func (r *Radio) transmit(c *command, payload []byte, now uint64) []delivery {
	m := r.m
	ch, _ := m.cfg.Band.ChannelOf(r.fs.KHz())
	f := &airFrame{
		src:      r,
		fs:       r.fs,
		channel:  ch,
		payload:  payload,
		powerDbm: float64(r.power.Dbm),
		start:    now,
		end:      now + m.cfg.Phy.AirTimeUs(len(payload)),
	}
	c.frame = f
	r.log.Debugf("tx %d bytes on channel %d at %d dBm", len(payload), ch, r.power.Dbm)

	done := f.end - uint64(m.cfg.Timings.TxEndCorrection)
	if done < now {
		done = now
	}
	r.later(c, done, func(now uint64) []delivery {
		return r.completeStep(c, true, 0)
	})
	return m.startFrame(f)
}

// frameStarted is called on every other radio when f goes on air.
func (r *Radio) frameStarted(f *airFrame) []delivery {
	if !r.listening || !r.tuned || r.fs.FrequencyMHz != f.fs.FrequencyMHz || r.fs.FractFreq != f.fs.FractFreq {
		return nil
	}
	if !r.m.detectable(f, r) {
		return nil
	}
	if r.rx != nil {
		r.rx.collided = true
		return nil
	}

	rx := &reception{
		cmd:   r.current,
		frame: f,
		rssi:  r.m.rssi(f, r),
	}
	for _, g := range r.m.onAir {
		if g != f && g.channel == f.channel && r.m.detectable(g, r) {
			rx.collided = true
		}
	}
	r.rx = rx

	sync := f.start + uint64(r.m.cfg.Timings.RxStartCorrection)
	if sync > f.end {
		sync = f.end
	}
	r.later(rx.cmd, sync, func(now uint64) []delivery {
		return []delivery{{r, rx.cmd, radio.EventMdmSoft, nil}}
	})
	return nil
}

// frameEnded completes the reception of f, if r was receiving it.
func (r *Radio) frameEnded(f *airFrame) []delivery {
	rx := r.rx
	if rx == nil {
		return nil
	}
	if rx.frame != f {
		// an interferer on the same channel overlapping the reception
		if f.channel == rx.frame.channel && r.m.detectable(f, r) {
			rx.collided = true
		}
		return nil
	}
	r.rx = nil

	c := rx.cmd
	ok := !rx.collided && !f.truncated && !r.m.packetError()
	payload, rssi := f.payload, rssiByte(rx.rssi)
	entry := c.chain.Steps[c.step].Rx.Entry
	rxEvent := radio.EventRxOk
	if !ok {
		rxEvent = radio.EventRxNOk
	}
	r.log.Debugf("rx %d bytes from node %d, rssi %d, ok %v", len(payload), f.src.id, rssi, ok)

	r.listening = false
	ds := r.completeStep(c, ok, rxEvent)
	if entry != nil {
		apply := ds[0].apply
		ds[0].apply = func() {
			entry.Write(payload, rssi)
			apply()
		}
	}
	return ds
}

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

// Package serialhw drives a radio coprocessor over a serial link. The host side is a
// radio.Backend; the coprocessor side, Device, executes the posted chains on a local
// backend and reports their events back with coprocessor timestamps.
package serialhw

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

const (
	// MaxCommands is the number of chains the coprocessor keeps in flight.
	MaxCommands       = 8
	DefaultBaudRate   = 115200
	DefaultAckTimeout = time.Second
)

var (
	ErrTimeout = errors.New("coprocessor did not answer")
	ErrHangup  = errors.New("coprocessor link closed")
)

type command struct {
	handle  uint16
	chain   *radio.Chain
	handler radio.EventHandler
	mask    radio.EventMask
}

type ack struct {
	err  error
	data []byte
}

type tickRef struct {
	ticks uint32
	at    time.Time
}

// Radio is the host end of the coprocessor link.
type Radio struct {
	port io.ReadWriteCloser
	ctrl *critsec.Controller

	// AckTimeout bounds the wait for the answer to Open, Close and Sync.
	AckTimeout time.Duration

	wlock   sync.Mutex
	reqLock sync.Mutex
	acks    chan ack
	done    chan struct{}
	closing atomic.Bool
	eventUs atomic.Uint32

	// coprocessor tick counter at a host instant, taken by Sync
	refLock sync.Mutex
	ref     tickRef

	lock   sync.Mutex
	opened bool
	slots  [MaxCommands]*command
	gen    uint16
}

// New starts serving the link on port. Events are raised through ctrl.
func New(port io.ReadWriteCloser, ctrl *critsec.Controller) *Radio {
	r := &Radio{
		port:       port,
		ctrl:       ctrl,
		AckTimeout: DefaultAckTimeout,
		acks:       make(chan ack, 1),
		done:       make(chan struct{}),
		ref:        tickRef{at: time.Now()},
	}
	go r.readLoop()
	return r
}

// OpenPort opens a serial port in 8N1 mode and drops stale input.
func OpenPort(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	if err = port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "reset %s", name)
	}
	return port, nil
}

// Dial opens the serial port of the coprocessor.
func Dial(name string, baud int, ctrl *critsec.Controller) (*Radio, error) {
	port, err := OpenPort(name, baud)
	if err != nil {
		return nil, err
	}
	logger.Infof("coprocessor link on %s at %d baud", name, baud)
	return New(port, ctrl), nil
}

// EventClock returns a clock that reads the coprocessor timestamp of the event being
// delivered. A driver using it timestamps frames in coprocessor time.
func (r *Radio) EventClock() timer.Clock {
	return eventClock{r}
}

type eventClock struct {
	r *Radio
}

func (c eventClock) ReadCounter() TimeUs {
	return TimeUs(c.r.eventUs.Load())
}

func (r *Radio) Open(phy radio.PhyConfig) error {
	if err := r.request(&Message{Type: MsgTypeOpen, Data: encodePhy(phy)}); err != nil {
		return errors.Wrap(err, "open radio")
	}
	r.lock.Lock()
	r.opened = true
	r.lock.Unlock()
	return nil
}

func (r *Radio) Close() error {
	r.lock.Lock()
	if !r.opened {
		r.lock.Unlock()
		return radio.ErrNotOpen
	}
	r.opened = false
	for i := range r.slots {
		r.slots[i] = nil
	}
	r.lock.Unlock()
	return errors.Wrap(r.request(&Message{Type: MsgTypeClose}), "close radio")
}

// Hangup closes the link. Pending requests fail with ErrHangup.
func (r *Radio) Hangup() error {
	r.closing.Store(true)
	return r.port.Close()
}

// Sync returns once the coprocessor has handled every message sent before it, and all its
// events sent before the answer have been delivered.
// Sync waits for the coprocessor to answer a ping, which also orders it after every event
// sent before. When the answer carries the coprocessor tick counter, Ticks is aligned to it.
func (r *Radio) Sync() error {
	sent := time.Now()
	a, err := r.exchange(&Message{Type: MsgTypePing})
	if err != nil {
		return err
	}
	if ticks, ok := decodeAckTicks(a.data); ok {
		// the counter was read about half way through the round trip
		at := sent.Add(time.Since(sent) / 2)
		r.refLock.Lock()
		r.ref = tickRef{ticks: ticks, at: at}
		r.refLock.Unlock()
	}
	return nil
}

// Ticks estimates the tick counter of the coprocessor from the last Sync and the host
// clock. It implements timer.TickSource, so the MAC timer of the node counts in the same
// time base as the frame timestamps of EventClock.
func (r *Radio) Ticks() uint32 {
	r.refLock.Lock()
	ref := r.ref
	r.refLock.Unlock()
	elapsed := uint64(time.Since(ref.at).Nanoseconds()) * 3 / 4000
	return uint32((uint64(ref.ticks) + elapsed) % (uint64(timer.TicksLoadValue) + 1))
}

func (r *Radio) SetTxPower(entry radio.PowerEntry) error {
	if !r.isOpen() {
		return radio.ErrNotOpen
	}
	return r.send(&Message{Type: MsgTypeSetTxPower, Data: encodePower(entry)})
}

func (r *Radio) Post(chain *radio.Chain, prio radio.Priority, handler radio.EventHandler, mask radio.EventMask) (radio.CmdHandle, error) {
	if len(chain.Steps) == 0 {
		return radio.AllocError, errors.New("empty chain")
	}

	r.lock.Lock()
	if !r.opened {
		r.lock.Unlock()
		return radio.AllocError, radio.ErrNotOpen
	}
	// a chain posted again replaces its previous execution
	var replaced []uint16
	for _, c := range r.slots {
		if c != nil && c.chain == chain {
			r.release(c)
			replaced = append(replaced, c.handle)
		}
	}
	c := r.alloc(chain, handler, mask)
	r.lock.Unlock()

	for _, h := range replaced {
		r.sendFlush(h)
	}
	if c == nil {
		return radio.AllocError, radio.ErrAllocFailed
	}

	for i := range chain.Steps {
		chain.Steps[i].Status = radio.StepPending
	}
	if err := r.send(&Message{Type: MsgTypePost, Handle: c.handle, Data: encodePost(chain, prio, mask)}); err != nil {
		r.lock.Lock()
		r.release(c)
		r.lock.Unlock()
		return radio.AllocError, err
	}
	return radio.CmdHandle(c.handle), nil
}

func (r *Radio) Flush(h radio.CmdHandle) {
	if h == radio.AllocError {
		return
	}
	r.lock.Lock()
	c := r.lookup(uint16(h))
	if c != nil {
		r.release(c)
	}
	r.lock.Unlock()

	if c != nil {
		r.sendFlush(c.handle)
	}
}

// RunTest starts a test chain. It takes no command slot, its end is never reported.
func (r *Radio) RunTest(chain *radio.Chain) error {
	if !r.isOpen() {
		return radio.ErrNotOpen
	}
	return r.send(&Message{Type: MsgTypeRunTest, Data: encodePost(chain, radio.PriorityHigh, 0)})
}

func (r *Radio) isOpen() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.opened
}

// alloc takes a free slot, or returns nil. Handles carry a generation above the slot index,
// so events of a flushed chain never reach the next user of its slot.
func (r *Radio) alloc(chain *radio.Chain, handler radio.EventHandler, mask radio.EventMask) *command {
	for i, c := range r.slots {
		if c != nil {
			continue
		}
		r.gen = (r.gen + 1) & 0x0FFF
		c = &command{
			handle:  r.gen<<3 | uint16(i),
			chain:   chain,
			handler: handler,
			mask:    mask,
		}
		r.slots[i] = c
		return c
	}
	return nil
}

func (r *Radio) lookup(handle uint16) *command {
	c := r.slots[handle%MaxCommands]
	if c == nil || c.handle != handle {
		return nil
	}
	return c
}

func (r *Radio) release(c *command) {
	if r.slots[c.handle%MaxCommands] == c {
		r.slots[c.handle%MaxCommands] = nil
	}
}

func (r *Radio) sendFlush(handle uint16) {
	if err := r.send(&Message{Type: MsgTypeFlush, Handle: handle}); err != nil {
		logger.Warnf("flush of command %#x failed: %v", handle, err)
	}
}

func (r *Radio) send(msg *Message) error {
	r.wlock.Lock()
	defer r.wlock.Unlock()
	if _, err := r.port.Write(msg.Serialize()); err != nil {
		return errors.Wrap(err, "coprocessor link write")
	}
	return nil
}

// request sends msg and waits for its acknowledgement.
func (r *Radio) request(msg *Message) error {
	_, err := r.exchange(msg)
	return err
}

// exchange sends msg and waits for the answer of the coprocessor.
func (r *Radio) exchange(msg *Message) (ack, error) {
	r.reqLock.Lock()
	defer r.reqLock.Unlock()

	select {
	case <-r.acks: // late answer of a timed out request
	default:
	}
	if err := r.send(msg); err != nil {
		return ack{}, err
	}

	select {
	case a := <-r.acks:
		return a, a.err
	case <-r.done:
		return ack{}, ErrHangup
	case <-time.After(r.AckTimeout):
		return ack{}, ErrTimeout
	}
}

func (r *Radio) readLoop() {
	defer close(r.done)

	var pending []byte
	buf := make([]byte, 1024)
	for {
		n, err := r.port.Read(buf)
		if err != nil {
			if !r.closing.Load() && err != io.EOF {
				logger.Warnf("coprocessor link read failed: %v", err)
			}
			return
		}
		pending = append(pending, buf[:n]...)
		for {
			var msg Message
			used := msg.Deserialize(pending)
			if used == 0 {
				break
			}
			pending = pending[used:]
			r.dispatch(&msg)
		}
		pending = append([]byte(nil), pending...)
	}
}

func (r *Radio) dispatch(msg *Message) {
	switch msg.Type {
	case MsgTypeAck:
		select {
		case r.acks <- ack{err: decodeAck(msg.Data), data: msg.Data}:
		default:
			logger.Warnf("unexpected coprocessor answer")
		}
	case MsgTypeEvent:
		ev, err := decodeEvent(msg.Data)
		if err != nil {
			logger.Warnf("bad event of command %#x: %v", msg.Handle, err)
			return
		}
		r.deliver(msg.Handle, &ev)
	default:
		logger.Warnf("unexpected coprocessor message type %d", msg.Type)
	}
}

// deliver applies the statuses and the receive entry of an event to its chain and calls the
// handler in interrupt context.
func (r *Radio) deliver(handle uint16, ev *EventData) {
	r.ctrl.Raise(func() {
		r.lock.Lock()
		c := r.lookup(handle)
		if c == nil {
			r.lock.Unlock()
			logger.Tracef("event %#x of flushed command %#x dropped", ev.Events, handle)
			return
		}
		steps := c.chain.Steps
		for i := 0; i < len(ev.Statuses) && i < len(steps); i++ {
			steps[i].Status = ev.Statuses[i]
		}
		if ev.Entry != nil {
			if i := c.chain.Find(radio.StepRx); i >= 0 && steps[i].Rx.Entry != nil {
				entry := steps[i].Rx.Entry
				for j := range entry.Data {
					entry.Data[j] = 0
				}
				copy(entry.Data, ev.Entry)
				entry.Status = radio.EntryFinished
			}
		}
		if ev.Events&radio.EventLastCmdDone != 0 {
			r.release(c)
		}
		handler, mask := c.handler, c.mask
		r.lock.Unlock()

		r.eventUs.Store(timer.TicksToUs(ev.Ticks))
		if handler != nil && ev.Events&(mask|radio.EventsAlwaysDelivered) != 0 {
			handler(radio.CmdHandle(handle), ev.Events)
		}
	})
}

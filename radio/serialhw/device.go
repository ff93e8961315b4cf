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

package serialhw

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/timer"
)

// Device is the coprocessor end of the link. It runs the chains posted by the host on a
// local backend and sends their events back, timestamped with clock.
type Device struct {
	conn    io.ReadWriter
	backend radio.Backend
	clock   timer.Clock

	lock    sync.Mutex
	handles map[uint16]radio.CmdHandle

	// outgoing messages, written by the writer goroutine of Serve so that reading the
	// link never waits for the host
	olock  sync.Mutex
	outbox [][]byte
	wake   chan struct{}
}

func NewDevice(conn io.ReadWriter, backend radio.Backend, clock timer.Clock) *Device {
	return &Device{
		conn:    conn,
		backend: backend,
		clock:   clock,
		handles: map[uint16]radio.CmdHandle{},
		wake:    make(chan struct{}, 1),
	}
}

// Serve handles host messages until the link is closed or ctx is done.
func (d *Device) Serve(ctx context.Context) error {
	if c, ok := d.conn.(io.Closer); ok {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-stop:
			}
		}()
	}

	written := make(chan struct{})
	stopWriter := make(chan struct{})
	defer func() {
		close(stopWriter)
		<-written
	}()
	go d.writeLoop(stopWriter, written)

	var pending []byte
	buf := make([]byte, 1024)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "coprocessor link read")
		}
		pending = append(pending, buf[:n]...)
		for {
			var msg Message
			used := msg.Deserialize(pending)
			if used == 0 {
				break
			}
			pending = pending[used:]
			d.handle(&msg)
		}
		pending = append([]byte(nil), pending...)
	}
}

func (d *Device) handle(msg *Message) {
	switch msg.Type {
	case MsgTypeOpen:
		phy, err := decodePhy(msg.Data)
		if err == nil {
			err = d.backend.Open(phy)
		}
		d.reply(err)
	case MsgTypeClose:
		d.lock.Lock()
		d.handles = map[uint16]radio.CmdHandle{}
		d.lock.Unlock()
		d.reply(d.backend.Close())
	case MsgTypeSetTxPower:
		entry, err := decodePower(msg.Data)
		if err == nil {
			err = d.backend.SetTxPower(entry)
		}
		if err != nil {
			logger.Warnf("set tx power: %v", err)
		}
	case MsgTypePost:
		d.post(msg.Handle, msg.Data)
	case MsgTypeFlush:
		d.lock.Lock()
		h, ok := d.handles[msg.Handle]
		delete(d.handles, msg.Handle)
		d.lock.Unlock()
		if ok {
			d.backend.Flush(h)
		}
	case MsgTypeRunTest:
		chain, _, _, err := decodePost(msg.Data)
		if err == nil {
			err = d.backend.RunTest(chain)
		}
		if err != nil {
			logger.Warnf("run test: %v", err)
		}
	case MsgTypePing:
		d.send(&Message{Type: MsgTypeAck, Data: encodeTimeAck(timer.UsToTicks(uint32(d.clock.ReadCounter())))})
	default:
		logger.Warnf("unexpected host message type %d", msg.Type)
	}
}

func (d *Device) post(host uint16, data []byte) {
	chain, prio, mask, err := decodePost(data)
	if err != nil {
		logger.Warnf("post of command %#x: %v", host, err)
		return
	}

	h, err := d.backend.Post(chain, prio, d.forward(host, chain), mask)
	if err != nil {
		// the host already handed out its handle: end the chain there
		logger.Debugf("post of command %#x failed: %v", host, err)
		for i := range chain.Steps {
			chain.Steps[i].Status = radio.StepError
		}
		d.sendEvent(host, chain, radio.EventLastCmdDone)
		return
	}

	d.lock.Lock()
	d.handles[host] = h
	d.lock.Unlock()
}

// forward returns the handler reporting the events of chain under the host handle.
func (d *Device) forward(host uint16, chain *radio.Chain) radio.EventHandler {
	return func(_ radio.CmdHandle, e radio.EventMask) {
		if e&radio.EventLastCmdDone != 0 {
			d.lock.Lock()
			delete(d.handles, host)
			d.lock.Unlock()
		}
		d.sendEvent(host, chain, e)
	}
}

func (d *Device) sendEvent(host uint16, chain *radio.Chain, e radio.EventMask) {
	ev := EventData{
		Events:   e,
		Ticks:    timer.UsToTicks(uint32(d.clock.ReadCounter())),
		Statuses: make([]radio.StepStatus, len(chain.Steps)),
	}
	for i := range chain.Steps {
		ev.Statuses[i] = chain.Steps[i].Status
	}
	if e&(radio.EventRxOk|radio.EventRxNOk) != 0 {
		if i := chain.Find(radio.StepRx); i >= 0 {
			if entry := chain.Steps[i].Rx.Entry; entry != nil && entry.Status == radio.EntryFinished {
				ev.Entry = entry.Data
			}
		}
	}
	d.send(&Message{Type: MsgTypeEvent, Handle: host, Data: ev.encode()})
}

func (d *Device) reply(err error) {
	d.send(&Message{Type: MsgTypeAck, Data: encodeAck(err)})
}

// send queues msg for the writer goroutine.
func (d *Device) send(msg *Message) {
	d.olock.Lock()
	d.outbox = append(d.outbox, msg.Serialize())
	d.olock.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Device) writeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-d.wake:
		case <-stop:
			return
		}
		d.olock.Lock()
		batch := d.outbox
		d.outbox = nil
		d.olock.Unlock()
		for _, data := range batch {
			if _, err := d.conn.Write(data); err != nil {
				logger.Warnf("coprocessor link write failed: %v", err)
			}
		}
	}
}

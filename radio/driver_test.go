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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

type fakePost struct {
	h       CmdHandle
	chain   *Chain
	prio    Priority
	handler EventHandler
	mask    EventMask
}

// fakeBackend records driver requests and delivers events on demand.
type fakeBackend struct {
	ctrl *critsec.Controller

	lock    sync.Mutex
	openErr error
	postErr error
	opened  bool
	posts   []fakePost
	flushed []CmdHandle
	power   []PowerEntry
	tests   []*Chain
}

func (fb *fakeBackend) Open(phy PhyConfig) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.openErr != nil {
		return fb.openErr
	}
	fb.opened = true
	return nil
}

func (fb *fakeBackend) Close() error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.opened = false
	return nil
}

func (fb *fakeBackend) SetTxPower(entry PowerEntry) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.power = append(fb.power, entry)
	return nil
}

func (fb *fakeBackend) Post(chain *Chain, prio Priority, handler EventHandler, mask EventMask) (CmdHandle, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.postErr != nil {
		return AllocError, fb.postErr
	}
	h := CmdHandle(len(fb.posts))
	fb.posts = append(fb.posts, fakePost{h, chain, prio, handler, mask})
	return h, nil
}

func (fb *fakeBackend) Flush(h CmdHandle) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if h != AllocError {
		fb.flushed = append(fb.flushed, h)
	}
}

func (fb *fakeBackend) RunTest(chain *Chain) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.tests = append(fb.tests, chain)
	return nil
}

func (fb *fakeBackend) lastPost() fakePost {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	return fb.posts[len(fb.posts)-1]
}

// fire raises event e of chain h in interrupt context, after applying update to the chain.
func (fb *fakeBackend) fire(h CmdHandle, e EventMask, update func(c *Chain)) {
	fb.lock.Lock()
	p := fb.posts[h]
	fb.lock.Unlock()

	fb.ctrl.Raise(func() {
		if update != nil {
			update(p.chain)
		}
		if p.handler != nil && e&(p.mask|EventsAlwaysDelivered) != 0 {
			p.handler(h, e)
		}
	})
}

type capture struct {
	lock   sync.Mutex
	starts []TimeUs
	ends   []TimeUs
}

func (c *capture) onStart(ctx interface{}, ts TimeUs) {
	c.lock.Lock()
	c.starts = append(c.starts, ts)
	c.lock.Unlock()
}

func (c *capture) onEnd(ctx interface{}, ts TimeUs) {
	c.lock.Lock()
	c.ends = append(c.ends, ts)
	c.lock.Unlock()
}

func newTestDriver(t *testing.T) (*Driver, *fakeBackend, *timer.Virtual, *capture) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	ctrl := critsec.NewController()
	fb := &fakeBackend{ctrl: ctrl}
	clk := timer.NewVirtual()
	d := New(cfg, fb, clk, critsec.NewSection(ctrl))
	if d.Init() != StatusSuccess {
		t.Fatal("init failed")
	}
	c := &capture{}
	d.SetCallbacks(c.onStart, c.onEnd, nil)
	return d, fb, clk, c
}

func setStatus(i int, s StepStatus) func(c *Chain) {
	return func(c *Chain) {
		c.Steps[i].Status = s
	}
}

func TestDriver_Init(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	assert.True(t, fb.opened)
	assert.True(t, d.IsIdle())
	p := fb.lastPost()
	assert.Equal(t, "fs-off", p.chain.Name)
	assert.Equal(t, PriorityHigh, p.prio)
	assert.Nil(t, p.handler)
}

func TestDriver_InitFailure(t *testing.T) {
	var fatal string
	saved := fatalf
	fatalf = func(format string, args ...interface{}) {
		fatal = fmt.Sprintf(format, args...)
	}
	defer func() {
		fatalf = saved
	}()

	ctrl := critsec.NewController()
	fb := &fakeBackend{ctrl: ctrl, openErr: errors.New("radio busy")}
	d := New(DefaultConfig(), fb, timer.NewVirtual(), critsec.NewSection(ctrl))

	assert.Equal(t, StatusGeneralError, d.Init())
	assert.Contains(t, fatal, "radio initialization failure")
	assert.Empty(t, fb.posts)
}

func TestDriver_EnableTransmitClampsChannelAndPower(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	assert.Equal(t, StatusSuccess, d.EnableTransmit(200, 20, []byte{1, 2, 3}))
	fs := d.txChain.Steps[0].Fs
	assert.Equal(t, uint16(869), fs.FrequencyMHz)
	assert.Equal(t, uint16(900*65), fs.FractFreq)
	assert.True(t, fs.TxMode)
	assert.Equal(t, PowerDbm(14), fb.power[len(fb.power)-1].Dbm)

	d.EnableTransmit(0, -5, []byte{1})
	fs = d.txChain.Steps[0].Fs
	assert.Equal(t, uint16(863), fs.FrequencyMHz)
	assert.Equal(t, uint16(100*65), fs.FractFreq)
	assert.Equal(t, PowerEntry{0, 0x04C0}, fb.power[len(fb.power)-1])

	d.EnableTransmit(3, 13, []byte{1})
	assert.Equal(t, PowerDbm(12), fb.power[len(fb.power)-1].Dbm)
	assert.False(t, d.IsIdle())
}

func TestDriver_EnableTransmitTruncates(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	psdu := make([]byte, 200)
	for i := range psdu {
		psdu[i] = byte(i)
	}
	d.EnableTransmit(1, 0, psdu)
	assert.Equal(t, StatusSuccess, d.TransmitNow())

	p := fb.lastPost()
	assert.Equal(t, "tx", p.chain.Name)
	assert.Equal(t, txEvents, p.mask)
	assert.Equal(t, psdu[:MaxPsduLength], p.chain.Steps[1].Tx.Payload)
}

func TestDriver_TransmitTimestamps(t *testing.T) {
	d, fb, clk, c := newTestDriver(t)

	d.EnableTransmit(5, 10, []byte{0xaa, 0xbb})
	clk.AdvanceTo(1000)
	d.TransmitNow()
	h := fb.lastPost().h
	assert.Equal(t, h, d.txTransaction)

	clk.AdvanceTo(1245)
	fb.fire(h, EventCmdDone, setStatus(0, StepDoneOk))
	assert.Equal(t, []TimeUs{1795}, c.starts)

	clk.AdvanceTo(2700)
	fb.fire(h, EventCmdDone|EventLastCmdDone, setStatus(1, StepDoneOk))
	assert.Equal(t, []TimeUs{3030}, c.ends)
	assert.Equal(t, AllocError, d.txTransaction)
}

func TestDriver_TransmitAborted(t *testing.T) {
	d, fb, clk, c := newTestDriver(t)

	d.EnableTransmit(5, 10, []byte{0xaa})
	d.TransmitNow()
	h := fb.lastPost().h

	clk.AdvanceTo(500)
	fb.fire(h, EventLastCmdDone|EventCmdAborted, setStatus(1, StepDoneAborted))
	assert.Empty(t, c.ends)
	assert.Equal(t, AllocError, d.txTransaction)
}

func TestDriver_TransmitPostFailure(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	fb.postErr = ErrAllocFailed
	d.EnableTransmit(5, 10, []byte{0xaa})
	assert.Equal(t, StatusGeneralError, d.TransmitNow())
	assert.Equal(t, AllocError, d.txTransaction)
}

func TestDriver_ReceiveFrame(t *testing.T) {
	d, fb, clk, c := newTestDriver(t)

	assert.Equal(t, StatusSuccess, d.EnableReceive(10))
	assert.Equal(t, StatusSuccess, d.ReceiveNow())
	p := fb.lastPost()
	assert.Equal(t, rxEvents, p.mask)
	assert.False(t, p.chain.Steps[0].Fs.TxMode)

	clk.AdvanceTo(10000)
	fb.fire(p.h, EventMdmSoft, nil)
	assert.Equal(t, []TimeUs{10000 - 1620}, c.starts)

	payload := []byte{1, 2, 3, 4, 5}
	clk.AdvanceTo(12000)
	fb.fire(p.h, EventRxOk|EventCmdDone|EventLastCmdDone, func(c *Chain) {
		c.Steps[1].Rx.Entry.Write(payload, -60)
		c.Steps[1].Status = StepDoneOk
	})
	assert.Equal(t, []TimeUs{12000}, c.ends)
	assert.Equal(t, AllocError, d.rxTransaction)
	assert.Equal(t, EntryPending, d.rxEntry.Status)

	buf := make([]byte, MaxPsduLength)
	info := d.GetReceivedFrame(buf)
	assert.True(t, info.CrcValid)
	assert.Equal(t, 5, info.MpduLength)
	assert.Equal(t, int8(-60), info.Rssi)
	assert.Equal(t, payload, buf[:5])

	info = d.GetReceivedFrame(buf)
	assert.False(t, info.CrcValid)
	assert.Equal(t, 0, info.MpduLength)
}

func TestDriver_ReceiveUndersizedBuffer(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	d.EnableReceive(10)
	d.ReceiveNow()
	h := fb.lastPost().h
	fb.fire(h, EventRxOk, func(c *Chain) {
		c.Steps[1].Rx.Entry.Write([]byte{1, 2, 3, 4, 5}, -70)
		c.Steps[1].Status = StepDoneOk
	})

	small := make([]byte, 3)
	info := d.GetReceivedFrame(small)
	assert.False(t, info.CrcValid)
	assert.Equal(t, 0, info.MpduLength)
	assert.Equal(t, []byte{0, 0, 0}, small)

	info = d.GetReceivedFrame(make([]byte, MaxPsduLength))
	assert.Equal(t, 0, info.MpduLength)
}

func TestDriver_ReceiveCrcError(t *testing.T) {
	d, fb, clk, c := newTestDriver(t)

	d.EnableReceive(10)
	d.ReceiveNow()
	h := fb.lastPost().h
	clk.AdvanceTo(4000)
	fb.fire(h, EventRxNOk, func(c *Chain) {
		c.Steps[1].Rx.Entry.Write([]byte{1, 2, 3}, -70)
		c.Steps[1].Status = StepDoneRxErr
	})

	assert.Equal(t, []TimeUs{4000}, c.ends)
	info := d.GetReceivedFrame(make([]byte, MaxPsduLength))
	assert.False(t, info.CrcValid)
	assert.Equal(t, 0, info.MpduLength)
	assert.Equal(t, StatusSuccess, d.EnableReceive(10))
}

func TestDriver_ReceiveOtherStatusRearms(t *testing.T) {
	d, fb, _, c := newTestDriver(t)

	d.EnableReceive(10)
	d.ReceiveNow()
	h := fb.lastPost().h
	fb.fire(h, EventRxOk, setStatus(1, StepDoneRxBufFull))

	assert.Empty(t, c.ends)
	assert.Equal(t, AllocError, d.rxTransaction)

	d.ReceiveNow()
	h = fb.lastPost().h
	fb.fire(h, EventLastCmdDone|EventCmdAborted, setStatus(1, StepDoneAborted))
	assert.Empty(t, c.ends)
	assert.Equal(t, AllocError, d.rxTransaction)
}

func TestDriver_EnableReceiveWrongState(t *testing.T) {
	d, _, _, _ := newTestDriver(t)

	d.EnableReceive(10)
	d.ReceiveNow()
	assert.Equal(t, StatusWrongState, d.EnableReceive(11))
	assert.Equal(t, uint16(864), d.rxChain.Steps[0].Fs.FrequencyMHz)
	assert.Equal(t, uint16(100*65), d.rxChain.Steps[0].Fs.FractFreq)

	d.Idle()
	assert.True(t, d.IsIdle())
	assert.Equal(t, StatusSuccess, d.EnableReceive(11))
	assert.False(t, d.IsIdle())
}

func TestDriver_IdleFlushesAndSilences(t *testing.T) {
	d, fb, _, c := newTestDriver(t)

	d.EnableReceive(10)
	d.ReceiveNow()
	rx := fb.lastPost().h
	d.EnableTransmit(3, 0, []byte{1})
	d.TransmitNow()
	tx := fb.lastPost().h

	d.Idle()
	assert.Contains(t, fb.flushed, rx)
	assert.Contains(t, fb.flushed, tx)
	assert.Equal(t, "fs-off", fb.lastPost().chain.Name)
	assert.Equal(t, AllocError, d.txTransaction)
	assert.Equal(t, AllocError, d.rxTransaction)

	fb.fire(rx, EventMdmSoft, nil)
	fb.fire(tx, EventCmdDone, setStatus(0, StepDoneOk))
	assert.Empty(t, c.starts)
	assert.Empty(t, c.ends)
}

func TestDriver_IdleBarrier(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	var count int64
	d.SetCallbacks(func(interface{}, TimeUs) {
		atomic.AddInt64(&count, 1)
	}, nil, nil)
	d.EnableReceive(10)
	d.ReceiveNow()
	h := fb.lastPost().h

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				fb.fire(h, EventMdmSoft, nil)
			}
		}
	}()

	for atomic.LoadInt64(&count) == 0 {
		time.Sleep(time.Millisecond)
	}
	d.Idle()
	after := atomic.LoadInt64(&count)
	time.Sleep(10 * time.Millisecond)
	close(stop)
	<-done
	assert.Equal(t, after, atomic.LoadInt64(&count))
}

func TestDriver_ContinuousTransmit(t *testing.T) {
	d, fb, _, c := newTestDriver(t)

	assert.Equal(t, StatusSuccess, d.StartContinuousTransmit(ContinuousTxCarrier, 5, 14))
	if !assert.Len(t, fb.tests, 1) {
		return
	}
	test := fb.tests[0].Steps[0].TxTest
	assert.True(t, test.UseCarrier)
	assert.Equal(t, d.txChain.Steps[0].Fs, test.Fs)
	ch, ok := d.Config().Band.ChannelOf(test.Fs.KHz())
	assert.True(t, ok)
	assert.Equal(t, ChannelId(5), ch)
	assert.Equal(t, PowerDbm(14), fb.power[len(fb.power)-1].Dbm)

	d.StartContinuousTransmit(ContinuousTxModulated, 5, 14)
	assert.False(t, fb.tests[1].Steps[0].TxTest.UseCarrier)

	d.Idle()
	d.EnableTransmit(7, 3, []byte{9, 8, 7})
	assert.Equal(t, StatusSuccess, d.TransmitNow())
	p := fb.lastPost()
	assert.Equal(t, []byte{9, 8, 7}, p.chain.Steps[1].Tx.Payload)
	fb.fire(p.h, EventLastCmdDone, setStatus(1, StepDoneOk))
	assert.Len(t, c.ends, 1)
}

func TestDriver_Capabilities(t *testing.T) {
	d, _, _, _ := newTestDriver(t)

	caps := d.Capabilities()
	assert.Equal(t, uint32(795), caps.TxDelay)
	assert.Equal(t, uint32(1620), caps.TxRxStartDelay)
	assert.Equal(t, int8(-100), caps.Sensitivity)
	assert.Equal(t, PowerDbm(14), caps.MaxOutputPower)
	assert.Equal(t, PowerDbm(0), caps.MinOutputPower)
}

func TestDriver_Deinit(t *testing.T) {
	d, fb, _, _ := newTestDriver(t)

	d.Deinit()
	assert.False(t, fb.opened)
	n := len(fb.posts)
	d.Deinit()
	assert.Equal(t, n, len(fb.posts))
}

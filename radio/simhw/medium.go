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

// Package simhw simulates the radio hardware of a set of nodes sharing one radio medium. A
// Radio executes the command chains of a radio.Driver in virtual time and raises their
// events through the node's interrupt controller.
package simhw

import (
	"container/heap"
	"math/rand"
	"sort"
	"sync"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/energy"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/pcap"
	"github.com/embenet/nodeport/prng"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

// DefaultFsSettleUs is the synthesizer settling time. With the start correction it makes up
// the transmit delay of the radio.
const DefaultFsSettleUs = 245

type Config struct {
	Timings         radio.Timings
	Phy             radio.PhyConfig
	Band            radio.BandPlan
	FsSettleUs      uint32
	ExponentDb      float64
	FixedLossDb     float64
	PacketErrorRate float64
	Seed            prng.RandomSeed
}

// NewConfig derives a medium configuration from the radio configuration of its nodes.
func NewConfig(rc radio.Config) Config {
	return Config{
		Timings:     rc.Timings,
		Phy:         rc.Phy,
		Band:        rc.Band,
		FsSettleUs:  DefaultFsSettleUs,
		ExponentDb:  30.0,
		FixedLossDb: ItuFixedLossDb,
		Seed:        prng.NewMediumRandomSeed(),
	}
}

// airFrame is a packet on air.
type airFrame struct {
	src       *Radio
	fs        radio.FsParams
	channel   ChannelId
	payload   []byte
	powerDbm  float64
	start     uint64
	end       uint64
	truncated bool
}

// Medium connects the radios of a simulation and runs their activity in virtual time.
type Medium struct {
	mu      sync.Mutex
	cfg     Config
	clock   *timer.Virtual
	queue   eventQueue
	seq     uint64
	radios  map[NodeId]*Radio
	onAir   []*airFrame
	capture pcap.File
	meter   *energy.Meter
	rnd     *rand.Rand
}

func NewMedium(cfg Config, clock *timer.Virtual) *Medium {
	m := &Medium{
		cfg:    cfg,
		clock:  clock,
		queue:  eventQueue{},
		radios: map[NodeId]*Radio{},
		rnd:    prng.NewRand(cfg.Seed),
	}
	heap.Init(&m.queue)
	return m
}

func (m *Medium) Clock() *timer.Virtual {
	return m.clock
}

// SetCapture enables capturing of every transmitted frame. A nil file disables it.
func (m *Medium) SetCapture(f pcap.File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = f
}

// SetEnergyMeter enables energy accounting of all radios.
func (m *Medium) SetEnergyMeter(meter *energy.Meter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meter = meter
	for id, r := range m.radios {
		meter.AddNode(id, m.clock.Now())
		meter.SetRadioState(id, r.state, m.clock.Now())
	}
}

// AddRadio attaches the radio of node id at position pos. Its events are raised through
// ctrl.
func (m *Medium) AddRadio(id NodeId, pos Position, ctrl *critsec.Controller) *Radio {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger.AssertNil(m.radios[id])

	r := newRadio(m, id, pos, ctrl)
	m.radios[id] = r
	if m.meter != nil {
		m.meter.AddNode(id, m.clock.Now())
	}
	return r
}

func (m *Medium) GetRadio(id NodeId) *Radio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radios[id]
}

// RadioIds returns the ids of all radios in ascending order.
func (m *Medium) RadioIds() []NodeId {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]NodeId, 0, len(m.radios))
	for id := range m.radios {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Pending returns the number of scheduled events.
func (m *Medium) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunUntil executes all medium events and timer compares up to virtual time t, in time
// order, and leaves the clock at t.
func (m *Medium) RunUntil(t uint64) {
	for {
		m.mu.Lock()
		next := Ever
		if len(m.queue) > 0 {
			next = m.queue[0].Timestamp
		}
		m.mu.Unlock()

		deadline := m.clock.NextDeadline()
		if next > t && deadline > t {
			m.clock.AdvanceTo(t)
			break
		}
		if deadline < next {
			m.clock.AdvanceTo(deadline)
			continue
		}

		m.clock.AdvanceTo(next)
		m.mu.Lock()
		var ds []delivery
		if len(m.queue) > 0 && m.queue[0].Timestamp <= m.clock.Now() {
			ev := heap.Pop(&m.queue).(*event)
			ds = ev.fn(ev.Timestamp)
		}
		m.mu.Unlock()

		for _, d := range ds {
			d.raise()
		}
	}

	now := m.clock.Now()
	for _, id := range m.RadioIds() {
		logger.GetNodeLogger(id).DisplayPendingLogEntries(now)
	}
}

// Advance runs the medium for dt microseconds.
func (m *Medium) Advance(dt uint64) {
	m.RunUntil(m.clock.Now() + dt)
}

func (m *Medium) now() uint64 {
	return m.clock.Now()
}

// schedule queues fn at ts; the caller holds mu.
func (m *Medium) schedule(ts uint64, fn func(now uint64) []delivery) *event {
	m.seq++
	ev := &event{
		Timestamp: ts,
		seq:       m.seq,
		fn:        fn,
	}
	heap.Push(&m.queue, ev)
	return ev
}

// cancel removes a queued event; the caller holds mu.
func (m *Medium) cancel(ev *event) {
	if ev.index >= 0 && ev.index < len(m.queue) && m.queue[ev.index] == ev {
		heap.Remove(&m.queue, ev.index)
	}
}

// startFrame puts a frame on air and lets every listening radio try to synchronize to it.
func (m *Medium) startFrame(f *airFrame) []delivery {
	m.onAir = append(m.onAir, f)
	m.schedule(f.end, func(now uint64) []delivery {
		return m.endFrame(f)
	})

	if m.capture != nil {
		err := m.capture.AppendFrame(pcap.Frame{
			Timestamp: f.start,
			Data:      f.payload,
			Channel:   f.channel,
			Rssi:      float32(f.powerDbm),
		})
		if err != nil {
			logger.Warnf("frame capture failed: %v", err)
		}
	}

	var ds []delivery
	for _, r := range m.radios {
		if r == f.src {
			continue
		}
		ds = append(ds, r.frameStarted(f)...)
	}
	return ds
}

func (m *Medium) endFrame(f *airFrame) []delivery {
	for i, g := range m.onAir {
		if g == f {
			m.onAir = append(m.onAir[:i], m.onAir[i+1:]...)
			break
		}
	}

	var ds []delivery
	for _, r := range m.radios {
		ds = append(ds, r.frameEnded(f)...)
	}
	return ds
}

// rssi returns the signal strength of f at receiver r.
func (m *Medium) rssi(f *airFrame, r *Radio) float64 {
	return computeIndoorRssiItu(f.src.pos.Distance(r.pos), f.powerDbm, m.cfg.ExponentDb, m.cfg.FixedLossDb)
}

func (m *Medium) detectable(f *airFrame, r *Radio) bool {
	return m.rssi(f, r) >= float64(m.cfg.Timings.SensitivityDbm)
}

// packetError draws a random packet error.
func (m *Medium) packetError() bool {
	return m.cfg.PacketErrorRate > 0 && m.rnd.Float64() < m.cfg.PacketErrorRate
}

func (m *Medium) setRadioState(r *Radio, state RadioStates) {
	if r.state == state {
		return
	}
	r.state = state
	if m.meter != nil {
		m.meter.SetRadioState(r.id, state, m.now())
	}
}

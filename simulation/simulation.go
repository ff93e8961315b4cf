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

// Package simulation runs a set of node ports: in virtual time over a simulated medium, or
// in real time with the radio of a node on a serial coprocessor.
package simulation

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/aes128"
	"github.com/embenet/nodeport/capabilities"
	"github.com/embenet/nodeport/config"
	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/energy"
	"github.com/embenet/nodeport/eui64"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/metrics"
	"github.com/embenet/nodeport/pcap"
	"github.com/embenet/nodeport/prng"
	"github.com/embenet/nodeport/progctx"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/radio/serialhw"
	"github.com/embenet/nodeport/radio/simhw"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

type Simulation struct {
	ctx     *progctx.ProgCtx
	cfg     *config.Config
	medium  *simhw.Medium
	meter   *energy.Meter
	capture pcap.File
	metrics *metrics.Collector
	aes     *aes128.Engine
	real    bool
	start   time.Time

	lock    sync.Mutex
	nodes   map[NodeId]*Node
	stopped bool

	// serializes advancing the medium
	goLock sync.Mutex
}

// NewSimulation builds the medium and the nodes of cfg. A nil collector disables the
// radio metrics.
func NewSimulation(ctx *progctx.ProgCtx, cfg *config.Config, collector *metrics.Collector) (*Simulation, error) {
	if cfg.Sim.Seed != 0 {
		prng.Init(cfg.Sim.Seed)
	}

	mc := simhw.NewConfig(cfg.Radio)
	mc.PacketErrorRate = cfg.Sim.PacketErrorRate
	if cfg.Sim.ExponentDb > 0 {
		mc.ExponentDb = cfg.Sim.ExponentDb
	}

	s := &Simulation{
		ctx:     ctx,
		cfg:     cfg,
		medium:  simhw.NewMedium(mc, timer.NewVirtual()),
		meter:   energy.NewMeter(),
		metrics: collector,
		aes:     aes128.New(),
		start:   time.Now(),
		nodes:   map[NodeId]*Node{},
	}
	s.medium.SetEnergyMeter(s.meter)
	if cfg.Sim.Title != "" {
		s.meter.SetTitle(cfg.Sim.Title)
	}
	s.aes.Init()

	if cfg.Sim.Pcap != "" {
		tp := pcap.ParseFrameTypeStr(cfg.Sim.PcapType)
		if tp == pcap.FrameTypeUnknown {
			return nil, errors.Errorf("unknown pcap type %q", cfg.Sim.PcapType)
		}
		if tp != pcap.FrameTypeOff {
			f, err := pcap.NewFile(cfg.Sim.Pcap, tp, true)
			if err != nil {
				return nil, errors.Wrap(err, "open capture")
			}
			s.capture = f
			s.medium.SetCapture(f)
		}
	}
	ctx.Defer(s.Stop)

	for _, nc := range cfg.Sim.Nodes {
		if _, err := s.AddNode(nc); err != nil {
			return nil, err
		}
	}
	logger.Infof("simulation started with %d nodes, seed %d", len(s.nodes), prng.RootSeed())
	return s, nil
}

// AddNode places a simulated node on the medium and starts its radio.
func (s *Simulation) AddNode(nc config.NodeConfig) (*Node, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.real {
		return nil, errors.New("cannot add simulated nodes to a coprocessor session")
	}
	if s.nodes[nc.ID] != nil {
		return nil, errors.Errorf("node %d already exists", nc.ID)
	}

	var provider eui64.Provider = defaultEui64()
	if nc.Eui64 != "" {
		e, err := eui64.Parse(nc.Eui64)
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", nc.ID)
		}
		provider = eui64.Fixed(e)
	}

	ctrl := critsec.NewController()
	clock := s.medium.Clock()
	node := &Node{
		Id:    nc.ID,
		Eui64: provider,
		Timer: clock.NewTimer(ctrl),
		radio: s.medium.AddRadio(nc.ID, simhw.Position{X: nc.Position[0], Y: nc.Position[1]}, ctrl),
		ctrl:  ctrl,
		log:   logger.GetNodeLogger(nc.ID),
	}
	if err := node.start(node.radio, clock, s.cfg.Radio, s.observer(nc.ID)); err != nil {
		return nil, err
	}
	s.nodes[nc.ID] = node
	node.log.Infof("added at (%.1f, %.1f), eui64 %v", nc.Position[0], nc.Position[1], provider.Get())
	return node, nil
}

// AddCoprocessorNode attaches a node whose radio is driven over link. The simulation
// switches to real time and no longer accepts simulated nodes. The node timer counts in
// coprocessor time as of the last link.Sync.
func (s *Simulation) AddCoprocessorNode(id NodeId, link *serialhw.Radio, ctrl *critsec.Controller) (*Node, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.nodes) > 0 && !s.real {
		return nil, errors.New("cannot mix simulated and coprocessor nodes")
	}
	if s.nodes[id] != nil {
		return nil, errors.Errorf("node %d already exists", id)
	}

	node := &Node{
		Id:    id,
		Eui64: eui64.NewRandom(),
		Timer: timer.NewHostOn(ctrl, link),
		ctrl:  ctrl,
		log:   logger.GetNodeLogger(id),
	}
	if err := node.start(link, link.EventClock(), s.cfg.Radio, s.observer(id)); err != nil {
		return nil, err
	}
	s.real = true
	s.start = time.Now()
	s.nodes[id] = node
	node.log.Infof("attached to coprocessor, eui64 %v", node.Eui64.Get())
	return node, nil
}

func (s *Simulation) observer(id NodeId) radio.Observer {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.ForNode(id)
}

// Go runs the simulation for dt. Virtual time advances at once; in real time Go waits.
func (s *Simulation) Go(dt time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if s.IsReal() {
		go func() {
			defer close(done)
			select {
			case <-time.After(dt):
			case <-s.ctx.Done():
			}
		}()
		return done
	}

	s.goLock.Lock()
	s.medium.Advance(uint64(dt / time.Microsecond))
	s.goLock.Unlock()
	close(done)
	return done
}

// Now returns the simulation time in microseconds.
func (s *Simulation) Now() uint64 {
	if s.IsReal() {
		return uint64(time.Since(s.start) / time.Microsecond)
	}
	return s.medium.Clock().Now()
}

func (s *Simulation) IsReal() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.real
}

// Nodes returns the nodes in ascending id order.
func (s *Simulation) Nodes() []*Node {
	s.lock.Lock()
	defer s.lock.Unlock()
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Id < nodes[j].Id
	})
	return nodes
}

func (s *Simulation) Node(id NodeId) *Node {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.nodes[id]
}

func (s *Simulation) Medium() *simhw.Medium {
	return s.medium
}

func (s *Simulation) Meter() *energy.Meter {
	return s.meter
}

func (s *Simulation) Aes() *aes128.Engine {
	return s.aes
}

// Capabilities returns the MAC capabilities advertised by every node port.
func (s *Simulation) Capabilities() *capabilities.Capabilities {
	return &s.cfg.Mac
}

// RadioConfig returns the radio configuration shared by the nodes.
func (s *Simulation) RadioConfig() radio.Config {
	return s.cfg.Radio
}

// WriteEnergy writes the energy spent by every simulated node so far.
func (s *Simulation) WriteEnergy(w io.Writer) error {
	if s.IsReal() {
		return errors.New("no energy accounting for coprocessor nodes")
	}
	s.meter.WriteEnergyByNodes(w, s.Now())
	return nil
}

// Stop releases the radios of all nodes and closes the capture. It is idempotent.
func (s *Simulation) Stop() {
	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		return
	}
	s.stopped = true
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	s.lock.Unlock()

	for _, n := range nodes {
		n.stop()
	}
	s.aes.Deinit()
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			logger.Warnf("close capture: %v", err)
		}
	}
	logger.Debugf("simulation stopped at %v", time.Duration(s.Now())*time.Microsecond)
}

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

package simulation

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/embenet/nodeport/config"
	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/eui64"
	"github.com/embenet/nodeport/metrics"
	"github.com/embenet/nodeport/progctx"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/radio/serialhw"
	"github.com/embenet/nodeport/radio/simhw"
	"github.com/embenet/nodeport/timer"
	. "github.com/embenet/nodeport/types"
)

func newTestSimulation(t *testing.T, cfg *config.Config, collector *metrics.Collector) (*Simulation, *progctx.ProgCtx) {
	ctx := progctx.New(context.Background())
	sim, err := NewSimulation(ctx, cfg, collector)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx.Cancel("test done")
	})
	return sim, ctx
}

func TestNewSimulation(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Nodes = []config.NodeConfig{
		{ID: 3, Position: [2]float64{20, 0}},
		{ID: 1, Eui64: "00:12:4b:00:14:b5:c8:01"},
		{ID: 2, Position: [2]float64{10, 0}},
	}
	sim, _ := newTestSimulation(t, cfg, nil)

	nodes := sim.Nodes()
	assert.Len(t, nodes, 3)
	for i, n := range nodes {
		assert.Equal(t, NodeId(i+1), n.Id)
		assert.NotNil(t, n.Radio())
	}
	assert.Equal(t, eui64.EUI64(0x00124b0014b5c801), sim.Node(1).Eui64.Get())
	// drawn identifiers are locally administered unicast
	e := uint64(sim.Node(2).Eui64.Get())
	assert.Equal(t, uint64(0x02), e>>56&0x03)
	assert.Nil(t, sim.Node(4))
	assert.False(t, sim.IsReal())
	assert.Equal(t, uint64(0), sim.Now())

	_, err := sim.AddNode(config.NodeConfig{ID: 2})
	assert.NotNil(t, err)
	_, err = sim.AddNode(config.NodeConfig{ID: 4, Eui64: "bad"})
	assert.NotNil(t, err)
}

func TestSimulation_Exchange(t *testing.T) {
	collector := metrics.NewCollector()
	sim, _ := newTestSimulation(t, config.Default(), collector)
	rx, tx := sim.Node(1), sim.Node(2)

	<-sim.Go(100 * time.Microsecond)
	assert.Equal(t, StatusSuccess, rx.Driver.EnableReceive(5))
	assert.Equal(t, StatusSuccess, rx.Driver.ReceiveNow())
	<-sim.Go(900 * time.Microsecond)
	assert.Equal(t, uint64(1000), sim.Now())

	payload := []byte{0x41, 0x88, 0x07, 0xcd, 0xab, 0x01, 0x00}
	assert.Equal(t, StatusSuccess, tx.Driver.EnableTransmit(5, 14, payload))
	assert.Equal(t, StatusSuccess, tx.Driver.TransmitNow())
	<-sim.Go(20 * time.Millisecond)

	evs := tx.Drain()
	if len(evs) != 2 {
		t.Fatalf("expected 2 transmit callbacks, got %v", evs)
	}
	assert.Equal(t, radio.StartOfFrame, evs[0].Kind)
	assert.Equal(t, TimeUs(1795), evs[0].Timestamp)
	assert.Equal(t, radio.EndOfFrame, evs[1].Kind)
	assert.Equal(t, TimeUs(4675), evs[1].Timestamp)
	assert.Equal(t, NodeId(2), evs[0].Ctx)

	evs = rx.Drain()
	assert.Len(t, evs, 2)
	assert.Empty(t, rx.Drain())

	buf := make([]byte, radio.MaxPsduLength)
	info := rx.Driver.GetReceivedFrame(buf)
	assert.True(t, info.CrcValid)
	assert.Equal(t, payload, buf[:info.MpduLength])
	assert.True(t, testutil.CollectAndCount(collector) > 0)

	var out bytes.Buffer
	assert.Nil(t, sim.WriteEnergy(&out))
	assert.Contains(t, out.String(), "Duration of the simulated network (in milliseconds): 21")
}

func TestSimulation_Capture(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Pcap = filepath.Join(t.TempDir(), "current.pcap")
	cfg.Sim.PcapType = "wpan"
	sim, ctx := newTestSimulation(t, cfg, nil)

	assert.Equal(t, StatusSuccess, sim.Node(1).Driver.EnableTransmit(0, 0, []byte{1, 2, 3}))
	assert.Equal(t, StatusSuccess, sim.Node(1).Driver.TransmitNow())
	<-sim.Go(time.Second)

	ctx.Cancel("capture done")
	assert.Equal(t, RadioOff, sim.Node(1).Radio().State())
	st, err := os.Stat(cfg.Sim.Pcap)
	if err != nil {
		t.Fatal(err)
	}
	// file header, time reference frame and the transmitted frame
	assert.Greater(t, st.Size(), int64(24+2*16))

	cfg = config.Default()
	cfg.Sim.Pcap = filepath.Join(t.TempDir(), "bad.pcap")
	cfg.Sim.PcapType = "ethernet"
	_, err = NewSimulation(progctx.New(context.Background()), cfg, nil)
	assert.NotNil(t, err)
}

func TestSimulation_Stop(t *testing.T) {
	sim, _ := newTestSimulation(t, config.Default(), nil)
	sim.Stop()
	sim.Stop()
	for _, n := range sim.Nodes() {
		assert.Equal(t, RadioOff, n.State())
	}
	assert.Panics(t, func() {
		var block [16]byte
		sim.Aes().Encrypt(&block)
	})
}

func TestSimulation_ServeDevice(t *testing.T) {
	sim, _ := newTestSimulation(t, config.Default(), nil)
	hostConn, devConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- sim.ServeDevice(ctx, devConn, 9, simhw.Position{X: 5, Y: 5})
	}()

	link := serialhw.New(hostConn, critsec.NewController())
	assert.Nil(t, link.Sync())
	assert.NotNil(t, sim.Medium().GetRadio(9))
	assert.Nil(t, link.Open(radio.DefaultPhyConfig()))
	assert.NotNil(t, sim.ServeDevice(ctx, devConn, 1, simhw.Position{}))

	cancel()
	assert.Nil(t, <-served)
	_ = link.Hangup()
}

func TestSimulation_Pace(t *testing.T) {
	sim, _ := newTestSimulation(t, config.Default(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Nil(t, sim.Pace(ctx, time.Millisecond))
	assert.Greater(t, sim.Now(), uint64(10000))
}

func TestSimulation_CoprocessorTimer(t *testing.T) {
	clock := timer.NewVirtual()
	clock.Advance(5000000)
	m := simhw.NewMedium(simhw.NewConfig(radio.DefaultConfig()), clock)
	hostConn, devConn := net.Pipe()
	dev := serialhw.NewDevice(devConn, m.AddRadio(1, simhw.Position{}, critsec.NewController()), clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- dev.Serve(ctx)
	}()

	cfg := config.Default()
	cfg.Sim.Nodes = nil
	sim, _ := newTestSimulation(t, cfg, nil)
	ctrl := critsec.NewController()
	link := serialhw.New(hostConn, ctrl)
	assert.Nil(t, link.Sync())
	node, err := sim.AddCoprocessorNode(1, link, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, sim.IsReal())
	// scheduling and frame timestamps share the coprocessor time base
	assert.InDelta(t, 5000000, float64(node.Timer.ReadCounter()), 200000)

	sim.Stop()
	assert.Equal(t, RadioOff, m.GetRadio(1).State())
	cancel()
	assert.Nil(t, <-served)
	_ = link.Hangup()
}

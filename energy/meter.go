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

// Package energy accounts the time each simulated radio spends per state and converts it
// into consumed energy.
package energy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/logger"
	. "github.com/embenet/nodeport/types"
)

type Meter struct {
	lock           sync.Mutex
	nodes          map[NodeId]*NodeEnergy
	networkHistory []NetworkConsumption
	title          string
}

func NewMeter() *Meter {
	return &Meter{
		nodes:          make(map[NodeId]*NodeEnergy),
		networkHistory: make([]NetworkConsumption, 0, 3600), // one sample per ComputePeriod for 30 hours
	}
}

func (m *Meter) AddNode(nodeID NodeId, timestamp uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.nodes[nodeID]; ok {
		return
	}
	m.nodes[nodeID] = newNode(nodeID, timestamp)
}

func (m *Meter) DeleteNode(nodeID NodeId) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.nodes, nodeID)

	if len(m.nodes) == 0 {
		m.clear()
	}
}

// SetRadioState records a state change of a node's radio. Unknown nodes are ignored.
func (m *Meter) SetRadioState(nodeID NodeId, state RadioStates, timestamp uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if node := m.nodes[nodeID]; node != nil {
		node.SetRadioState(state, timestamp)
	}
}

// RadioState returns the current state of a node's radio.
func (m *Meter) RadioState(nodeID NodeId) (RadioStates, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	node := m.nodes[nodeID]
	if node == nil {
		return RadioOff, false
	}
	return node.State(), true
}

// Report accounts all nodes up to timestamp and returns their consumption, ordered by id.
func (m *Meter) Report(timestamp uint64) []NodeReport {
	m.lock.Lock()
	defer m.lock.Unlock()

	ids := make([]NodeId, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	reports := make([]NodeReport, 0, len(ids))
	for _, id := range ids {
		node := m.nodes[id]
		node.ComputeRadioState(timestamp)
		reports = append(reports, node.report())
	}
	return reports
}

// StoreNetworkEnergy appends the average consumption per node to the network history.
func (m *Meter) StoreNetworkEnergy(timestamp uint64) {
	reports := m.Report(timestamp)

	m.lock.Lock()
	defer m.lock.Unlock()
	snapshot := NetworkConsumption{
		Timestamp: timestamp,
	}
	netSize := float64(len(reports))
	for _, r := range reports {
		snapshot.EnergyConsOff += r.Off / netSize
		snapshot.EnergyConsIdle += r.Idle / netSize
		snapshot.EnergyConsTx += r.Tx / netSize
		snapshot.EnergyConsRx += r.Rx / netSize
	}
	m.networkHistory = append(m.networkHistory, snapshot)
}

func (m *Meter) GetNetworkEnergyHistory() []NetworkConsumption {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]NetworkConsumption(nil), m.networkHistory...)
}

func (m *Meter) SetTitle(title string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.title = title
}

// SaveEnergyDataToFile writes <dir>/<name>_nodes.txt and <dir>/<name>.txt.
func (m *Meter) SaveEnergyDataToFile(dir string, name string, timestamp uint64) error {
	if name == "" {
		m.lock.Lock()
		name = m.title
		m.lock.Unlock()
		if name == "" {
			name = "energy"
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create energy results directory")
	}

	path := filepath.Join(dir, name)
	fileNodes, err := os.Create(path + "_nodes.txt")
	if err != nil {
		return errors.WithStack(err)
	}
	defer fileNodes.Close()

	fileNetwork, err := os.Create(path + ".txt")
	if err != nil {
		return errors.WithStack(err)
	}
	defer fileNetwork.Close()

	m.WriteEnergyByNodes(fileNodes, timestamp)
	m.writeNetworkEnergy(fileNetwork, timestamp)
	logger.Infof("energy data saved to %s", path)
	return nil
}

// WriteEnergyByNodes writes a per-node table of the energy spent up to timestamp.
func (m *Meter) WriteEnergyByNodes(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/1000)
	fmt.Fprintf(w, "ID\tOff (mJ)\tIdle (mJ)\tTransmitting (mJ)\tReceiving (mJ)\n")
	for _, r := range m.Report(timestamp) {
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n", r.NodeId, r.Off, r.Idle, r.Tx, r.Rx)
	}
}

func (m *Meter) writeNetworkEnergy(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/1000)
	fmt.Fprintf(w, "Time (ms)\tOff (mJ)\tIdle (mJ)\tTransmitting (mJ)\tReceiving (mJ)\n")
	for _, snapshot := range m.GetNetworkEnergyHistory() {
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n",
			snapshot.Timestamp/1000,
			snapshot.EnergyConsOff,
			snapshot.EnergyConsIdle,
			snapshot.EnergyConsTx,
			snapshot.EnergyConsRx,
		)
	}
}

func (m *Meter) clear() {
	logger.Debugf("energy data cleared")
	m.networkHistory = make([]NetworkConsumption, 0, 3600)
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/embenet/nodeport/radio"
	. "github.com/embenet/nodeport/types"
)

var testConfigFile = `
log:
    level: debug
radio:
    band:
        channel-count: 40
    timings:
        rx-start-correction: 1500
mac:
    channels: [0, 1, 2, 3]
    adv-channels: [1, 3]
sim:
    seed: 7
    pcap: current.pcap
    pcap-type: wpan-tap
    packet-error-rate: 0.1
    nodes:
        - id: 1
          eui64: "00:12:4b:00:14:b5:c8:01"
          pos: [0, 0]
        - id: 2
          pos: [25.5, 10]
        - id: 3
          pos: [40, 0]
metrics:
    listen: ":9100"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 40, cfg.Radio.Band.ChannelCount)
	// unset fields keep their defaults
	assert.Equal(t, uint32(863100), cfg.Radio.Band.StartFrequencyKHz)
	assert.Equal(t, uint32(1500), cfg.Radio.Timings.RxStartCorrection)
	assert.Equal(t, uint32(550), cfg.Radio.Timings.TxStartCorrection)
	assert.Equal(t, radio.DefaultPowerTable(), cfg.Radio.PowerTable)
	assert.Equal(t, []ChannelId{1, 3}, cfg.Mac.AdvChannels)
	assert.Equal(t, uint32(143), cfg.Mac.KeepAlivePeriodSlots)
	assert.Equal(t, int64(7), cfg.Sim.Seed)
	assert.Len(t, cfg.Sim.Nodes, 3)
	assert.Equal(t, [2]float64{25.5, 10}, cfg.Sim.Nodes[1].Position)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, 115200, cfg.Serial.Baud)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.Validate())
	assert.Len(t, cfg.Sim.Nodes, 2)
	assert.Len(t, cfg.Mac.Channels, 69)
}

func TestValidate(t *testing.T) {
	bad := []string{
		"log: {level: loud}",
		"radio: {band: {channel-count: 0}}",
		"radio: {power-table: [{dbm: 5, value: 1}, {dbm: 2, value: 2}]}",
		"radio: {band: {channel-count: 16}}",
		"mac: {adv-channels: [15, 70]}",
		"sim: {packet-error-rate: 1.5}",
		"sim: {nodes: [{id: 1}, {id: 1}]}",
		"sim: {nodes: [{id: 0}]}",
		"sim: {nodes: [{id: 1, eui64: nope}]}",
		"serial: {port: /dev/ttyACM0, baud: 0}",
		"radio: [",
	}
	for _, s := range bad {
		_, err := Parse([]byte(s))
		assert.NotNil(t, err, s)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embenet.yaml")
	if err := os.WriteFile(path, []byte(testConfigFile), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, "current.pcap", cfg.Sim.Pcap)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}

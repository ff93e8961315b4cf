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

// Package config loads the YAML configuration of the simulator: the radio calibration, the
// MAC capabilities, the simulated network and the outer surfaces.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/embenet/nodeport/capabilities"
	"github.com/embenet/nodeport/eui64"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/radio/serialhw"
	. "github.com/embenet/nodeport/types"
)

type LogConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output,omitempty"`
}

// NodeConfig places one simulated node. Position is in meters.
type NodeConfig struct {
	ID       NodeId     `yaml:"id"`
	Eui64    string     `yaml:"eui64,omitempty"`
	Position [2]float64 `yaml:"pos"`
}

type SimConfig struct {
	// Title names the saved energy reports.
	Title string `yaml:"title,omitempty"`
	// Seed of the medium; 0 draws one from the root seed.
	Seed            int64        `yaml:"seed"`
	Pcap            string       `yaml:"pcap,omitempty"`
	PcapType        string       `yaml:"pcap-type,omitempty"`
	PacketErrorRate float64      `yaml:"packet-error-rate"`
	ExponentDb      float64      `yaml:"exponent-db"`
	Nodes           []NodeConfig `yaml:"nodes"`
}

type SerialConfig struct {
	Port string `yaml:"port,omitempty"`
	Baud int    `yaml:"baud"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

type Config struct {
	Log     LogConfig                 `yaml:"log"`
	Radio   radio.Config              `yaml:"radio"`
	Mac     capabilities.Capabilities `yaml:"mac"`
	Sim     SimConfig                 `yaml:"sim"`
	Serial  SerialConfig              `yaml:"serial"`
	Metrics MetricsConfig             `yaml:"metrics"`
}

func Default() *Config {
	rc := radio.DefaultConfig()
	return &Config{
		Log:   LogConfig{Level: "info"},
		Radio: rc,
		Mac:   capabilities.Default(rc.Band),
		Sim: SimConfig{
			ExponentDb: 30.0,
			Nodes: []NodeConfig{
				{ID: 1, Position: [2]float64{0, 0}},
				{ID: 2, Position: [2]float64{10, 0}},
			},
		},
		Serial: SerialConfig{Baud: serialhw.DefaultBaudRate},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := logger.ParseLevelString(c.Log.Level); err != nil {
		return errors.Wrap(err, "log")
	}
	if err := c.Radio.Validate(); err != nil {
		return errors.Wrap(err, "radio")
	}
	if err := c.Mac.Validate(c.Radio.Band); err != nil {
		return errors.Wrap(err, "mac")
	}
	if c.Sim.PacketErrorRate < 0 || c.Sim.PacketErrorRate > 1 {
		return errors.Errorf("sim: packet error rate %v outside [0, 1]", c.Sim.PacketErrorRate)
	}
	seen := map[NodeId]bool{}
	for _, n := range c.Sim.Nodes {
		if n.ID <= InvalidNodeId || n.ID > MaxNodeId {
			return errors.Errorf("sim: invalid node id %d", n.ID)
		}
		if seen[n.ID] {
			return errors.Errorf("sim: node %d defined twice", n.ID)
		}
		seen[n.ID] = true
		if n.Eui64 != "" {
			if _, err := eui64.Parse(n.Eui64); err != nil {
				return errors.Wrapf(err, "sim: node %d", n.ID)
			}
		}
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		return errors.Errorf("serial: invalid baud rate %d", c.Serial.Baud)
	}
	return nil
}

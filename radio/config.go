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
	"github.com/pkg/errors"

	. "github.com/embenet/nodeport/types"
)

// MaxPsduLength is the largest payload the reference PHY carries in one packet.
const MaxPsduLength = 127

// rxEntryOverhead is the room a receive entry needs beyond the payload.
const rxEntryOverhead = 8

// Timings holds the hardware-measured calibration of a radio, in microseconds.
type Timings struct {
	IdleToTxReady   uint32 `yaml:"idle-to-tx-ready"`
	IdleToRxReady   uint32 `yaml:"idle-to-rx-ready"`
	ActiveToTxReady uint32 `yaml:"active-to-tx-ready"`
	ActiveToRxReady uint32 `yaml:"active-to-rx-ready"`
	// TxDelay is the time from triggering a transmission to its first bit on air.
	TxDelay uint32 `yaml:"tx-delay"`
	RxDelay uint32 `yaml:"rx-delay"`
	// TxStartCorrection is added to the synthesizer-ready event time to get the air start.
	TxStartCorrection uint32 `yaml:"tx-start-correction"`
	// TxEndCorrection is added to the transmit-done event time, which fires early.
	TxEndCorrection uint32 `yaml:"tx-end-correction"`
	// RxStartCorrection is subtracted from the sync-word event time. It covers preamble,
	// sync word and interrupt latency.
	RxStartCorrection uint32 `yaml:"rx-start-correction"`
	SensitivityDbm    int8   `yaml:"sensitivity-dbm"`
}

func DefaultTimings() Timings {
	return Timings{
		IdleToTxReady:     30,
		IdleToRxReady:     30,
		ActiveToTxReady:   30,
		ActiveToRxReady:   30,
		TxDelay:           795,
		RxDelay:           180,
		TxStartCorrection: 550,
		TxEndCorrection:   330,
		RxStartCorrection: 1620,
		SensitivityDbm:    -100,
	}
}

// PhyConfig is the packet format applied when the radio is opened.
type PhyConfig struct {
	BitRate       uint32 `yaml:"bitrate"`
	PreambleBytes int    `yaml:"preamble-bytes"`
	SyncWord      uint32 `yaml:"sync-word"`
	SyncBits      int    `yaml:"sync-bits"`
	CrcBytes      int    `yaml:"crc-bytes"`
}

func DefaultPhyConfig() PhyConfig {
	return PhyConfig{
		BitRate:       50000,
		PreambleBytes: 8,
		SyncWord:      0x904E,
		SyncBits:      16,
		CrcBytes:      2,
	}
}

// AirTimeUs returns the on-air duration of a packet with a psduLen byte payload, counting
// preamble, sync word, length byte and CRC.
func (p PhyConfig) AirTimeUs(psduLen int) uint64 {
	bytes := uint64(p.PreambleBytes + (p.SyncBits+7)/8 + 1 + psduLen + p.CrcBytes)
	return bytes * 8 * 1000000 / uint64(p.BitRate)
}

type Config struct {
	MaxPsduLength int        `yaml:"max-psdu-length"`
	Band          BandPlan   `yaml:"band"`
	PowerTable    PowerTable `yaml:"power-table"`
	Timings       Timings    `yaml:"timings"`
	Phy           PhyConfig  `yaml:"phy"`
}

func DefaultConfig() Config {
	return Config{
		MaxPsduLength: MaxPsduLength,
		Band:          DefaultBandPlan(),
		PowerTable:    DefaultPowerTable(),
		Timings:       DefaultTimings(),
		Phy:           DefaultPhyConfig(),
	}
}

func (c *Config) Validate() error {
	if c.MaxPsduLength <= 0 || c.MaxPsduLength > 255 {
		return errors.Errorf("max PSDU length out of range: %d", c.MaxPsduLength)
	}
	if err := c.Band.Validate(); err != nil {
		return err
	}
	if err := c.PowerTable.Validate(); err != nil {
		return err
	}
	if c.Phy.BitRate == 0 {
		return errors.New("PHY bitrate is zero")
	}
	return nil
}

// Capabilities returns the static descriptor reported to the MAC.
func (c *Config) Capabilities() Capabilities {
	return Capabilities{
		IdleToTxReady:   c.Timings.IdleToTxReady,
		IdleToRxReady:   c.Timings.IdleToRxReady,
		ActiveToTxReady: c.Timings.ActiveToTxReady,
		ActiveToRxReady: c.Timings.ActiveToRxReady,
		TxDelay:         c.Timings.TxDelay,
		RxDelay:         c.Timings.RxDelay,
		TxRxStartDelay:  c.Timings.RxStartCorrection,
		Sensitivity:     c.Timings.SensitivityDbm,
		MaxOutputPower:  c.PowerTable.Max(),
		MinOutputPower:  c.PowerTable.Min(),
	}
}

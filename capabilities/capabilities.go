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

// Package capabilities describes the port to the MAC: slot timings, channel lists and the
// synchronization parameters derived from them.
package capabilities

import (
	"github.com/pkg/errors"

	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/types"
)

// MacTimings are the TSCH slot timings, in microseconds.
type MacTimings struct {
	TsTxOffsetUs     uint32 `yaml:"ts-tx-offset"`
	TsTxAckDelayUs   uint32 `yaml:"ts-tx-ack-delay"`
	TsLongGTUs       uint32 `yaml:"ts-long-gt"`
	TsShortGTUs      uint32 `yaml:"ts-short-gt"`
	TsSlotDurationUs uint32 `yaml:"ts-slot-duration"`
	WdRadioTxUs      uint32 `yaml:"wd-radio-tx"`
	WdDataDurationUs uint32 `yaml:"wd-data-duration"`
	WdAckDurationUs  uint32 `yaml:"wd-ack-duration"`
}

// TopologyEntry forces a parent for a node, both given by EUI64.
type TopologyEntry struct {
	Node   uint64 `yaml:"node"`
	Parent uint64 `yaml:"parent"`
}

type Capabilities struct {
	Timings              MacTimings        `yaml:"timings"`
	Channels             []types.ChannelId `yaml:"channels"`
	AdvChannels          []types.ChannelId `yaml:"adv-channels"`
	TimeCorrectionGuard  types.TimeUs      `yaml:"time-correction-guard"`
	KeepAlivePeriodSlots uint32            `yaml:"keep-alive-period-slots"`
	DesyncTimeoutSlots   uint32            `yaml:"desync-timeout-slots"`
	TopologyActive       bool              `yaml:"topology-active"`
	Topology             []TopologyEntry   `yaml:"topology"`
}

func DefaultMacTimings() MacTimings {
	return MacTimings{
		TsTxOffsetUs:     2000,
		TsTxAckDelayUs:   3000,
		TsLongGTUs:       1000 / 2,
		TsShortGTUs:      1000 / 2,
		TsSlotDurationUs: 35000,
		WdRadioTxUs:      2000,
		WdDataDurationUs: 30000,
		WdAckDurationUs:  8000,
	}
}

// Default returns the capabilities of the reference board on band.
func Default(band radio.BandPlan) Capabilities {
	timings := DefaultMacTimings()
	channels := make([]types.ChannelId, band.ChannelCount)
	for i := range channels {
		channels[i] = types.ChannelId(i)
	}
	return Capabilities{
		Timings:              timings,
		Channels:             channels,
		AdvChannels:          []types.ChannelId{15, 52, 68},
		TimeCorrectionGuard:  1000,
		KeepAlivePeriodSlots: SlotsFor(5000000, timings),
		DesyncTimeoutSlots:   SlotsFor(45000000, timings),
		Topology: []TopologyEntry{
			{Node: 0x48000000ee, Parent: 0x48000000aa},
			{Node: 0x48000000ee, Parent: 0x4800000000},
		},
	}
}

// SlotsFor returns the number of slots needed to cover periodUs.
func SlotsFor(periodUs uint32, timings MacTimings) uint32 {
	return periodUs/timings.TsSlotDurationUs + 1
}

// Validate checks the channel lists against band and the internal consistency of the
// timings.
func (c *Capabilities) Validate(band radio.BandPlan) error {
	t := c.Timings
	if t.TsSlotDurationUs == 0 {
		return errors.New("slot duration is zero")
	}
	if t.TsTxOffsetUs+t.WdDataDurationUs > t.TsSlotDurationUs {
		return errors.Errorf("data of %d us at offset %d us exceeds the %d us slot", t.WdDataDurationUs, t.TsTxOffsetUs, t.TsSlotDurationUs)
	}
	if len(c.Channels) == 0 {
		return errors.New("channel list is empty")
	}
	if err := checkChannels("channel", c.Channels, band); err != nil {
		return err
	}
	if err := checkChannels("advertisement channel", c.AdvChannels, band); err != nil {
		return err
	}
	if c.KeepAlivePeriodSlots == 0 || c.DesyncTimeoutSlots <= c.KeepAlivePeriodSlots {
		return errors.Errorf("desync timeout (%d slots) must exceed the keep-alive period (%d slots)", c.DesyncTimeoutSlots, c.KeepAlivePeriodSlots)
	}
	return nil
}

func checkChannels(what string, channels []types.ChannelId, band radio.BandPlan) error {
	seen := map[types.ChannelId]bool{}
	for _, ch := range channels {
		if int(ch) >= band.ChannelCount {
			return errors.Errorf("%s %d is outside the %d channel band", what, ch, band.ChannelCount)
		}
		if seen[ch] {
			return errors.Errorf("%s %d is listed twice", what, ch)
		}
		seen[ch] = true
	}
	return nil
}

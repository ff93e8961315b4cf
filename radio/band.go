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

const khzPerMhz = 1000

// BandPlan maps channel numbers to carrier frequencies.
type BandPlan struct {
	StartFrequencyKHz uint32 `yaml:"start-frequency-khz"`
	ChannelWidthKHz   uint32 `yaml:"channel-width-khz"`
	ChannelCount      int    `yaml:"channel-count"`
}

func DefaultBandPlan() BandPlan {
	return BandPlan{
		StartFrequencyKHz: 863100,
		ChannelWidthKHz:   100,
		ChannelCount:      69,
	}
}

func (b BandPlan) Validate() error {
	if b.ChannelCount <= 0 || b.ChannelCount > 256 {
		return errors.Errorf("band channel count out of range: %d", b.ChannelCount)
	}
	if b.ChannelWidthKHz == 0 {
		return errors.Errorf("band channel width is zero")
	}
	return nil
}

// Clamp limits ch to the last valid channel.
func (b BandPlan) Clamp(ch ChannelId) ChannelId {
	if int(ch) >= b.ChannelCount {
		return ChannelId(b.ChannelCount - 1)
	}
	return ch
}

// FrequencyKHz returns the carrier of ch after clamping.
func (b BandPlan) FrequencyKHz(ch ChannelId) uint32 {
	return b.StartFrequencyKHz + uint32(b.Clamp(ch))*b.ChannelWidthKHz
}

// Tune programs the synthesizer step parameters for ch after clamping.
func (b BandPlan) Tune(fs *FsParams, ch ChannelId) {
	f := b.FrequencyKHz(ch)
	fs.FrequencyMHz = uint16(f / khzPerMhz)
	fs.FractFreq = uint16((f % khzPerMhz) * (0x10000 / khzPerMhz))
}

// ChannelOf returns the channel nearest to frequency f in kHz, and false if f lies outside
// the band. The synthesizer fraction is quantized, so tuned carriers are slightly off grid.
func (b BandPlan) ChannelOf(f uint32) (ChannelId, bool) {
	f += b.ChannelWidthKHz / 2
	if f < b.StartFrequencyKHz {
		return 0, false
	}
	ch := (f - b.StartFrequencyKHz) / b.ChannelWidthKHz
	if int(ch) >= b.ChannelCount {
		return 0, false
	}
	return ChannelId(ch), true
}

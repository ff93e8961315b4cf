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

package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/types"
)

func TestDefault(t *testing.T) {
	band := radio.DefaultBandPlan()
	c := Default(band)

	assert.Len(t, c.Channels, 69)
	assert.Equal(t, types.ChannelId(68), c.Channels[68])
	assert.Equal(t, []types.ChannelId{15, 52, 68}, c.AdvChannels)
	assert.Equal(t, uint32(143), c.KeepAlivePeriodSlots)
	assert.Equal(t, uint32(1286), c.DesyncTimeoutSlots)
	assert.Equal(t, uint32(500), c.Timings.TsLongGTUs)
	assert.Equal(t, types.TimeUs(1000), c.TimeCorrectionGuard)
	assert.False(t, c.TopologyActive)
	assert.Nil(t, c.Validate(band))
}

func TestCapabilities_Validate(t *testing.T) {
	band := radio.DefaultBandPlan()

	c := Default(band)
	c.AdvChannels = []types.ChannelId{15, 69}
	assert.NotNil(t, c.Validate(band))

	c = Default(band)
	c.Channels = []types.ChannelId{1, 2, 1}
	assert.NotNil(t, c.Validate(band))

	c = Default(band)
	c.Channels = nil
	assert.NotNil(t, c.Validate(band))

	c = Default(band)
	c.Timings.WdDataDurationUs = 34000
	assert.NotNil(t, c.Validate(band))

	c = Default(band)
	c.DesyncTimeoutSlots = c.KeepAlivePeriodSlots
	assert.NotNil(t, c.Validate(band))

	// a narrower band invalidates the default channel list
	narrow := band
	narrow.ChannelCount = 16
	c = Default(band)
	assert.NotNil(t, c.Validate(narrow))
	c = Default(narrow)
	c.AdvChannels = []types.ChannelId{15}
	assert.Nil(t, c.Validate(narrow))
}

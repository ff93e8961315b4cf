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
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/embenet/nodeport/types"
)

func TestPowerTable_Lookup(t *testing.T) {
	pt := DefaultPowerTable()
	assert.Nil(t, pt.Validate())

	assert.Equal(t, PowerEntry{14, 0x013F}, pt.Lookup(20))
	assert.Equal(t, PowerEntry{14, 0x013F}, pt.Lookup(14))
	assert.Equal(t, PowerEntry{12, 0x24FE}, pt.Lookup(13))
	assert.Equal(t, PowerEntry{5, 0x0AD1}, pt.Lookup(5))
	assert.Equal(t, PowerEntry{0, 0x04C0}, pt.Lookup(0))
	assert.Equal(t, PowerEntry{0, 0x04C0}, pt.Lookup(-10))
}

func TestPowerTable_Clamp(t *testing.T) {
	pt := DefaultPowerTable()
	assert.Equal(t, PowerMaxDbm, pt.Clamp(15))
	assert.Equal(t, PowerMinDbm, pt.Clamp(-1))
	assert.Equal(t, PowerDbm(7), pt.Clamp(7))
}

func TestPowerTable_FindValue(t *testing.T) {
	pt := PowerTable{{-10, 1}, {0, 2}, {10, 3}}

	e, ok := pt.FindValue(-20)
	assert.False(t, ok)
	e, ok = pt.FindValue(PowerMinDbm)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), e.Value)
	e, ok = pt.FindValue(9)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), e.Value)
}

func TestPowerTable_Validate(t *testing.T) {
	assert.NotNil(t, PowerTable{}.Validate())
	assert.NotNil(t, PowerTable{{1, 1}, {1, 2}}.Validate())
}

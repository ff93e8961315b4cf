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

package wpan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDissect_Data(t *testing.T) {
	f, err := Dissect([]byte{0x41, 0x88, 0xcd, 0xab, 0x01, 0xff, 0xff, 0x02, 0x00, 0x55})
	assert.Nil(t, err)
	fc := f.FrameControl
	assert.Equal(t, FrameTypeData, fc.FrameType())
	assert.True(t, fc.PanidCompression())
	assert.False(t, fc.AckRequest())
	assert.Equal(t, uint16(AddrModeShort), fc.DestAddrMode())
	assert.Equal(t, uint16(AddrModeShort), fc.SourceAddrMode())
	assert.Equal(t, uint8(0xcd), f.Seq)
	assert.Equal(t, uint16(0x01ab), f.DstPanId)
	assert.Equal(t, uint16(0x01ab), f.SrcPanId)
	assert.Equal(t, uint16(0xffff), f.DstAddrShort)
	assert.Equal(t, uint16(0x0002), f.SrcAddrShort)
	assert.Equal(t, 9, f.HeaderLength)
	assert.Equal(t, "MAC,FC:0x8841,Seq:205,Src:0002,Dst:ffff", f.String())
}

func TestDissect_Extended(t *testing.T) {
	data := []byte{0x61, 0xcc, 0x01, 0x34, 0x12,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x18, 0x17, 0x16, 0x15, 0x14, 0x13, 0x12, 0x11}
	f, err := Dissect(data)
	assert.Nil(t, err)
	assert.True(t, f.FrameControl.AckRequest())
	assert.Equal(t, uint64(0x0102030405060708), f.DstAddrExtended)
	assert.Equal(t, uint64(0x1112131415161718), f.SrcAddrExtended)
	assert.Equal(t, len(data), f.HeaderLength)
	assert.Equal(t, "MAC,FC:0xcc61,Seq:1,Src:1112131415161718,Dst:0102030405060708", f.String())
}

func TestDissect_Ack(t *testing.T) {
	f, err := Dissect([]byte{0x02, 0x00, 0x2a})
	assert.Nil(t, err)
	assert.Equal(t, FrameTypeAck, f.FrameControl.FrameType())
	assert.Equal(t, "ACK,FC:0x0002,Seq:42", f.String())
}

func TestDissect_Invalid(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		{0x41},
		{0x41, 0x88, 0xcd, 0xab, 0x01},
		{0x61, 0xcc, 0x01, 0x34, 0x12, 0x08},
	} {
		_, err := Dissect(data)
		assert.Equal(t, ErrTruncated, err, "%x", data)
	}
	_, err := Dissect([]byte{0x07, 0x00, 0x00})
	assert.NotNil(t, err)
}

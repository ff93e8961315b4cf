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

package pcap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/embenet/nodeport/types"
)

func TestFile_Wpan(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "test.pcap")
	pcap, err := NewFile(fn, FrameTypeWpan, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = pcap.Close()
	}()

	assert.Equal(t, pcapFileHeaderSize, getFileSize(t, fn))

	for i := 0; i < 10; i++ {
		err = pcap.AppendFrame(Frame{
			Timestamp: uint64(i) * 1000,
			Data:      []byte{0x12, 0x10, 0xa6, 0x80, 0x65},
			Channel:   12,
			Rssi:      -60.0,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err = pcap.Sync(); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, pcapFileHeaderSize+(pcapFrameHeaderSize+5)*(i+1), getFileSize(t, fn))
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint32(pcapMagicNumber), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(dltIeee802154), binary.LittleEndian.Uint32(data[20:24]))
}

func TestFile_WpanTap(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "test_tap.pcap")
	pcap, err := NewFile(fn, FrameTypeWpanTap, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = pcap.Close()
	}()

	for i := 0; i < 10; i++ {
		err = pcap.AppendFrame(Frame{
			Timestamp: 1500000 + uint64(i)*1000,
			Data:      []byte{0x12, 0x10, 0x30, 0x3f, 0x94},
			Channel:   ChannelId(i + 11),
			Rssi:      -60.0 + float32(i),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err = pcap.Sync(); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, pcapFileHeaderSize+(pcapFrameHeaderSize+tapHeaderMaxSize+5)*(i+1), getFileSize(t, fn))
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	rec := data[pcapFileHeaderSize:]
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(rec[0:4]))
	assert.Equal(t, uint32(500000), binary.LittleEndian.Uint32(rec[4:8]))
	assert.Equal(t, uint16(tapHeaderMaxSize), binary.LittleEndian.Uint16(rec[pcapFrameHeaderSize+2:]))
}

func TestFile_TimeRefFrame(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "test_timeref.pcap")
	pcap, err := NewFile(fn, FrameTypeWpan, true)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = pcap.Close()
	}()
	if err = pcap.Sync(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pcapFileHeaderSize+pcapFrameHeaderSize+len(timeReferenceFrame), getFileSize(t, fn))
}

func TestParseFrameTypeStr(t *testing.T) {
	assert.Equal(t, FrameTypeWpan, ParseFrameTypeStr("wpan"))
	assert.Equal(t, FrameTypeWpanTap, ParseFrameTypeStr("wpan-tap"))
	assert.Equal(t, FrameTypeOff, ParseFrameTypeStr("off"))
	assert.Equal(t, FrameTypeUnknown, ParseFrameTypeStr("usb"))

	_, err := NewFile(filepath.Join(t.TempDir(), "x.pcap"), FrameTypeUnknown, false)
	assert.NotNil(t, err)
}

func getFileSize(t *testing.T, fp string) int {
	info, err := os.Stat(fp)
	if err != nil {
		t.Fatal(err)
	}
	return int(info.Size())
}

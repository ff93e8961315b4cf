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

// Package pcap writes captured radio frames to PCAP files readable by Wireshark.
package pcap

import (
	"encoding/binary"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"

	. "github.com/embenet/nodeport/types"
)

type FrameType int

const (
	FrameTypeOff FrameType = iota
	FrameTypeWpan
	FrameTypeWpanTap
	FrameTypeUnknown
)

const (
	FrameTypeOffStr     string = "off"
	FrameTypeWpanStr    string = "wpan"
	FrameTypeWpanTapStr string = "wpan-tap"
)

const (
	dltIeee802154       = 195
	dltIeee802154Tap    = 283
	pcapMagicNumber     = 0xA1B2C3D4
	pcapVersionMajor    = 2
	pcapVersionMinor    = 4
	pcapFileHeaderSize  = 24
	pcapFrameHeaderSize = 16
	pcapSnapLen         = 256
)

// wpan-tap / DLT IEEE802 15 4 TAP specification is at
// https://gitlab.com/exegin/ieee802-15-4-tap
const (
	tapHeaderSize        = 4
	tapHeaderMaxSize     = 28
	tlvFcsType           = 0
	tlvRss               = 1
	tlvChannelAssignment = 3
)

// timeReferenceFrame uses a reserved frame type; it only marks simulation time zero.
const timeReferenceFrame string = "\x04\x21embeNET simulation capture t=0 reference frame.\x61\x3f"

// File is a PCAP capture.
type File interface {
	AppendFrame(frame Frame) error
	Sync() error
	Close() error
}

// Frame is one captured radio frame. Timestamp is the start of the frame on air in
// microseconds of simulation time.
type Frame struct {
	Timestamp uint64
	Data      []byte
	Channel   ChannelId
	Rssi      float32
}

type file struct {
	lock sync.Mutex
	fd   *os.File
	tap  bool
}

// NewFile creates a capture file with all frames encapsulated as frameType.
func NewFile(filename string, frameType FrameType, useTimeRefFrame bool) (File, error) {
	var dlt uint32
	switch frameType {
	case FrameTypeWpan:
		dlt = dltIeee802154
	case FrameTypeWpanTap:
		dlt = dltIeee802154Tap
	default:
		return nil, errors.Errorf("invalid PCAP frame type: %d", frameType)
	}

	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	pf := &file{
		fd:  fd,
		tap: frameType == FrameTypeWpanTap,
	}
	if err = pf.writeHeader(dlt); err != nil {
		_ = pf.Close()
		return nil, err
	}

	if useTimeRefFrame {
		if err = pf.AppendFrame(Frame{Data: []byte(timeReferenceFrame)}); err != nil {
			_ = pf.Close()
			return nil, errors.Wrap(err, "write time reference frame")
		}
	}
	return pf, nil
}

func ParseFrameTypeStr(tp string) FrameType {
	switch tp {
	case FrameTypeOffStr, "":
		return FrameTypeOff
	case FrameTypeWpanStr:
		return FrameTypeWpan
	case FrameTypeWpanTapStr:
		return FrameTypeWpanTap
	default:
		return FrameTypeUnknown
	}
}

func (pf *file) writeHeader(dlt uint32) error {
	var header [pcapFileHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], pcapMagicNumber)
	binary.LittleEndian.PutUint16(header[4:6], pcapVersionMajor)
	binary.LittleEndian.PutUint16(header[6:8], pcapVersionMinor)
	binary.LittleEndian.PutUint32(header[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(header[20:24], dlt)
	if _, err := pf.fd.Write(header[:]); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(pf.fd.Sync())
}

func (pf *file) AppendFrame(frame Frame) error {
	var tap []byte
	if pf.tap {
		tap = tapHeader(frame)
	}

	var header [pcapFrameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(frame.Timestamp/1000000))
	binary.LittleEndian.PutUint32(header[4:8], uint32(frame.Timestamp%1000000))
	plen := uint32(len(tap) + len(frame.Data))
	binary.LittleEndian.PutUint32(header[8:12], plen)
	binary.LittleEndian.PutUint32(header[12:16], plen)

	pf.lock.Lock()
	defer pf.lock.Unlock()
	for _, b := range [][]byte{header[:], tap, frame.Data} {
		if _, err := pf.fd.Write(b); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// tapHeader builds the wpan-tap header: version, reserved, length and the FCS type, RSS
// and channel TLVs.
func tapHeader(frame Frame) []byte {
	hdr := make([]byte, tapHeaderSize, tapHeaderMaxSize)
	binary.LittleEndian.PutUint16(hdr[2:4], tapHeaderMaxSize)

	hdr = appendTlv(hdr, tlvFcsType, []byte{1}) // 16-bit CRC

	rss := make([]byte, 4)
	binary.LittleEndian.PutUint32(rss, math.Float32bits(frame.Rssi))
	hdr = appendTlv(hdr, tlvRss, rss)

	channel := make([]byte, 3)
	binary.LittleEndian.PutUint16(channel, uint16(frame.Channel))
	hdr = appendTlv(hdr, tlvChannelAssignment, channel) // page 0
	return hdr
}

// appendTlv appends a TLV padded to a multiple of four bytes.
func appendTlv(hdr []byte, tlvType uint16, data []byte) []byte {
	padded := (len(data) + 3) &^ 3
	tlv := make([]byte, 4+padded)
	binary.LittleEndian.PutUint16(tlv[0:2], tlvType)
	binary.LittleEndian.PutUint16(tlv[2:4], uint16(len(data)))
	copy(tlv[4:], data)
	return append(hdr, tlv...)
}

func (pf *file) Sync() error {
	pf.lock.Lock()
	defer pf.lock.Unlock()
	return errors.WithStack(pf.fd.Sync())
}

func (pf *file) Close() error {
	pf.lock.Lock()
	defer pf.lock.Unlock()
	return errors.WithStack(pf.fd.Close())
}

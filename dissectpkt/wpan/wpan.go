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

// Package wpan decodes the IEEE 802.15.4 MAC header of a received PSDU, for display.
package wpan

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type FrameType = uint16

const (
	FrameTypeBeacon    FrameType = 0
	FrameTypeData      FrameType = 1
	FrameTypeAck       FrameType = 2
	FrameTypeCommand   FrameType = 3
	FrameTypeMultipurp FrameType = 5
)

// Addressing modes, Table 7-3, 802.15.4-2015.
const (
	AddrModeNone     = 0
	AddrModeReserved = 1
	AddrModeShort    = 2
	AddrModeExtended = 3
)

var ErrTruncated = errors.New("truncated MAC header")

type FrameControl uint16

func (fc FrameControl) String() string {
	return fmt.Sprintf("0x%04x", uint16(fc))
}

func (fc FrameControl) FrameType() FrameType {
	return FrameType(fc & 0x0007)
}

func (fc FrameControl) SecurityEnabled() bool {
	return fc&0x0008 != 0
}

func (fc FrameControl) FramePending() bool {
	return fc&0x0010 != 0
}

func (fc FrameControl) AckRequest() bool {
	return fc&0x0020 != 0
}

func (fc FrameControl) PanidCompression() bool {
	return fc&0x0040 != 0
}

func (fc FrameControl) SequenceNumberSuppression() bool {
	return fc&0x0100 != 0
}

func (fc FrameControl) IEPresent() bool {
	return fc&0x0200 != 0
}

func (fc FrameControl) DestAddrMode() uint16 {
	return uint16(fc&0x0c00) >> 10
}

func (fc FrameControl) FrameVersion() uint16 {
	return uint16(fc&0x3000) >> 12
}

func (fc FrameControl) SourceAddrMode() uint16 {
	return uint16(fc&0xc000) >> 14
}

// HasDestPanIdField follows Table 7-2 of 802.15.4-2015; older frame versions always carry
// the destination PAN id when a destination address is present.
func (fc FrameControl) HasDestPanIdField() bool {
	dam, sam, pc := fc.DestAddrMode(), fc.SourceAddrMode(), fc.PanidCompression()
	if fc.FrameVersion() <= 1 {
		return dam != AddrModeNone
	}
	switch {
	case dam == AddrModeExtended && sam == AddrModeExtended:
		return !pc
	case dam != AddrModeNone && sam != AddrModeNone:
		return !pc
	case dam != AddrModeNone:
		return !pc
	default:
		return pc
	}
}

func (fc FrameControl) HasSourcePanIdField() bool {
	dam, sam, pc := fc.DestAddrMode(), fc.SourceAddrMode(), fc.PanidCompression()
	if sam == AddrModeNone {
		return false
	}
	if fc.FrameVersion() <= 1 {
		return !pc
	}
	if dam == AddrModeExtended && sam == AddrModeExtended {
		return false
	}
	return !pc
}

type MacFrame struct {
	FrameControl    FrameControl
	Seq             uint8
	DstPanId        uint16
	SrcPanId        uint16
	DstAddrShort    uint16
	SrcAddrShort    uint16
	DstAddrExtended uint64
	SrcAddrExtended uint64
	// HeaderLength is the length of the decoded header, without auxiliary security
	// header and IEs.
	HeaderLength int
}

func formatAddr(mode uint16, short uint16, ext uint64) string {
	switch mode {
	case AddrModeShort:
		return fmt.Sprintf("%04x", short)
	case AddrModeExtended:
		return fmt.Sprintf("%016x", ext)
	default:
		return "-"
	}
}

func (f *MacFrame) String() string {
	fc := f.FrameControl
	if fc.FrameType() == FrameTypeAck {
		return fmt.Sprintf("ACK,FC:%s,Seq:%d", fc, f.Seq)
	}
	return fmt.Sprintf("MAC,FC:%s,Seq:%d,Src:%s,Dst:%s", fc, f.Seq,
		formatAddr(fc.SourceAddrMode(), f.SrcAddrShort, f.SrcAddrExtended),
		formatAddr(fc.DestAddrMode(), f.DstAddrShort, f.DstAddrExtended))
}

type reader struct {
	data []byte
	n    int
	err  error
}

func (r *reader) take(size int) []byte {
	if r.err != nil || r.n+size > len(r.data) {
		r.err = ErrTruncated
		return make([]byte, size)
	}
	b := r.data[r.n : r.n+size]
	r.n += size
	return b
}

func (r *reader) u16() uint16 {
	return binary.LittleEndian.Uint16(r.take(2))
}

func (r *reader) addr(mode uint16) (uint16, uint64) {
	switch mode {
	case AddrModeShort:
		return r.u16(), 0
	case AddrModeExtended:
		return 0, binary.LittleEndian.Uint64(r.take(8))
	default:
		return 0, 0
	}
}

// Dissect decodes the MAC header at the start of psdu.
func Dissect(psdu []byte) (*MacFrame, error) {
	r := &reader{data: psdu}
	frame := &MacFrame{FrameControl: FrameControl(r.u16())}
	if r.err != nil {
		return nil, r.err
	}
	fc := frame.FrameControl
	if fc.FrameType() > FrameTypeCommand {
		return nil, errors.Errorf("unsupported frame type %d", fc.FrameType())
	}

	if !fc.SequenceNumberSuppression() {
		frame.Seq = r.take(1)[0]
	}
	if fc.HasDestPanIdField() {
		frame.DstPanId = r.u16()
	}
	frame.DstAddrShort, frame.DstAddrExtended = r.addr(fc.DestAddrMode())
	if fc.HasSourcePanIdField() {
		frame.SrcPanId = r.u16()
	} else if fc.SourceAddrMode() != AddrModeNone {
		frame.SrcPanId = frame.DstPanId
	}
	frame.SrcAddrShort, frame.SrcAddrExtended = r.addr(fc.SourceAddrMode())
	if r.err != nil {
		return nil, r.err
	}
	frame.HeaderLength = r.n
	return frame, nil
}

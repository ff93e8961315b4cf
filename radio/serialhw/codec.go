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

package serialhw

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio"
	. "github.com/embenet/nodeport/types"
)

type MsgType = uint8

const (
	// host to coprocessor
	MsgTypeOpen       MsgType = 1
	MsgTypeClose      MsgType = 2
	MsgTypeSetTxPower MsgType = 3
	MsgTypePost       MsgType = 4
	MsgTypeFlush      MsgType = 5
	MsgTypeRunTest    MsgType = 6
	MsgTypePing       MsgType = 7

	// coprocessor to host
	MsgTypeAck   MsgType = 0x80
	MsgTypeEvent MsgType = 0x81
)

const msgHeaderLen = 5 // type u8, handle u16, length u16

// MaxMessageData bounds the payload of one message.
const MaxMessageData = 0xFFFF

var ErrShortMessage = errors.New("truncated message")

// Message is one frame of the coprocessor link. All integers are little-endian.
type Message struct {
	Type   MsgType
	Handle uint16
	Data   []byte
}

func (m *Message) Serialize() []byte {
	logger.AssertTrue(len(m.Data) <= MaxMessageData)
	msg := make([]byte, msgHeaderLen+len(m.Data))
	msg[0] = m.Type
	binary.LittleEndian.PutUint16(msg[1:3], m.Handle)
	binary.LittleEndian.PutUint16(msg[3:5], uint16(len(m.Data)))
	copy(msg[msgHeaderLen:], m.Data)
	return msg
}

// Deserialize reads one message from data. It returns the number of bytes used, or 0 if
// data does not yet hold a complete message.
func (m *Message) Deserialize(data []byte) int {
	if len(data) < msgHeaderLen {
		return 0
	}
	datalen := int(binary.LittleEndian.Uint16(data[3:5]))
	if len(data) < msgHeaderLen+datalen {
		return 0
	}
	m.Type = data[0]
	m.Handle = binary.LittleEndian.Uint16(data[1:3])
	m.Data = make([]byte, datalen)
	copy(m.Data, data[msgHeaderLen:msgHeaderLen+datalen])
	return msgHeaderLen + datalen
}

// encoder appends little-endian fields.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u16(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

func (e *encoder) u32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *encoder) bytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// decoder consumes little-endian fields. The first underflow is kept in err.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil || len(d.buf) < n {
		d.err = ErrShortMessage
		return make([]byte, n)
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u8() uint8 {
	return d.take(1)[0]
}

func (d *decoder) u16() uint16 {
	return binary.LittleEndian.Uint16(d.take(2))
}

func (d *decoder) u32() uint32 {
	return binary.LittleEndian.Uint32(d.take(4))
}

func encodePhy(phy radio.PhyConfig) []byte {
	e := &encoder{}
	e.u32(phy.BitRate)
	e.u8(uint8(phy.PreambleBytes))
	e.u32(phy.SyncWord)
	e.u8(uint8(phy.SyncBits))
	e.u8(uint8(phy.CrcBytes))
	return e.buf
}

func decodePhy(data []byte) (radio.PhyConfig, error) {
	d := &decoder{buf: data}
	phy := radio.PhyConfig{
		BitRate:       d.u32(),
		PreambleBytes: int(d.u8()),
		SyncWord:      d.u32(),
		SyncBits:      int(d.u8()),
		CrcBytes:      int(d.u8()),
	}
	return phy, d.err
}

func encodePower(entry radio.PowerEntry) []byte {
	e := &encoder{}
	e.u8(uint8(entry.Dbm))
	e.u32(entry.Value)
	return e.buf
}

func decodePower(data []byte) (radio.PowerEntry, error) {
	d := &decoder{buf: data}
	entry := radio.PowerEntry{
		Dbm:   PowerDbm(int8(d.u8())),
		Value: d.u32(),
	}
	return entry, d.err
}

// encodePost serializes a chain with its priority and event mask.
func encodePost(chain *radio.Chain, prio radio.Priority, mask radio.EventMask) []byte {
	e := &encoder{}
	e.u8(uint8(prio))
	e.u32(uint32(mask))
	e.u8(uint8(len(chain.Name)))
	e.bytes([]byte(chain.Name))
	e.u8(uint8(len(chain.Steps)))
	for i := range chain.Steps {
		encodeStep(e, &chain.Steps[i])
	}
	return e.buf
}

func encodeStep(e *encoder, s *radio.Step) {
	e.u8(uint8(s.Kind))
	e.u8(uint8(s.OnSuccess))
	e.u8(uint8(s.OnFailure))
	switch s.Kind {
	case radio.StepFs:
		encodeFs(e, s.Fs)
	case radio.StepTx:
		e.u8(uint8(len(s.Tx.Payload)))
		e.bytes(s.Tx.Payload)
	case radio.StepRx:
		size := 0
		if s.Rx.Entry != nil {
			size = len(s.Rx.Entry.Data)
		}
		e.u16(uint16(size))
	case radio.StepTxTest:
		e.u8(boolByte(s.TxTest.UseCarrier))
		encodeFs(e, s.TxTest.Fs)
	}
}

func encodeFs(e *encoder, fs radio.FsParams) {
	e.u16(fs.FrequencyMHz)
	e.u16(fs.FractFreq)
	e.u8(boolByte(fs.TxMode))
}

// decodePost rebuilds a chain on the coprocessor side, with fresh receive entries.
func decodePost(data []byte) (*radio.Chain, radio.Priority, radio.EventMask, error) {
	d := &decoder{buf: data}
	prio := radio.Priority(d.u8())
	mask := radio.EventMask(d.u32())
	name := string(d.take(int(d.u8())))
	n := int(d.u8())
	chain := &radio.Chain{Name: name, Steps: make([]radio.Step, n)}
	for i := 0; i < n && d.err == nil; i++ {
		decodeStep(d, &chain.Steps[i])
	}
	if d.err != nil {
		return nil, 0, 0, errors.Wrap(d.err, "decode chain")
	}
	return chain, prio, mask, nil
}

func decodeStep(d *decoder, s *radio.Step) {
	s.Kind = radio.StepKind(d.u8())
	s.OnSuccess = radio.Next(int8(d.u8()))
	s.OnFailure = radio.Next(int8(d.u8()))
	switch s.Kind {
	case radio.StepFs:
		s.Fs = decodeFs(d)
	case radio.StepTx:
		s.Tx.Payload = append([]byte(nil), d.take(int(d.u8()))...)
	case radio.StepRx:
		s.Rx.Entry = radio.NewRxEntry(int(d.u16()))
	case radio.StepTxTest:
		s.TxTest.UseCarrier = d.u8() != 0
		s.TxTest.Fs = decodeFs(d)
	}
}

func decodeFs(d *decoder) radio.FsParams {
	return radio.FsParams{
		FrequencyMHz: d.u16(),
		FractFreq:    d.u16(),
		TxMode:       d.u8() != 0,
	}
}

// EventData is the payload of an event message: the raised events, the coprocessor
// timer ticks at which they were raised, the step statuses of the chain and, when the
// chain received a packet, the receive entry.
type EventData struct {
	Events   radio.EventMask
	Ticks    uint32
	Statuses []radio.StepStatus
	Entry    []byte
}

func (ev *EventData) encode() []byte {
	e := &encoder{}
	e.u32(uint32(ev.Events))
	e.u32(ev.Ticks)
	e.u8(uint8(len(ev.Statuses)))
	for _, s := range ev.Statuses {
		e.u8(uint8(s))
	}
	e.u16(uint16(len(ev.Entry)))
	e.bytes(ev.Entry)
	return e.buf
}

func decodeEvent(data []byte) (EventData, error) {
	d := &decoder{buf: data}
	ev := EventData{
		Events: radio.EventMask(d.u32()),
		Ticks:  d.u32(),
	}
	n := int(d.u8())
	for i := 0; i < n && d.err == nil; i++ {
		ev.Statuses = append(ev.Statuses, radio.StepStatus(d.u8()))
	}
	if size := int(d.u16()); size > 0 {
		ev.Entry = append([]byte(nil), d.take(size)...)
	}
	return ev, errors.Wrap(d.err, "decode event")
}

func encodeAck(err error) []byte {
	if err == nil {
		return []byte{0}
	}
	return append([]byte{1}, err.Error()...)
}

func decodeAck(data []byte) error {
	if len(data) == 0 {
		return ErrShortMessage
	}
	if data[0] == 0 {
		return nil
	}
	return errors.Errorf("coprocessor: %s", data[1:])
}

// encodeTimeAck answers a ping: a success ack followed by the tick counter of the coprocessor.
func encodeTimeAck(ticks uint32) []byte {
	e := &encoder{buf: encodeAck(nil)}
	e.u32(ticks)
	return e.buf
}

// decodeAckTicks returns the tick counter carried by the answer to a ping, if any.
func decodeAckTicks(data []byte) (uint32, bool) {
	if len(data) < 5 || data[0] != 0 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[1:5]), true
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

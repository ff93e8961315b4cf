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

// Package eui64 provides the IEEE EUI-64 identifier of a node.
package eui64

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/random"
)

type EUI64 uint64

// String renders the identifier most significant byte first, e.g. 00:12:4b:00:14:b5:c8:01.
func (e EUI64) String() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(e))
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}

// Parse reads an identifier as eight colon or dash separated hex bytes, or as 16 hex digits.
func Parse(s string) (EUI64, error) {
	s = strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 16 {
		return 0, errors.Errorf("invalid EUI64 %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid EUI64 %q", s)
	}
	return EUI64(v), nil
}

// Provider returns the identifier of the node.
type Provider interface {
	Get() EUI64
}

// Fixed is a configured identifier.
type Fixed EUI64

func (f Fixed) Get() EUI64 {
	return EUI64(f)
}

// File reads the identifier from an 8 byte image of the factory configuration area, where
// it is stored little-endian.
type File struct {
	value EUI64
}

func NewFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read EUI64")
	}
	if len(data) < 8 {
		return nil, errors.Errorf("EUI64 file %s holds %d bytes", path, len(data))
	}
	return &File{value: EUI64(binary.LittleEndian.Uint64(data[:8]))}, nil
}

func (f *File) Get() EUI64 {
	return f.value
}

// Random is drawn once from the random generator, marked locally administered and unicast.
type Random struct {
	value EUI64
}

func NewRandom() *Random {
	v := uint64(random.Get())<<32 | uint64(random.Get())
	v |= 0x02 << 56
	v &^= 0x01 << 56
	return &Random{value: EUI64(v)}
}

func (r *Random) Get() EUI64 {
	return r.value
}

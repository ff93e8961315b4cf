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

// Out-of-range sentinels understood by PowerTable.FindValue.
const (
	PowerMinDbm PowerDbm = -128
	PowerMaxDbm PowerDbm = 126
)

// PowerEntry pairs a power level with the raw PA setting that produces it.
type PowerEntry struct {
	Dbm   PowerDbm `yaml:"dbm"`
	Value uint32   `yaml:"value"`
}

// PowerTable lists the supported power levels in ascending order.
type PowerTable []PowerEntry

// DefaultPowerTable is the 868 MHz table of the reference board. There is no 13 dBm setting.
func DefaultPowerTable() PowerTable {
	return PowerTable{
		{0, 0x04C0}, {1, 0x04C6}, {2, 0x06C6}, {3, 0x06CA}, {4, 0x08CD},
		{5, 0x0AD1}, {6, 0x0AD6}, {7, 0x0CDB}, {8, 0x0EE1}, {9, 0x10E7},
		{10, 0x14EE}, {11, 0x1AF6}, {12, 0x24FE}, {14, 0x013F},
	}
}

func (pt PowerTable) Validate() error {
	if len(pt) == 0 {
		return errors.New("power table is empty")
	}
	for i := 1; i < len(pt); i++ {
		if pt[i].Dbm <= pt[i-1].Dbm {
			return errors.Errorf("power table not ascending at entry %d (%d dBm)", i, pt[i].Dbm)
		}
	}
	return nil
}

func (pt PowerTable) Min() PowerDbm {
	return pt[0].Dbm
}

func (pt PowerTable) Max() PowerDbm {
	return pt[len(pt)-1].Dbm
}

// Clamp replaces a request above the table by PowerMaxDbm and one below it by PowerMinDbm,
// so that FindValue always resolves to an entry.
func (pt PowerTable) Clamp(p PowerDbm) PowerDbm {
	if p > pt.Max() {
		p = PowerMaxDbm
	}
	if p < pt.Min() {
		p = PowerMinDbm
	}
	return p
}

// FindValue returns the last entry for PowerMaxDbm, the first for PowerMinDbm, and otherwise
// the highest entry not above p. It reports false if no entry qualifies.
func (pt PowerTable) FindValue(p PowerDbm) (PowerEntry, bool) {
	switch p {
	case PowerMaxDbm:
		return pt[len(pt)-1], true
	case PowerMinDbm:
		return pt[0], true
	}
	found := false
	var e PowerEntry
	for _, entry := range pt {
		if entry.Dbm <= p {
			e, found = entry, true
		}
	}
	return e, found
}

// Lookup is Clamp followed by FindValue.
func (pt PowerTable) Lookup(p PowerDbm) PowerEntry {
	e, _ := pt.FindValue(pt.Clamp(p))
	return e
}

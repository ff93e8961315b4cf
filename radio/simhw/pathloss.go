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

package simhw

import (
	"math"
)

// Position of a node in meters.
type Position struct {
	X, Y float64
}

func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func paround(param float64) float64 {
	return math.Round(param*100.0) / 100.0
}

// ItuFixedLossDb is the frequency term of the ITU indoor model at 868 MHz.
var ItuFixedLossDb = paround(20.0*math.Log10(868) - 28.0)

// computeIndoorRssiItu returns the RSSI at distance dist, see
// https://en.wikipedia.org/wiki/ITU_model_for_indoor_attenuation
func computeIndoorRssiItu(dist float64, txPowerDbm float64, exponentDb, fixedLossDb float64) float64 {
	pathloss := 0.0
	if dist >= 0.01 {
		pathloss = exponentDb*math.Log10(dist) + fixedLossDb
		if pathloss < 0.0 {
			pathloss = 0.0
		}
	}
	return txPowerDbm - pathloss
}

// rssiByte saturates an RSSI to the signed byte a receive entry stores.
func rssiByte(rssi float64) int8 {
	r := math.Round(rssi)
	if r > math.MaxInt8 {
		return math.MaxInt8
	}
	if r < math.MinInt8 {
		return math.MinInt8
	}
	return int8(r)
}

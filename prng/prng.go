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

// Package prng provides the seeded pseudo random generators of a simulation. A fixed root
// seed makes a simulation run reproducible.
package prng

import (
	"math/rand"
	"sync"
	"time"
)

type RandomSeed int64

var (
	lock                sync.Mutex
	rootSeed            int64
	nodeSeedGenerator   *rand.Rand
	mediumSeedGenerator *rand.Rand
	unitRandGenerator   *rand.Rand
)

func init() {
	Init(0)
}

// Init initializes the prng package, either with a fixed PRNG seed (seed != 0) or a
// time-based seed (seed == 0).
func Init(seed int64) {
	lock.Lock()
	defer lock.Unlock()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rootSeed = seed
	root := rand.New(rand.NewSource(seed))
	nodeSeedGenerator = rand.New(rand.NewSource(seed + root.Int63n(1e10)))
	mediumSeedGenerator = rand.New(rand.NewSource(seed + root.Int63n(1e10)))
	unitRandGenerator = rand.New(rand.NewSource(seed + root.Int63n(1e10)))
}

// RootSeed returns the seed passed to the last Init, or the time-based one it picked.
func RootSeed() int64 {
	lock.Lock()
	defer lock.Unlock()
	return rootSeed
}

// NewNodeRandomSeed generates unique random seeds for newly created nodes.
func NewNodeRandomSeed() RandomSeed {
	lock.Lock()
	defer lock.Unlock()
	return RandomSeed(nodeSeedGenerator.Int63())
}

// NewMediumRandomSeed generates random seeds for radio media.
func NewMediumRandomSeed() RandomSeed {
	lock.Lock()
	defer lock.Unlock()
	return RandomSeed(mediumSeedGenerator.Int63())
}

// NewUnitRandom generates a random unit [0, 1) float, usable as a random probability.
func NewUnitRandom() float64 {
	lock.Lock()
	defer lock.Unlock()
	return unitRandGenerator.Float64()
}

// NewRand returns an independent generator. It is not safe for concurrent use.
func NewRand(seed RandomSeed) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

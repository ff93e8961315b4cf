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

package simulation

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/radio/serialhw"
	"github.com/embenet/nodeport/radio/simhw"
	. "github.com/embenet/nodeport/types"
)

// ServeDevice places radio id on the medium and lets a host drive it over conn, as if it
// were a coprocessor. It returns when ctx is done or the link closes.
func (s *Simulation) ServeDevice(ctx context.Context, conn io.ReadWriter, id NodeId, pos simhw.Position) error {
	s.lock.Lock()
	if s.real {
		s.lock.Unlock()
		return errors.New("no medium in a coprocessor session")
	}
	if s.nodes[id] != nil || s.medium.GetRadio(id) != nil {
		s.lock.Unlock()
		return errors.Errorf("node %d already exists", id)
	}
	r := s.medium.AddRadio(id, pos, critsec.NewController())
	s.lock.Unlock()

	logger.Infof("node %d: serving its radio as coprocessor", id)
	return serialhw.NewDevice(conn, r, s.medium.Clock()).Serve(ctx)
}

// Pace advances virtual time along with the wall clock, in steps of tick, until ctx is done.
func (s *Simulation) Pace(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			<-s.Go(now.Sub(last))
			last = now
		}
	}
}

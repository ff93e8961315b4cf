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

package critsec

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSection_Nesting(t *testing.T) {
	s := NewSection(NewController())
	s.Enter()
	s.Enter()
	assert.Equal(t, 2, s.Depth())
	s.Exit()
	assert.Equal(t, 1, s.Depth())
	s.Exit()
	assert.Equal(t, 0, s.Depth())

	// unbalanced exit clamps at zero and does not unlock twice
	s.Exit()
	assert.Equal(t, 0, s.Depth())
	s.Enter()
	assert.Equal(t, 1, s.Depth())
	s.Exit()
}

func TestSection_MasksInterrupts(t *testing.T) {
	ctrl := NewController()
	s := NewSection(ctrl)

	var fired int32
	done := make(chan struct{})

	s.Enter()
	s.Enter()
	go func() {
		ctrl.Raise(func() {
			atomic.StoreInt32(&fired, 1)
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	s.Exit()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired), "inner exit must keep the mask")
	s.Exit()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("interrupt not delivered after the section was left")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestController_RaiseSerializes(t *testing.T) {
	ctrl := NewController()
	var active, overlaps int32
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				ctrl.Raise(func() {
					if atomic.AddInt32(&active, 1) != 1 {
						atomic.AddInt32(&overlaps, 1)
					}
					atomic.AddInt32(&active, -1)
				})
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlaps))
}

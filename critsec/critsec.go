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

// Package critsec models the single-core interrupt discipline of a node: a global interrupt
// mask shared by mainline code and interrupt handlers, plus the nestable critical section
// built on top of it.
package critsec

import (
	"sync"
)

// Controller is the global interrupt mask of one node. While the mask is held by mainline
// code no interrupt handler runs; handlers raised meanwhile are delayed until Restore.
type Controller struct {
	mask sync.Mutex
}

func NewController() *Controller {
	return &Controller{}
}

// Disable masks interrupts. It waits for a running handler to return.
func (c *Controller) Disable() {
	c.mask.Lock()
}

// Restore unmasks interrupts.
func (c *Controller) Restore() {
	c.mask.Unlock()
}

// Raise runs isr in interrupt context. Handlers never nest and never overlap masked
// mainline code. isr must not enter a Section of the same Controller.
func (c *Controller) Raise(isr func()) {
	c.mask.Lock()
	defer c.mask.Unlock()
	isr()
}

// Section is the nestable critical section of the mainline context. The mask is taken
// when the nesting depth leaves zero and restored only when it returns to zero.
type Section struct {
	ctrl  *Controller
	lock  sync.Mutex
	depth int
}

func NewSection(ctrl *Controller) *Section {
	return &Section{ctrl: ctrl}
}

func (s *Section) Enter() {
	s.lock.Lock()
	first := s.depth == 0
	s.depth++
	s.lock.Unlock()

	if first {
		s.ctrl.Disable()
	}
}

// Exit leaves one nesting level. Unbalanced calls are clamped at depth zero.
func (s *Section) Exit() {
	s.lock.Lock()
	if s.depth == 0 {
		s.lock.Unlock()
		return
	}
	s.depth--
	last := s.depth == 0
	s.lock.Unlock()

	if last {
		s.ctrl.Restore()
	}
}

// Depth returns the current nesting depth.
func (s *Section) Depth() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.depth
}

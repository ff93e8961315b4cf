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

// Package progctx manages the lifetime of the simulator process: its cancellation, the
// goroutines it has to wait for and the cleanup run on exit.
package progctx

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/logger"
)

// ProgCtx is the context of the program during its lifetime.
type ProgCtx struct {
	context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup

	lock     sync.Mutex
	routines map[string]int
	deferred []func()
}

func New(parent context.Context) *ProgCtx {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &ProgCtx{
		Context:  ctx,
		cancel:   cancel,
		routines: map[string]int{},
	}
}

// Cancel ends the program with reason, which is an error or a message. Only the first call
// has an effect; it runs the deferred functions, most recent first.
func (ctx *ProgCtx) Cancel(reason interface{}) {
	ctx.once.Do(func() {
		ctx.cancel()
		if err, ok := reason.(error); ok {
			logger.TraceError("program exit: %v", err)
		} else {
			logger.Infof("program exit: %v", reason)
		}

		ctx.lock.Lock()
		deferred := ctx.deferred
		ctx.deferred = nil
		ctx.lock.Unlock()
		for i := len(deferred) - 1; i >= 0; i-- {
			deferred[i]()
		}
	})
}

// Defer registers f to run at Cancel.
func (ctx *ProgCtx) Defer(f func()) {
	if ctx.Err() != nil {
		logger.Panic(errors.New("cannot Defer after the program context is done"))
	}
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	ctx.deferred = append(ctx.deferred, f)
}

// Go runs f as a named goroutine waited for by Wait. A returned error cancels the program.
func (ctx *ProgCtx) Go(name string, f func(ctx context.Context) error) {
	ctx.WaitAdd(name, 1)
	go func() {
		defer ctx.WaitDone(name)
		if err := f(ctx); err != nil {
			ctx.Cancel(errors.Wrap(err, name))
		}
	}()
}

func (ctx *ProgCtx) WaitAdd(name string, delta int) {
	ctx.lock.Lock()
	ctx.routines[name] += delta
	ctx.lock.Unlock()
	ctx.wg.Add(delta)
}

func (ctx *ProgCtx) WaitDone(name string) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	if ctx.routines[name] <= 0 {
		logger.Panicf("routine %s is not running", name)
	}
	ctx.routines[name]--
	ctx.wg.Done()
}

// WaitCount returns the number of running goroutines.
func (ctx *ProgCtx) WaitCount() int {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	total := 0
	for _, c := range ctx.routines {
		total += c
	}
	return total
}

func (ctx *ProgCtx) Wait() {
	ctx.lock.Lock()
	logger.Debugf("waiting for routines: %v", ctx.routines)
	ctx.lock.Unlock()
	ctx.wg.Wait()
}

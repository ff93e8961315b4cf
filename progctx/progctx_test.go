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

package progctx

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	_ = context.Context(New(context.Background()))
	ctx := New(nil) // nolint
	assert.Nil(t, ctx.Err())
}

func TestProgCtx_Cancel(t *testing.T) {
	ctx := New(context.Background())
	var order []int
	ctx.Defer(func() { order = append(order, 1) })
	ctx.Defer(func() { order = append(order, 2) })

	ctx.Cancel(errors.New("test error"))
	ctx.Cancel("again")
	<-ctx.Done()
	assert.Equal(t, context.Canceled, ctx.Err())
	assert.Equal(t, []int{2, 1}, order)

	assert.Panics(t, func() {
		ctx.Defer(func() {})
	})
}

func TestProgCtx_Go(t *testing.T) {
	ctx := New(context.Background())
	ctx.Go("worker", func(c context.Context) error {
		<-c.Done()
		return nil
	})
	ctx.Go("failing", func(context.Context) error {
		return errors.New("serial port gone")
	})

	<-ctx.Done()
	ctx.Wait()
	assert.Equal(t, 0, ctx.WaitCount())
}

func TestProgCtx_Wait(t *testing.T) {
	ctx := New(context.Background())
	ctx.WaitAdd("test1", 1)
	go ctx.WaitDone("test1")

	ctx.WaitAdd("test2", 2)
	for i := 0; i < 2; i++ {
		go func() { defer ctx.WaitDone("test2") }()
	}
	ctx.Wait()
	assert.Panics(t, func() {
		ctx.WaitDone("test1")
	})
}

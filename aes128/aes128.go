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

// Package aes128 is the block cipher of the port: single 16 byte blocks, encrypted or
// decrypted in place with a 128 bit key.
package aes128

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/embenet/nodeport/logger"
)

const (
	KeySize   = 16
	BlockSize = aes.BlockSize
)

// Engine holds the key of the port. Until SetKey is called the key is all zeroes.
type Engine struct {
	mu     sync.Mutex
	key    [KeySize]byte
	block  cipher.Block
	opened bool
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = true
	e.rekey()
}

// Deinit releases the engine and wipes the key.
func (e *Engine) Deinit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.key {
		e.key[i] = 0
	}
	e.block = nil
	e.opened = false
}

func (e *Engine) SetKey(key [KeySize]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = key
	e.rekey()
}

func (e *Engine) rekey() {
	if !e.opened {
		return
	}
	block, err := aes.NewCipher(e.key[:])
	logger.FatalIfError(err, "AES malfunction")
	e.block = block
}

func (e *Engine) Encrypt(data *[BlockSize]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	logger.AssertNotNil(e.block, "AES engine used before Init")
	e.block.Encrypt(data[:], data[:])
}

func (e *Engine) Decrypt(data *[BlockSize]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	logger.AssertNotNil(e.block, "AES engine used before Init")
	e.block.Decrypt(data[:], data[:])
}

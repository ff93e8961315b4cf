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

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelString(t *testing.T) {
	lv, err := ParseLevelString("debug")
	assert.Nil(t, err)
	assert.Equal(t, DebugLevel, lv)

	lv, err = ParseLevelString("W")
	assert.Nil(t, err)
	assert.Equal(t, WarnLevel, lv)

	lv, err = ParseLevelString("none")
	assert.Nil(t, err)
	assert.Equal(t, OffLevel, lv)

	lv, err = ParseLevelString("")
	assert.Nil(t, err)
	assert.Equal(t, DefaultLevel, lv)

	_, err = ParseLevelString("verbose")
	assert.NotNil(t, err)
}

func TestGetLevelString(t *testing.T) {
	for _, lv := range []Level{TraceLevel, DebugLevel, InfoLevel, WarnLevel, ErrorLevel, OffLevel} {
		parsed, err := ParseLevelString(GetLevelString(lv))
		assert.Nil(t, err)
		assert.Equal(t, lv, parsed)
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(GetLevel())

	SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, GetLevel())
	Debugf("not shown %d", 1)
	SetLevel(TraceLevel)
	assert.Equal(t, TraceLevel, GetLevel())
}

func TestAssertHelpersPanic(t *testing.T) {
	assert.True(t, AssertTrue(true))
	assert.True(t, AssertNil(nil))
	assert.Panics(t, func() {
		AssertTrue(false)
	})
	assert.Panics(t, func() {
		AssertNil(3)
	})
	assert.Panics(t, func() {
		AssertNotNil(nil)
	})
}

func TestNodeLogger_Queue(t *testing.T) {
	nl := GetNodeLogger(42)
	assert.Same(t, nl, GetNodeLogger(42))

	nl.SetDisplayLevel(DebugLevel)
	nl.Tracef("dropped by level")
	nl.Debugf("queued %d", 1)
	nl.Infof("queued %d", 2)
	assert.Equal(t, 2, nl.Pending())

	nl.DisplayPendingLogEntries(1234)
	assert.Equal(t, 0, nl.Pending())
}

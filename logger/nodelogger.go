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
	"fmt"
	"sync"

	. "github.com/embenet/nodeport/types"
)

type logEntry struct {
	Level Level
	Msg   string
}

// NodeLogger collects log entries of one simulated node. Entries are queued without blocking,
// since they are mostly produced from simulated interrupt context, and are written out with
// the virtual timestamp by DisplayPendingLogEntries.
type NodeLogger struct {
	Id           NodeId
	displayLevel Level
	entries      chan logEntry
	timestampUs  uint64
	lock         sync.Mutex
}

var (
	nodeLogs = make(map[NodeId]*NodeLogger, 10)
	mutex    = sync.Mutex{}
)

// GetNodeLogger returns the NodeLogger of the node, creating it on first use.
func GetNodeLogger(nodeid NodeId) *NodeLogger {
	mutex.Lock()
	defer mutex.Unlock()

	nl, ok := nodeLogs[nodeid]
	if !ok {
		nl = &NodeLogger{
			Id:           nodeid,
			displayLevel: GetLevel(),
			entries:      make(chan logEntry, 1000),
		}
		nodeLogs[nodeid] = nl
	}
	return nl
}

func (nl *NodeLogger) SetDisplayLevel(level Level) {
	nl.lock.Lock()
	nl.displayLevel = level
	nl.lock.Unlock()
}

func (nl *NodeLogger) DisplayLevel() Level {
	nl.lock.Lock()
	defer nl.lock.Unlock()
	return nl.displayLevel
}

func (nl *NodeLogger) logf(level Level, format string, args []interface{}) {
	if level > nl.DisplayLevel() {
		return
	}
	entry := logEntry{
		Level: level,
		Msg:   getMessage(format, args),
	}
	select {
	case nl.entries <- entry:
	default:
		// queue full: drop the oldest entry rather than stall the caller
		select {
		case <-nl.entries:
		default:
		}
		nl.entries <- entry
	}
}

func (nl *NodeLogger) Tracef(format string, args ...interface{}) {
	nl.logf(TraceLevel, format, args)
}

func (nl *NodeLogger) Debugf(format string, args ...interface{}) {
	nl.logf(DebugLevel, format, args)
}

func (nl *NodeLogger) Infof(format string, args ...interface{}) {
	nl.logf(InfoLevel, format, args)
}

func (nl *NodeLogger) Warnf(format string, args ...interface{}) {
	nl.logf(WarnLevel, format, args)
}

func (nl *NodeLogger) Errorf(format string, args ...interface{}) {
	nl.logf(ErrorLevel, format, args)
}

// DisplayPendingLogEntries writes out all queued entries of the node, stamped with virtual time ts.
func (nl *NodeLogger) DisplayPendingLogEntries(ts uint64) {
	nl.timestampUs = ts
	prefix := fmt.Sprintf("%11d node %-3d ", ts, nl.Id)
	for {
		select {
		case entry := <-nl.entries:
			logAlways(entry.Level, prefix+entry.Msg)
		default:
			return
		}
	}
}

// Pending returns the number of queued entries.
func (nl *NodeLogger) Pending() int {
	return len(nl.entries)
}

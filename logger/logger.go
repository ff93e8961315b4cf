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

// Package logger is the process-wide structured logger. Radio event handlers may log from
// interrupt context, so nothing in here blocks on anything but the output writer.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type Level int8

const (
	TraceLevel   Level = 5
	DebugLevel   Level = 4
	InfoLevel    Level = 3
	WarnLevel    Level = 2
	ErrorLevel   Level = 1
	PanicLevel   Level = 0
	FatalLevel   Level = -1
	OffLevel     Level = -2
	MinLevel           = OffLevel
	DefaultLevel       = InfoLevel
)

type StdoutCallback interface {
	OnStdout()
}

var (
	cfg             zap.Config
	zaplogger       *zap.Logger
	lock            sync.RWMutex
	currentLevel    = DefaultLevel
	isLogToTerminal bool
	cbStdout        StdoutCallback
	zapLevels       = []zapcore.Level{zapcore.FatalLevel + 1, zapcore.FatalLevel, zapcore.PanicLevel,
		zapcore.ErrorLevel, zapcore.WarnLevel, zapcore.InfoLevel, zapcore.DebugLevel, zapcore.DebugLevel}
)

func init() {
	isLogToTerminal = term.IsTerminal(int(os.Stdout.Fd()))

	cfgJson := []byte(`{
	"level": "debug",
	"outputPaths": ["stderr"],
	"errorOutputPaths": ["stderr"],
	"encoding": "console",
	"encoderConfig": {
		"messageKey": "message",
		"levelKey": "level",
		"timeKey": "time",
		"levelEncoder": "lowercase"
	}
}`)
	if err := json.Unmarshal(cfgJson, &cfg); err != nil {
		panic(err)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	rebuildLoggerFromCfg()
}

// SetLevel sets the log level
func SetLevel(lv Level) {
	lock.Lock()
	currentLevel = lv
	lock.Unlock()
}

// GetLevel get the current log level
func GetLevel() Level {
	lock.RLock()
	defer lock.RUnlock()
	return currentLevel
}

// SetStdoutCallback sets a callback that is called after log content was written, so that an
// interactive console can redraw its prompt.
func SetStdoutCallback(cb StdoutCallback) {
	lock.Lock()
	cbStdout = cb
	lock.Unlock()
}

// SetOutput sets the output paths, e.g. []string{"stderr", "embenet.log"}.
func SetOutput(outputs []string) {
	lock.Lock()
	defer lock.Unlock()
	cfg.OutputPaths = outputs
	rebuildLoggerFromCfg()
}

func rebuildLoggerFromCfg() {
	newLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	if zaplogger != nil {
		_ = zaplogger.Sync()
	}
	zaplogger = newLogger
}

// TraceError prints the stack and error
func TraceError(format string, args ...interface{}) {
	Errorf("%s", debug.Stack())
	Errorf(format, args...)
}

// getMessage formats a string efficiently with Sprint, Sprintf, or neither.
func getMessage(template string, fmtArgs []interface{}) string {
	if len(fmtArgs) == 0 {
		return template
	}

	if template != "" {
		return fmt.Sprintf(template, fmtArgs...)
	}

	if len(fmtArgs) == 1 {
		if str, ok := fmtArgs[0].(string); ok {
			return str
		}
	}
	return fmt.Sprint(fmtArgs...)
}

// Logf outputs formatted log message at specified level using logger.
func Logf(level Level, format string, args []interface{}) {
	if level > GetLevel() {
		return
	}
	logAlways(level, getMessage(format, args))
}

// logAlways doesn't check the level prior to logging to zaplogger.
func logAlways(level Level, msg string) {
	lock.RLock()
	zl, cb := zaplogger, cbStdout
	lock.RUnlock()

	if isLogToTerminal {
		_, _ = fmt.Fprint(os.Stdout, "\033[2K\r") // clears the console line
	}
	if ce := zl.Check(zapLevels[level-MinLevel], msg); ce != nil {
		ce.Write()
	}
	if isLogToTerminal && cb != nil {
		cb.OnStdout()
	}
}

func Tracef(format string, args ...interface{}) {
	Logf(TraceLevel, format, args)
}

func Debugf(format string, args ...interface{}) {
	Logf(DebugLevel, format, args)
}

func Infof(format string, args ...interface{}) {
	Logf(InfoLevel, format, args)
}

func Warnf(format string, args ...interface{}) {
	Logf(WarnLevel, format, args)
}

func Errorf(format string, args ...interface{}) {
	Logf(ErrorLevel, format, args)
}

// Panicf logs and then panics, regardless of the current level.
func Panicf(format string, args ...interface{}) {
	logAlways(PanicLevel, getMessage(format, args))
}

// Fatalf logs and then terminates the process, regardless of the current level.
func Fatalf(format string, args ...interface{}) {
	logAlways(FatalLevel, getMessage(format, args))
}

func Panic(args ...interface{}) {
	logAlways(PanicLevel, fmt.Sprint(args...))
}

func Fatal(args ...interface{}) {
	logAlways(FatalLevel, fmt.Sprint(args...))
}

func PanicIfError(err error, args ...interface{}) {
	if len(args) == 0 {
		args = []interface{}{err}
	}
	if err != nil {
		Panic(args...)
	}
}

func FatalIfError(err error, args ...interface{}) {
	if len(args) == 0 {
		args = []interface{}{err}
	}
	if err != nil {
		Fatal(args...)
	}
}

func FatalfIfError(err error, format string, args ...interface{}) {
	if err != nil {
		Fatalf(format, args...)
	}
}

type assertLogger struct{}

func (t assertLogger) Errorf(format string, args ...interface{}) {
	Panicf(format, args...)
}

func AssertNil(object interface{}, msgAndArgs ...interface{}) bool {
	return assert.Nil(assertLogger{}, object, msgAndArgs...)
}

func AssertNotNil(object interface{}, msgAndArgs ...interface{}) bool {
	return assert.NotNil(assertLogger{}, object, msgAndArgs...)
}

func AssertTrue(value bool, msgAndArgs ...interface{}) bool {
	return assert.True(assertLogger{}, value, msgAndArgs...)
}

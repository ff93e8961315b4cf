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

package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/embenet/nodeport/logger"
)

type CliHandler interface {
	HandleCommand(cmd string, output io.Writer) error
	GetPrompt() string
}

type CliOptions struct {
	EchoInput bool
	Stdin     *os.File
	Stdout    *os.File
}

// CliInstance is a readline console feeding a CliHandler.
type CliInstance struct {
	Started chan struct{}
	Options *CliOptions

	readlineInstance *readline.Instance
	closed           chan struct{}
}

func NewCliInstance() *CliInstance {
	return &CliInstance{
		Started: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (cli *CliInstance) RestorePrompt() {
	if cli.readlineInstance != nil {
		cli.readlineInstance.Refresh()
	}
}

// OnStdout is called by the logger after it printed to the terminal.
func (cli *CliInstance) OnStdout() {
	cli.RestorePrompt()
}

// Stop ends a running Run and waits for it to return.
func (cli *CliInstance) Stop() {
	<-cli.Started
	// readline blocks in its rune reader; an interrupt character and closing stdin free it
	_, _ = cli.Options.Stdin.WriteString("\003\n")
	_ = cli.Options.Stdin.Close()
	<-cli.closed
}

func withDefaults(options *CliOptions) *CliOptions {
	if options == nil {
		options = &CliOptions{}
	}
	if options.Stdin == nil {
		options.Stdin = os.Stdin
	}
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	return options
}

// Run reads command lines until EOF, an interrupt on an empty line, or a handler error.
func (cli *CliInstance) Run(handler CliHandler, options *CliOptions) error {
	defer logger.Debugf("console exit")
	defer close(cli.closed)

	options = withDefaults(options)
	cli.Options = options

	for _, f := range []*os.File{options.Stdin, options.Stdout} {
		fd := int(f.Fd())
		if !readline.IsTerminal(fd) {
			continue
		}
		state, err := readline.GetState(fd)
		if err != nil {
			close(cli.Started)
			return err
		}
		defer func() {
			_ = readline.Restore(fd, state)
		}()
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            handler.GetPrompt(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             options.Stdin,
		Stdout:            options.Stdout,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			// no job control
			return r, r != readline.CharCtrlZ
		},
	})
	if err != nil {
		close(cli.Started)
		return err
	}
	defer func() {
		_ = l.Close()
	}()
	cli.readlineInstance = l
	close(cli.Started)

	stdout := options.Stdout
	for {
		l.SetPrompt(handler.GetPrompt())
		line, err := l.Readline()

		switch {
		case len(line) > 0 && line[0] == readline.CharInterrupt:
			return nil
		case errors.Is(err, readline.ErrInterrupt):
			if len(line) == 0 {
				return nil
			}
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if options.EchoInput {
			if _, err := stdout.WriteString(line + "\n"); err != nil {
				return err
			}
		}

		cmd := strings.TrimSpace(line)
		if len(cmd) == 0 {
			continue
		}
		err = handler.HandleCommand(cmd, l.Stdout())
		_ = stdout.Sync()
		if err != nil {
			return err
		}
	}
}

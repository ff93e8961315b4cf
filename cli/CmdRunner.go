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
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/embenet/nodeport/aes128"
	"github.com/embenet/nodeport/dissectpkt/wpan"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/progctx"
	"github.com/embenet/nodeport/radio"
	"github.com/embenet/nodeport/radio/simhw"
	"github.com/embenet/nodeport/random"
	"github.com/embenet/nodeport/simulation"
	. "github.com/embenet/nodeport/types"
)

const (
	Prompt = "> "

	energyResultsDir = "tmp"
)

type CommandContext struct {
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil {
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		if content.Kind == yaml.SequenceNode {
			content.Style = yaml.FlowStyle
		}
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

// CmdRunner executes console commands against the nodes of a simulation. Radio commands
// act on the context node, selected with 'node <id>'.
type CmdRunner struct {
	sim           *simulation.Simulation
	ctx           *progctx.ProgCtx
	help          Help
	lock          sync.Mutex
	contextNodeId NodeId
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	return &CmdRunner{
		ctx:           ctx,
		sim:           sim,
		help:          newHelp(),
		contextNodeId: InvalidNodeId,
	}
}

// RunCommand executes cmdline outside of any node context.
func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	rt.lock.Lock()
	saved := rt.contextNodeId
	rt.contextNodeId = InvalidNodeId
	rt.lock.Unlock()

	err := rt.HandleCommand(cmdline, output)

	rt.lock.Lock()
	if rt.contextNodeId == InvalidNodeId {
		rt.contextNodeId = saved
	}
	rt.lock.Unlock()
	return err
}

// HandleCommand executes cmdline in the current node context. A leading '!' runs it
// without the context.
func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() != nil {
		return rt.ctx.Err()
	}
	if isContextlessCommand(cmdline) {
		return rt.RunCommand(cmdline[1:], output)
	}

	cmd := Command{}
	if err := parseBytes([]byte(cmdline), &cmd); err != nil {
		if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
			return err
		}
	} else {
		rt.execute(&cmd, output)
	}
	return rt.ctx.Err()
}

func (rt *CmdRunner) GetPrompt() string {
	id := rt.GetContextNodeId()
	if id == InvalidNodeId {
		return Prompt
	}
	return fmt.Sprintf("node %d%s", id, Prompt)
}

func (rt *CmdRunner) GetContextNodeId() NodeId {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	return rt.contextNodeId
}

func (rt *CmdRunner) enterNodeContext(id NodeId) bool {
	logger.AssertTrue(id == InvalidNodeId || id > 0)
	rt.lock.Lock()
	defer rt.lock.Unlock()
	if rt.contextNodeId == id {
		return false
	}
	rt.contextNodeId = id
	return true
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	rt.dispatch(cc, cmd)
	rt.outputFrameEvents(cc)
}

func (rt *CmdRunner) dispatch(cc *CommandContext, cmd *Command) {
	if cmd.Node != nil {
		rt.executeNode(cc, cmd.Node)
	} else if cmd.Nodes != nil {
		rt.executeLsNodes(cc)
	} else if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Time != nil {
		cc.outputf("%d\n", rt.sim.Now())
	} else if cmd.Move != nil {
		rt.executeMoveNode(cc, cmd.Move)
	} else if cmd.Tx != nil {
		rt.executeTx(cc, cmd.Tx)
	} else if cmd.TxNow != nil {
		rt.executeRadioOp(cc, "txnow", (*radio.Driver).TransmitNow)
	} else if cmd.Rx != nil {
		rt.executeRx(cc, cmd.Rx)
	} else if cmd.RxNow != nil {
		rt.executeRadioOp(cc, "rxnow", (*radio.Driver).ReceiveNow)
	} else if cmd.Idle != nil {
		rt.executeRadioOp(cc, "idle", (*radio.Driver).Idle)
	} else if cmd.Frame != nil {
		rt.executeFrame(cc)
	} else if cmd.Continuous != nil {
		rt.executeContinuous(cc, cmd.Continuous)
	} else if cmd.Caps != nil {
		rt.executeCaps(cc, cmd.Caps)
	} else if cmd.Eui != nil {
		rt.executeEui(cc)
	} else if cmd.Random != nil {
		cc.outputf("%08x\n", random.Get())
	} else if cmd.Aes != nil {
		rt.executeAes(cc, cmd.Aes)
	} else if cmd.Energy != nil {
		rt.executeEnergy(cc, cmd.Energy)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Exit != nil {
		rt.executeExit(cc)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

// contextNode returns the node radio commands act on.
func (rt *CmdRunner) contextNode(cc *CommandContext) *simulation.Node {
	id := rt.GetContextNodeId()
	if id == InvalidNodeId {
		cc.errorf("no node selected, use 'node <id>' first")
		return nil
	}
	node := rt.sim.Node(id)
	if node == nil {
		cc.errorf("node %d not found", id)
	}
	return node
}

func (rt *CmdRunner) executeNode(cc *CommandContext, cmd *NodeCmd) {
	node := rt.sim.Node(cmd.Node.Id)
	if node == nil {
		// 'node 0' leaves the node context
		if cmd.Node.Id == 0 && rt.enterNodeContext(InvalidNodeId) {
			return
		}
		cc.errorf("node %d not found", cmd.Node.Id)
		return
	}

	if cmd.Command == nil {
		rt.enterNodeContext(node.Id)
		return
	}

	inner := Command{}
	if err := parseBytes([]byte(*cmd.Command), &inner); err != nil {
		cc.error(err)
		return
	}
	if inner.Node != nil || inner.Exit != nil {
		cc.errorf("'%s' cannot run on a node", *cmd.Command)
		return
	}

	saved := rt.GetContextNodeId()
	rt.lock.Lock()
	rt.contextNodeId = node.Id
	rt.lock.Unlock()
	defer func() {
		rt.lock.Lock()
		rt.contextNodeId = saved
		rt.lock.Unlock()
	}()
	rt.dispatch(cc, &inner)
}

func (rt *CmdRunner) executeLsNodes(cc *CommandContext) {
	for _, node := range rt.sim.Nodes() {
		var line strings.Builder
		line.WriteString(fmt.Sprintf("id=%d\teui64=%v\tstate=%s", node.Id, node.Eui64.Get(), node.State()))
		if r := node.Radio(); r != nil {
			pos := r.Position()
			line.WriteString(fmt.Sprintf("\tx=%.1f\ty=%.1f", pos.X, pos.Y))
		} else {
			line.WriteString("\tcoprocessor")
		}
		cc.outputf("%s\n", line.String())
	}
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	dur, err := time.ParseDuration(cmd.Time)
	if err != nil {
		// plain numbers are seconds
		dur, err = time.ParseDuration(cmd.Time + "s")
		if err != nil {
			cc.errorf("could not parse time duration: %s", cmd.Time)
			return
		}
	}
	if dur < 0 {
		cc.errorf("negative time duration: %s", cmd.Time)
		return
	}
	<-rt.sim.Go(dur)
}

func (rt *CmdRunner) executeMoveNode(cc *CommandContext, cmd *MoveCmd) {
	node := rt.sim.Node(cmd.Target.Id)
	if node == nil {
		cc.errorf("node %d not found", cmd.Target.Id)
		return
	}
	if node.Radio() == nil {
		cc.errorf("node %d runs on a coprocessor", node.Id)
		return
	}
	node.Radio().SetPosition(simhw.Position{X: cmd.X, Y: cmd.Y})
}

func (rt *CmdRunner) executeTx(cc *CommandContext, cmd *TxCmd) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	ch, power, ok := rt.channelAndPower(cc, cmd.Channel, cmd.Power)
	if !ok {
		return
	}
	psdu, err := hex.DecodeString(cmd.Psdu)
	if err != nil {
		cc.error(errors.Wrap(err, "psdu"))
		return
	}
	if len(psdu) == 0 || len(psdu) > radio.MaxPsduLength {
		cc.errorf("psdu length %d outside [1, %d]", len(psdu), radio.MaxPsduLength)
		return
	}
	rt.checkStatus(cc, "tx", node.Driver.EnableTransmit(ch, power, psdu))
}

func (rt *CmdRunner) executeRx(cc *CommandContext, cmd *RxCmd) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	ch, ok := parseChannel(cc, cmd.Channel)
	if !ok {
		return
	}
	rt.checkStatus(cc, "rx", node.Driver.EnableReceive(ch))
}

func (rt *CmdRunner) executeRadioOp(cc *CommandContext, name string, op func(*radio.Driver) Status) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	rt.checkStatus(cc, name, op(node.Driver))
}

func (rt *CmdRunner) executeFrame(cc *CommandContext) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	buf := make([]byte, radio.MaxPsduLength)
	info := node.Driver.GetReceivedFrame(buf)
	if !info.CrcValid {
		cc.outputf("no frame\n")
		return
	}
	psdu := buf[:info.MpduLength]
	cc.outputf("len=%d\trssi=%d\tlqi=%d\tpsdu=%s\n", info.MpduLength, info.Rssi, info.Lqi,
		hex.EncodeToString(psdu))
	if mac, err := wpan.Dissect(psdu); err == nil {
		cc.outputf("%v\n", mac)
	}
}

func (rt *CmdRunner) executeContinuous(cc *CommandContext, cmd *ContinuousCmd) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	ch, power, ok := rt.channelAndPower(cc, cmd.Channel, cmd.Power)
	if !ok {
		return
	}
	mode := ContinuousTxModulated
	if cmd.Mode == "carrier" {
		mode = ContinuousTxCarrier
	}
	rt.checkStatus(cc, cmd.Mode, node.Driver.StartContinuousTransmit(mode, ch, power))
}

func (rt *CmdRunner) executeCaps(cc *CommandContext, cmd *CapsCmd) {
	if cmd.Radio == nil {
		cc.outputItemsAsYaml(rt.sim.Capabilities())
		return
	}
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	cc.outputItemsAsYaml(node.Driver.Capabilities())
}

func (rt *CmdRunner) executeEui(cc *CommandContext) {
	node := rt.contextNode(cc)
	if node == nil {
		return
	}
	cc.outputf("%v\n", node.Eui64.Get())
}

func (rt *CmdRunner) executeAes(cc *CommandContext, cmd *AesCmd) {
	data, err := hex.DecodeString(cmd.Data)
	if err != nil {
		cc.error(errors.Wrap(err, "aes"))
		return
	}
	if len(data) != aes128.BlockSize {
		cc.errorf("aes: need %d bytes, got %d", aes128.BlockSize, len(data))
		return
	}

	var block [aes128.BlockSize]byte
	copy(block[:], data)
	engine := rt.sim.Aes()
	switch cmd.Op {
	case "key":
		var key [aes128.KeySize]byte
		copy(key[:], data)
		engine.SetKey(key)
		return
	case "enc":
		engine.Encrypt(&block)
	case "dec":
		engine.Decrypt(&block)
	}
	cc.outputf("%s\n", hex.EncodeToString(block[:]))
}

func (rt *CmdRunner) executeEnergy(cc *CommandContext, cmd *EnergyCmd) {
	if cmd.Save != nil {
		cc.error(rt.sim.Meter().SaveEnergyDataToFile(energyResultsDir, cmd.Name, rt.sim.Now()))
		return
	}
	cc.error(rt.sim.WriteEnergy(cc.output))
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(level)
}

func (rt *CmdRunner) executeExit(cc *CommandContext) {
	if rt.enterNodeContext(InvalidNodeId) {
		return
	}
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}

// outputFrameEvents prints the capture callbacks queued since the previous command.
func (rt *CmdRunner) outputFrameEvents(cc *CommandContext) {
	for _, node := range rt.sim.Nodes() {
		for _, ev := range node.Drain() {
			cc.outputf("node %d: %s of frame at %dus\n", node.Id, ev.Kind, ev.Timestamp)
		}
	}
}

func (rt *CmdRunner) checkStatus(cc *CommandContext, op string, st Status) {
	if st != StatusSuccess {
		cc.errorf("%s: %v", op, st)
	}
}

func (rt *CmdRunner) channelAndPower(cc *CommandContext, ca ChannelArg, pa PowerArg) (ChannelId, PowerDbm, bool) {
	ch, ok := parseChannel(cc, ca)
	if !ok {
		return 0, 0, false
	}
	p, err := strconv.Atoi(pa.Val)
	if err != nil || p < math.MinInt8 || p > math.MaxInt8 {
		cc.errorf("invalid power: %s", pa.Val)
		return 0, 0, false
	}
	return ch, PowerDbm(p), true
}

func parseChannel(cc *CommandContext, ca ChannelArg) (ChannelId, bool) {
	if ca.Val < 0 || ca.Val > math.MaxUint8 {
		cc.errorf("invalid channel: %d", ca.Val)
		return 0, false
	}
	return ChannelId(ca.Val), true
}

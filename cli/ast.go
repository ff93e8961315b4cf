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
	"strconv"

	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Aes        *AesCmd        `  @@` //nolint
	Caps       *CapsCmd       `| @@` //nolint
	Continuous *ContinuousCmd `| @@` //nolint
	Energy     *EnergyCmd     `| @@` //nolint
	Eui        *EuiCmd        `| @@` //nolint
	Exit       *ExitCmd       `| @@` //nolint
	Frame      *FrameCmd      `| @@` //nolint
	Go         *GoCmd         `| @@` //nolint
	Help       *HelpCmd       `| @@` //nolint
	Idle       *IdleCmd       `| @@` //nolint
	LogLevel   *LogLevelCmd   `| @@` //nolint
	Move       *MoveCmd       `| @@` //nolint
	Node       *NodeCmd       `| @@` //nolint
	Nodes      *NodesCmd      `| @@` //nolint
	Random     *RandomCmd     `| @@` //nolint
	Rx         *RxCmd         `| @@` //nolint
	RxNow      *RxNowCmd      `| @@` //nolint
	Time       *TimeCmd       `| @@` //nolint
	Tx         *TxCmd         `| @@` //nolint
	TxNow      *TxNowCmd      `| @@` //nolint
}

// noinspection GoStructTag
type NodeSelector struct {
	Id int `@Int` //nolint
}

func (ns *NodeSelector) String() string {
	return strconv.Itoa(ns.Id)
}

// noinspection GoStructTag
type ChannelArg struct {
	Val int `@Int` //nolint
}

// noinspection GoStructTag
type PowerArg struct {
	Val string `@( ["-"] Int )` //nolint
}

// noinspection GoStructTag
type NodeCmd struct {
	Cmd     struct{}     `"node"`      //nolint
	Node    NodeSelector `@@`          //nolint
	Command *string      `[ @String ]` //nolint
}

// noinspection GoStructTag
type NodesCmd struct {
	Cmd struct{} `"nodes"` //nolint
}

// noinspection GoStructTag
type MoveCmd struct {
	Cmd    struct{}     `"move"`        //nolint
	Target NodeSelector `@@`            //nolint
	X      float64      `(@Int|@Float)` //nolint
	Y      float64      `(@Int|@Float)` //nolint
}

// noinspection GoStructTag
type GoCmd struct {
	Cmd  struct{} `"go"`                                 //nolint
	Time string   `@((Int|Float)["h"|"us"|"m"|"ms"|"s"])` //nolint
}

// noinspection GoStructTag
type TimeCmd struct {
	Cmd struct{} `"time"` //nolint
}

// noinspection GoStructTag
type TxCmd struct {
	Cmd     struct{}   `"tx"`    //nolint
	Channel ChannelArg `@@`      //nolint
	Power   PowerArg   `@@`      //nolint
	Psdu    string     `@String` //nolint
}

// noinspection GoStructTag
type TxNowCmd struct {
	Cmd struct{} `"txnow"` //nolint
}

// noinspection GoStructTag
type RxCmd struct {
	Cmd     struct{}   `"rx"` //nolint
	Channel ChannelArg `@@`   //nolint
}

// noinspection GoStructTag
type RxNowCmd struct {
	Cmd struct{} `"rxnow"` //nolint
}

// noinspection GoStructTag
type IdleCmd struct {
	Cmd struct{} `"idle"` //nolint
}

// noinspection GoStructTag
type FrameCmd struct {
	Cmd struct{} `"frame"` //nolint
}

// noinspection GoStructTag
type ContinuousCmd struct {
	Mode    string     `@( "carrier" | "modulated" )` //nolint
	Channel ChannelArg `@@`                           //nolint
	Power   PowerArg   `@@`                           //nolint
}

// noinspection GoStructTag
type CapsCmd struct {
	Cmd   struct{} `"caps"`       //nolint
	Radio *string  `[ @"radio" ]` //nolint
}

// noinspection GoStructTag
type EuiCmd struct {
	Cmd struct{} `"eui"` //nolint
}

// noinspection GoStructTag
type RandomCmd struct {
	Cmd struct{} `"random"` //nolint
}

// noinspection GoStructTag
type AesCmd struct {
	Cmd  struct{} `"aes"`                      //nolint
	Op   string   `@( "key" | "enc" | "dec" )` //nolint
	Data string   `@String`                    //nolint
}

// noinspection GoStructTag
type EnergyCmd struct {
	Cmd  struct{} `"energy"`    //nolint
	Save *string  `[ @"save" ]` //nolint
	Name string   `[ @String ]` //nolint
}

// noinspection GoStructTag
type LogLevelCmd struct {
	Cmd   struct{} `"log"`                                                            //nolint
	Level string   `[@( "trace"|"debug"|"info"|"warn"|"error"|"crit"|"off"|"none" )]` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func parseBytes(b []byte, cmd *Command) error {
	return commandParser.ParseBytes(b, cmd)
}

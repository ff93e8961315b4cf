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

// Package simmain is the main program of the node port simulator: it wires configuration,
// logging, the simulation, its outer surfaces and the console together.
package simmain

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/embenet/nodeport/cli"
	"github.com/embenet/nodeport/config"
	"github.com/embenet/nodeport/critsec"
	"github.com/embenet/nodeport/logger"
	"github.com/embenet/nodeport/metrics"
	"github.com/embenet/nodeport/progctx"
	"github.com/embenet/nodeport/radio/serialhw"
	"github.com/embenet/nodeport/radio/simhw"
	"github.com/embenet/nodeport/simulation"
	. "github.com/embenet/nodeport/types"
)

// paceTick is the step of virtual time when it follows the wall clock.
const paceTick = time.Millisecond

type MainArgs struct {
	ConfigFile  string
	LogLevel    string
	Seed        int64
	Pcap        string
	Serial      string
	Baud        int
	Device      string
	DeviceNode  int
	MetricsAddr string
	RealTime    bool
}

func parseArgs(fs *flag.FlagSet, argv []string) (MainArgs, error) {
	var args MainArgs
	fs.StringVar(&args.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&args.LogLevel, "log", "", "set logging level: trace, debug, info, warn, error")
	fs.Int64Var(&args.Seed, "seed", 0, "random seed of the simulation; 0 picks one")
	fs.StringVar(&args.Pcap, "pcap", "", "capture all frames to this PCAP file")
	fs.StringVar(&args.Serial, "serial", "", "drive a radio coprocessor on this serial port instead of simulating")
	fs.IntVar(&args.Baud, "baud", serialhw.DefaultBaudRate, "baud rate of the serial ports")
	fs.StringVar(&args.Device, "device", "", "serve a simulated radio as coprocessor on this serial port")
	fs.IntVar(&args.DeviceNode, "device-node", MaxNodeId, "node id of the radio served with -device")
	fs.StringVar(&args.MetricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&args.RealTime, "realtime", false, "advance the simulation along with the wall clock")
	err := fs.Parse(argv)
	return args, err
}

// loadConfig reads the configuration and applies the command line overrides.
func loadConfig(args *MainArgs) (*config.Config, error) {
	cfg := config.Default()
	if args.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(args.ConfigFile); err != nil {
			return nil, err
		}
	}

	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.Seed != 0 {
		cfg.Sim.Seed = args.Seed
	}
	if args.Pcap != "" {
		cfg.Sim.Pcap = args.Pcap
		if cfg.Sim.PcapType == "" {
			cfg.Sim.PcapType = "wpan-tap"
		}
	}
	if args.Serial != "" {
		cfg.Serial.Port = args.Serial
		cfg.Serial.Baud = args.Baud
		cfg.Sim.Nodes = nil
	}
	if args.MetricsAddr != "" {
		cfg.Metrics.Listen = args.MetricsAddr
	}
	if args.Device != "" && args.Serial != "" {
		return nil, errors.New("-device and -serial exclude each other")
	}
	if args.DeviceNode <= InvalidNodeId || args.DeviceNode > MaxNodeId {
		return nil, errors.Errorf("invalid device node id %d", args.DeviceNode)
	}
	return cfg, cfg.Validate()
}

func Main(ctx *progctx.ProgCtx, cliOptions *cli.CliOptions) {
	args, err := parseArgs(flag.CommandLine, os.Args[1:])
	logger.FatalIfError(err)
	cfg, err := loadConfig(&args)
	logger.FatalfIfError(err, "configuration: %v", err)

	level, _ := logger.ParseLevelString(cfg.Log.Level)
	logger.SetLevel(level)
	if len(cfg.Log.Output) > 0 {
		logger.SetOutput(cfg.Log.Output)
	}

	handleSignals(ctx)

	collector := metrics.NewCollector()
	sim, err := createSimulation(ctx, cfg, collector)
	if err != nil {
		logger.Fatalf("simulation: %v", err)
	}

	if cfg.Metrics.Listen != "" {
		reg := metrics.NewRegistry(collector, metrics.NewEnergyCollector(sim.Meter(), sim.Now))
		ctx.Go("metrics", func(c context.Context) error {
			return metrics.Serve(c, cfg.Metrics.Listen, reg)
		})
	}

	if args.Device != "" {
		port, err := serialhw.OpenPort(args.Device, args.Baud)
		logger.FatalIfError(err)
		ctx.Go("device", func(c context.Context) error {
			return sim.ServeDevice(c, port, args.DeviceNode, simhw.Position{})
		})
	}
	if (args.RealTime || args.Device != "") && !sim.IsReal() {
		ctx.Go("pace", func(c context.Context) error {
			return sim.Pace(c, paceTick)
		})
	}

	ctx.Defer(func() {
		_ = os.Stdin.Close()
	})

	rt := cli.NewCmdRunner(ctx, sim)
	console := cli.NewCliInstance()
	logger.SetStdoutCallback(console)
	err = console.Run(rt, cliOptions)
	if err != nil && ctx.Err() == nil {
		ctx.Cancel(errors.Wrap(err, "console exit"))
	} else {
		ctx.Cancel("console exit")
	}

	logger.Debugf("waiting for the simulator to stop gracefully ...")
	ctx.Wait()
}

// createSimulation builds the simulated network, or the single node of a coprocessor.
func createSimulation(ctx *progctx.ProgCtx, cfg *config.Config, collector *metrics.Collector) (*simulation.Simulation, error) {
	if cfg.Serial.Port == "" {
		return simulation.NewSimulation(ctx, cfg, collector)
	}

	ctrl := critsec.NewController()
	link, err := serialhw.Dial(cfg.Serial.Port, cfg.Serial.Baud, ctrl)
	if err != nil {
		return nil, err
	}
	// the nodes release the radio before the link goes down
	ctx.Defer(func() {
		_ = link.Hangup()
	})
	if err = link.Sync(); err != nil {
		return nil, errors.Wrap(err, "coprocessor")
	}

	sim, err := simulation.NewSimulation(ctx, cfg, collector)
	if err != nil {
		return nil, err
	}
	if _, err = sim.AddCoprocessorNode(1, link, ctrl); err != nil {
		return nil, err
	}
	return sim, nil
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer logger.Debugf("handleSignals exit.")
		defer ctx.WaitDone("handleSignals")

		select {
		case sig := <-c:
			logger.Infof("signal received: %v", sig)
			ctx.Cancel(errors.Errorf("signal %v", sig))
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
}

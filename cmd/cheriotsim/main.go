/*
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/cheriot32/simcore/internal/archstate"
	config "github.com/cheriot32/simcore/internal/config"
	logger "github.com/cheriot32/simcore/internal/logger"
	"github.com/cheriot32/simcore/internal/retire"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optCount := getopt.Uint64Long("count", 'n', 0, "Stop after this many retired instructions (0: unbounded)")
	optPC := getopt.StringLong("pc", 'p', "", "Override reset vector (hex)")
	optTraceVersion := getopt.IntLong("trace-version", 't', 0, "Retirement trace version (1 or 2, 0: use config)")
	optDebug := getopt.BoolLong("debug", 'd', "Also echo log output to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file io.Writer
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			os.Stderr.WriteString("could not create log file: " + err.Error() + "\n")
			os.Exit(1)
		}
		file = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(Logger)

	Logger.Info("cheriotsim started")

	if *optConfig != "" {
		if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
			Logger.Error("configuration file not found", "path", *optConfig)
			os.Exit(1)
		}
		if err := config.LoadConfigFile(*optConfig); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}

	settings := config.Current()

	cfg := archstate.Config{
		MaxPhys:          settings.MemSize,
		ResetVector:      settings.ResetVector,
		EnableVector:     settings.ExtV,
		EnableFloat:      settings.ExtF,
		EnableCompressed: settings.ExtC,
	}
	if *optPC != "" {
		v, err := parseHex32(*optPC)
		if err != nil {
			Logger.Error("invalid -pc value", "value", *optPC)
			os.Exit(1)
		}
		cfg.ResetVector = v
	}

	s := archstate.New(cfg)

	version := settings.TraceVersion
	if *optTraceVersion != 0 {
		version = *optTraceVersion
	}
	adapter := retire.NewAdapter()
	adapter.Version = version
	adapter.Strict = settings.StrictTrace

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runTestRig(ctx, s, adapter, *optCount)

	Logger.Info("cheriotsim stopped", "retired", s.InstRetired())
}

// parseHex32 accepts a bare or 0x-prefixed 32-bit hex value.
func parseHex32(v string) (uint32, error) {
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	n, err := strconv.ParseUint(v, 16, 32)
	return uint32(n), err
}

// runTestRig drives the per-instruction Step procedure over a stream of
// instruction packets read from stdin, writing the resulting execution,
// reset, or version packets to stdout. This mirrors the original test
// rig's socket-framed protocol (cheriot_test_rig_main.cc), substituting
// stdin/stdout for the trace socket: a CLI entry point has no listener to
// accept connections on, so the packet framing is what's carried forward
// here, not the socket transport. A CmdEndOfTrace command resets the
// architectural state and replies with a halt-coded reset packet but does
// not end the loop, matching the original: EOF on the input stream, the
// retired-instruction count limit, or cancellation of ctx stops it.
func runTestRig(ctx context.Context, s *archstate.ArchState, adapter *retire.Adapter, maxCount uint64) {
	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var order uint64
	buf := make([]byte, retire.InstructionPacketSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if maxCount != 0 && order >= maxCount {
			return
		}

		if _, err := io.ReadFull(in, buf); err != nil {
			return
		}
		pkt := retire.UnmarshalInstructionPacket(buf)

		switch pkt.Cmd {
		case retire.CmdEndOfTrace:
			// cheriot_test_rig_main.cc's read loop does not exit on
			// kEndOfTrace: Reset() replies and the loop keeps reading,
			// relying on EOF (zero bytes read) to actually stop.
			halt := adapter.HandleEndOfTrace(s, pkt.Insn)
			if adapter.Version >= 2 {
				rp := retire.NewResetPacketV2(halt)
				out.Write(rp.Marshal())
			} else {
				rp := retire.NewResetPacketV1(halt)
				out.Write(rp.Marshal())
			}
			out.Flush()
			order = 0

		case retire.CmdInstruction:
			order++
			ep := adapter.Step(s, pkt.Insn, order)
			out.Write(ep.Marshal())

		case retire.CmdSetVersion:
			reply := adapter.HandleSetVersion(pkt.Insn)
			out.Write(reply.Marshal())
			out.Flush()

		default:
			Logger.Warn("unknown trace command, ignored", "cmd", pkt.Cmd)
		}
	}
}

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/mxprint/internal/dispatch"
	"github.com/danmuck/mxprint/internal/logging"
	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9600", "device address")
	cmdName := flag.String("cmd", "status", "command name or id (e.g. status, 0xA2)")
	payloadHex := flag.String("payload", "", "payload as hex, spaces allowed")
	chunk := flag.Int("chunk", 0, "split the frame into writes of this many bytes")
	magic := flag.Uint("magic", uint(frame.DefaultMagic), "frame magic")
	wait := flag.Bool("wait", false, "wait for one reply (implied for status)")
	timeout := flag.Duration("timeout", 5*time.Second, "overall timeout")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(*addr, *cmdName, *payloadHex, *chunk, uint16(*magic), *wait, *timeout); err != nil {
		log.Error().Err(err).Msg("mxprintctl failed")
		os.Exit(1)
	}
}

func run(addr, cmdName, payloadHex string, chunk int, magic uint16, wait bool, timeout time.Duration) error {
	cmd, err := protocol.ParseCommand(cmdName)
	if err != nil {
		return err
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(payloadHex, " ", ""))
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := transport.Dial(ctx, addr, magic)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(ctx, cmd, payload, chunk); err != nil {
		return err
	}
	fmt.Printf("sent %s(%02x) %d bytes\n", cmd, uint8(cmd), frame.Size(len(payload)))

	if !wait && cmd != protocol.CmdStatus {
		return nil
	}
	ev, err := c.ReadEvent(ctx)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if ev.Err != nil {
		return fmt.Errorf("reply %s: %w", ev.Command(), ev.Err)
	}
	fmt.Printf("reply %s(%02x) dir=%d %s\n", ev.Command(), uint8(ev.Command()), ev.Header.Direction, dispatch.FormatHex(ev.Payload, 0))
	return nil
}

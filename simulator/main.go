// Command simulator stands in for the MQTT relay board so the mixer can be
// run without hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newMQTTClient(cfg.Broker, cfg.ClientID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer cli.Disconnect(250)

	board := NewBoard(cfg.Channels, cfg.FlowMLPerSecond, cfg.FailChannels)
	if err := serve(cli, cfg.TopicPrefix, board); err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("relay board %s with %d channels on %s\n", cfg.TopicPrefix, cfg.Channels, cfg.Broker)

	var tick <-chan time.Time
	if cfg.ReportEvery > 0 {
		t := time.NewTicker(cfg.ReportEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			report(board)
			return
		case <-tick:
			report(board)
		}
	}
}

func report(b *Board) {
	poured := b.Poured()
	chs := make([]int, 0, len(poured))
	for ch := range poured {
		chs = append(chs, ch)
	}
	sort.Ints(chs)
	for _, ch := range chs {
		fmt.Printf("channel %2d: %.1f ml\n", ch, poured[ch])
	}
}

func parseFlags(args []string) (Config, error) {
	var cfg Config
	var fail string
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	fs.StringVar(&cfg.ClientID, "client-id", "", "MQTT client id (random when empty)")
	fs.StringVar(&cfg.TopicPrefix, "topic-prefix", "mixbot", "MQTT topic prefix")
	fs.IntVar(&cfg.Channels, "channels", 19, "number of relays")
	fs.Float64Var(&cfg.FlowMLPerSecond, "flow", 2, "pump flow in ml/s")
	fs.StringVar(&fail, "fail", "", "comma separated relays that never switch on")
	fs.DurationVar(&cfg.ReportEvery, "report", 0, "print poured volumes at this interval")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "relay-sim-" + uuid.NewString()
	}
	for _, s := range strings.Split(fail, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		ch, err := strconv.Atoi(s)
		if err != nil {
			return cfg, fmt.Errorf("bad relay %q", s)
		}
		cfg.FailChannels = append(cfg.FailChannels, ch)
	}
	return cfg, nil
}

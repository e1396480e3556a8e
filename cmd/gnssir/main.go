// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

// Replay driver for the gnssir core. The bit-level decoder and network
// transport live outside this repository; this command stands in for them by
// reading already-decoded per-satellite update records as JSON lines and
// feeding the pipeline, printing one solution line per epoch.

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	m "github.com/mkhts/gnssir"
)

type cmdOpt struct {
	confFn  string
	inFn    string
	promAdr string
	debug   bool
}

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
		os.Exit(1)
	}
}

func parseArgs() (cmdOpt, error) {
	var args cmdOpt
	flag.StringVar(&args.confFn, "conf", "", "configuration file (YAML)")
	flag.StringVar(&args.inFn, "in", "", "decoded record file (JSON lines); stdin if omitted")
	flag.StringVar(&args.promAdr, "prom", "", "address to serve Prometheus metrics on, e.g. :9090")
	flag.BoolVar(&args.debug, "d", false, "debug logging")
	flag.Parse()
	return args, nil
}

// Main application processing
func runApplication(args cmdOpt) error {

	log := newLogger(args.debug)

	// Load configuration
	cfg := m.NewConfig()
	if args.confFn != "" {
		var err error
		cfg, err = m.LoadConfig(args.confFn)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	// Open input
	in, err := openInput(args)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	// Build the pipeline
	pipe, err := m.NewPipeline(cfg, log)
	if err != nil {
		return err
	}

	// Serve metrics if requested
	if args.promAdr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.MetricsHandler())
			if err := http.ListenAndServe(args.promAdr, mux); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Process epochs
	if err := processEpochs(cfg, pipe, in, os.Stdout, log); err != nil {
		return err
	}

	// Final statistics
	stats := pipe.Stats()
	for name, s := range stats.Streams {
		log.Info("stream done", "stream", name, "ingested", s.Ingested, "drops", s.Drops)
	}
	log.Info("solve done",
		"epochs", stats.Solve.TotalEpochs,
		"fixed", stats.Solve.FixedCount,
		"uncertain", stats.Solve.UncertainCount,
		"nofix", stats.Solve.NoFixCount,
		"fix_rate", fmt.Sprintf("%.1f%%", stats.Solve.FixRate()))

	return nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Open input file, or stdin if none given
func openInput(args cmdOpt) (io.ReadCloser, error) {
	if args.inFn == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(args.inFn)
}

// processEpochs replays decoded records grouped by epoch time and runs one
// pipeline cycle per epoch, printing the resulting solution.
func processEpochs(cfg *m.Config, pipe *m.Pipeline, in io.Reader, out io.Writer, log *slog.Logger) error {

	printPosHeader(out)

	defStream := cfg.Streams[0].Name
	var cur m.GTime
	pending := false

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec m.UpdateRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Warn("skipping malformed record", "error", err)
			continue
		}
		if rec.Stream == "" {
			rec.Stream = defStream
		}

		// New epoch: run one cycle over everything ingested so far
		if pending && (rec.Time.Week != cur.Week || rec.Time.Sec != cur.Sec) {
			pipe.Cycle(time.Now())
			printPos(out, pipe.LastSolution())
		}
		cur = rec.Time
		pending = true

		pipe.Ingest(rec.Stream, rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("input read failed: %w", err)
	}

	// Last epoch
	if pending {
		pipe.Cycle(time.Now())
		printPos(out, pipe.LastSolution())
	}

	return nil
}

func printPosHeader(out io.Writer) {
	fmt.Fprintf(out, "%% week      tow           lat           lon         hei     clk[m]  ns  status     pdop   sigma\n")
}

func printPos(out io.Writer, sol *m.Solution) {
	if sol == nil {
		return
	}
	fmt.Fprintf(out, "%6d %10.3f %13.8f %13.8f %10.3f %10.3f %3d %-10s %6.2f %7.3f\n",
		sol.Time.Week, sol.Time.Sec,
		m.ToDeg(sol.LLH.Lat), m.ToDeg(sol.LLH.Lon), sol.LLH.Hei,
		sol.ClockBias, sol.NumSats, sol.Status, sol.Pdop, sol.Sigma2)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/llcsim/bus"
	"github.com/sarchlab/llcsim/llc"
	"github.com/sarchlab/llcsim/logging"
	"github.com/sarchlab/llcsim/record"
	"github.com/sarchlab/llcsim/trace"
)

var (
	traceFile        string
	capacityMiB      int
	lineSize         int
	associativity    int
	protocol         string
	addressWidth     int
	invalidatePolicy string
	recordName       string
	silent           bool
	debug            bool

	runInvoked bool
)

var rootCmd = &cobra.Command{
	Use:           "llcsim",
	Short:         "llcsim simulates a shared, inclusive last-level cache over a command trace.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&traceFile, "file", "f", "data/trace.txt",
		"path to the trace file to process")
	flags.IntVar(&capacityMiB, "capacity", 16,
		"total last-level cache capacity in MiB")
	flags.IntVar(&lineSize, "line_size", 64,
		"size of each cache line in bytes (4, 16, 32, 64, or 128)")
	flags.IntVar(&associativity, "associativity", 16,
		"number of ways in the set-associative cache (1, 2, 4, 8, 16, or 32)")
	flags.StringVar(&protocol, "protocol", "MESI",
		"cache coherence protocol (MESI; MSI is not implemented)")
	flags.IntVar(&addressWidth, "address_size", 32,
		"address width in bits")
	flags.StringVar(&invalidatePolicy, "invalidate_policy", "keep",
		"snooped-invalidate policy for Modified/Exclusive lines (keep or drop)")
	flags.StringVar(&recordName, "record", "",
		"record bus traffic and statistics into <name>.sqlite3")
	flags.Lookup("record").NoOptDefVal = "auto"
	flags.BoolVarP(&silent, "silent", "s", false, "reduce program output")
	flags.BoolVarP(&debug, "debug", "d", false, "enable debug output")
}

// Execute runs the root command and maps errors to exit codes: 2 for
// argument and configuration errors, 1 for runtime failures.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		atexit.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "llcsim: %v\n", err)

	var cfgErr *llc.ConfigError
	if errors.As(err, &cfgErr) || !runInvoked {
		atexit.Exit(2)
	}
	atexit.Exit(1)
}

func run(cmd *cobra.Command, _ []string) (err error) {
	runInvoked = true

	defer func() {
		if p := recover(); p != nil {
			fmt.Fprintf(os.Stderr, "llcsim: internal error: %v\n", p)
			atexit.Exit(1)
		}
	}()

	applyEnvDefaults(cmd)

	if err := validateFlags(); err != nil {
		return err
	}

	level := logging.Normal
	switch {
	case silent:
		level = logging.Silent
	case debug:
		level = logging.Debug
	}
	logger := logging.New(level, os.Stdout, os.Stderr)

	// Geometry inconsistencies exit as runtime failures, not argument
	// errors.
	geometry, err := llc.MakeGeometry(
		uint64(capacityMiB)<<20, lineSize, associativity, addressWidth)
	if err != nil {
		return fmt.Errorf("invalid cache geometry: %v", err)
	}

	bridge := bus.NewBridge(logger)

	var busConn llc.BusConnector = bridge
	var l1Conn llc.L1Messenger = bridge
	var recorder *record.Recorder
	if recordName != "" {
		name := recordName
		if name == "auto" {
			name = ""
		}
		recorder, err = record.Open(name)
		if err != nil {
			return err
		}
		busConn = record.TraceBus(bridge, recorder)
		l1Conn = record.TraceL1(bridge, recorder)
	}

	policy := llc.KeepOnRemoteInvalidate
	if invalidatePolicy == "drop" {
		policy = llc.DropOnRemoteInvalidate
	}

	comp := llc.MakeBuilder().
		WithGeometry(geometry).
		WithInvalidatePolicy(policy).
		WithBus(busConn).
		WithSnoopResponder(bridge).
		WithL1(l1Conn).
		WithLogger(logger).
		Build("LLC")

	f, err := os.Open(traceFile)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	if err := runTrace(comp, f); err != nil {
		return err
	}

	logger.Printf("%s", comp.Stats().Report())

	if recorder != nil {
		recorder.RecordStats(comp.Stats())
		if err := recorder.Close(); err != nil {
			return fmt.Errorf("close recording database: %w", err)
		}
	}

	return nil
}

// runTrace feeds every record of the trace to the engine. Malformed
// records and unknown command codes are reported and skipped.
func runTrace(comp *llc.Comp, r io.Reader) error {
	parser := trace.NewParser(r, addressWidth)
	skipped := 0

	for {
		rec, err := parser.Next()
		if err == io.EOF {
			break
		}

		var parseErr *trace.ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(os.Stderr, "llcsim: %v (skipped)\n", parseErr)
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}

		err = comp.Execute(rec.Code, rec.Addr)

		var unknownErr *llc.UnknownCommandError
		if errors.As(err, &unknownErr) {
			fmt.Fprintf(os.Stderr, "llcsim: trace line %d: %v (skipped)\n",
				rec.Line, unknownErr)
			skipped++
			continue
		}
		if err != nil {
			return err
		}
	}

	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "llcsim: skipped %d malformed or unknown trace record(s)\n", skipped)
	}

	return nil
}

// applyEnvDefaults overrides built-in defaults with environment variables
// (optionally loaded from a .env file) for flags the user did not set.
func applyEnvDefaults(cmd *cobra.Command) {
	godotenv.Load()

	setInt := func(flag, env string, dst *int) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("capacity", "CACHE_CAPACITY_MB", &capacityMiB)
	setInt("line_size", "CACHE_LINE_SIZE", &lineSize)
	setInt("associativity", "CACHE_ASSOCIATIVITY", &associativity)
	setInt("address_size", "CACHE_ADDRESS_SIZE", &addressWidth)

	if !cmd.Flags().Changed("protocol") {
		if v, ok := os.LookupEnv("CACHE_PROTOCOL"); ok {
			protocol = v
		}
	}
}

func validateFlags() error {
	if silent && debug {
		return llc.NewConfigError("--silent and --debug are mutually exclusive")
	}

	switch protocol {
	case "MESI":
	case "MSI":
		return llc.NewConfigError("protocol MSI is not implemented")
	default:
		return llc.NewConfigError(
			fmt.Sprintf("unsupported protocol %q", protocol))
	}

	if !oneOf(lineSize, 4, 16, 32, 64, 128) {
		return llc.NewConfigError(
			fmt.Sprintf("line size %d is not one of 4, 16, 32, 64, 128", lineSize))
	}
	if !oneOf(associativity, 1, 2, 4, 8, 16, 32) {
		return llc.NewConfigError(
			fmt.Sprintf("associativity %d is not one of 1, 2, 4, 8, 16, 32", associativity))
	}
	if capacityMiB <= 0 {
		return llc.NewConfigError(
			fmt.Sprintf("capacity %d MiB is not positive", capacityMiB))
	}

	switch invalidatePolicy {
	case "keep", "drop":
	default:
		return llc.NewConfigError(
			fmt.Sprintf("invalidate policy %q is not keep or drop", invalidatePolicy))
	}

	return nil
}

func oneOf(v int, choices ...int) bool {
	for _, c := range choices {
		if v == c {
			return true
		}
	}

	return false
}

// Command ox-fetch reads addresses as JSON lines and writes one JSON line per
// result of the selected data endpoint.
//
// Usage:
//
//	ox-fetch -endpoint rental-comps -in addresses.jsonl -out comps.jsonl
//
// Settings come from flags, then the YAML file named by -config, then the
// environment (OX_CONFIG, OX_METRICS_ADDR, OPEN_EXCHANGE_API_KEY).
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/batch"
	"github.com/Sternrassler/open-exchange-client/pkg/client"
	"github.com/Sternrassler/open-exchange-client/pkg/data"
	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/Sternrassler/open-exchange-client/pkg/metrics"
	"github.com/rs/zerolog"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// maxLineSize bounds one input line.
const maxLineSize = 1 << 20

// Endpoint names accepted by -endpoint.
const (
	endpointPropertyDetails = "property-details"
	endpointPropertyValues  = "property-values"
	endpointRentEstimates   = "rent-estimates"
	endpointRentalComps     = "rental-comps"
)

type options struct {
	configPath    string
	endpoint      string
	in            string
	out           string
	filtersPath   string
	maxPerRequest int
	numComps      int
	order         string
	workers       int
	metricsAddr   string
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "ox-fetch: %v\n", err)
		return exitUsage
	}

	fc := &client.FileConfig{}
	if opts.configPath != "" {
		if fc, err = client.LoadConfigFile(opts.configPath); err != nil {
			fmt.Fprintf(stderr, "ox-fetch: %v\n", err)
			return exitUsage
		}
	}

	logCfg := fc.LoggingConfig()
	logCfg.Output = stderr
	if opts.logLevel != "" {
		logCfg.Level = logging.ParseLevel(opts.logLevel)
	}
	logging.Setup(logCfg)
	logger := logging.NewLogger(logging.ComponentCLI)

	cfg := fc.ClientConfig()
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if cfg.Redis != nil {
		defer cfg.Redis.Close()
	}

	c, err := client.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create client")
		return exitUsage
	}
	defer c.Close()

	if opts.metricsAddr != "" {
		srv := startMetricsServer(opts.metricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	in := stdin
	if opts.in != "" && opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open input")
			return exitUsage
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if opts.out != "" && opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create output")
			return exitUsage
		}
		defer f.Close()
		out = f
	}

	d := data.New(c, data.Config{Workers: c.Config().Workers})
	defer d.Close()

	w := bufio.NewWriter(out)

	var readErr error
	addresses := readAddresses(in, &readErr)

	start := time.Now()
	var st stats
	switch opts.endpoint {
	case endpointPropertyDetails:
		st, err = writeResults(w, d.PropertyDetails.Fetch(ctx, addresses, data.FetchOptions{MaxAddressesPerRequest: opts.maxPerRequest}))
	case endpointPropertyValues:
		st, err = writeResults(w, d.PropertyValues.Fetch(ctx, addresses, data.FetchOptions{MaxAddressesPerRequest: opts.maxPerRequest}))
	case endpointRentEstimates:
		st, err = writeResults(w, d.RentEstimates.Fetch(ctx, addresses, data.FetchOptions{MaxAddressesPerRequest: opts.maxPerRequest}))
	case endpointRentalComps:
		var rco data.RentalCompsOptions
		rco, err = rentalCompsOptions(opts)
		if err != nil {
			logger.Error().Err(err).Msg("Invalid rental comps options")
			return exitUsage
		}
		st, err = writeResults(w, d.RentalComps.Fetch(ctx, addresses, rco))
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write results")
		return exitFailed
	}
	if readErr != nil {
		logger.Error().Err(readErr).Msg("Failed to read addresses")
		return exitFailed
	}

	logger.Info().
		Str("endpoint", opts.endpoint).
		Int("results", st.results).
		Int("errors", st.errors).
		Dur("duration", time.Since(start)).
		Msg("Fetch finished")

	if st.errors > 0 {
		return exitFailed
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ox-fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", getEnv("OX_CONFIG", ""), "YAML config file")
	fs.StringVar(&opts.endpoint, "endpoint", "", "property-details, property-values, rent-estimates or rental-comps")
	fs.StringVar(&opts.in, "in", "-", "input file of JSON-line addresses (- for stdin)")
	fs.StringVar(&opts.out, "out", "-", "output file of JSON-line results (- for stdout)")
	fs.StringVar(&opts.filtersPath, "filters", "", "JSON file with rental comps filters")
	fs.IntVar(&opts.maxPerRequest, "max-per-request", 0, "addresses per request (default: endpoint maximum)")
	fs.IntVar(&opts.numComps, "num-comps", data.DefaultNumComps, "comps per address")
	fs.StringVar(&opts.order, "order", "submission", "result order: submission or completion")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent requests (default: config file or 4)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", getEnv("OX_METRICS_ADDR", ""), "serve /metrics and /health on this address")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or disabled")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.endpoint {
	case endpointPropertyDetails, endpointPropertyValues, endpointRentEstimates, endpointRentalComps:
	case "":
		return opts, errors.New("-endpoint is required")
	default:
		return opts, fmt.Errorf("unknown endpoint %q", opts.endpoint)
	}
	if _, err := parseOrder(opts.order); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseOrder(s string) (batch.Order, error) {
	switch s {
	case "", "submission":
		return batch.SubmissionOrder, nil
	case "completion":
		return batch.CompletionOrder, nil
	default:
		return 0, fmt.Errorf("unknown order %q", s)
	}
}

func rentalCompsOptions(opts options) (data.RentalCompsOptions, error) {
	order, err := parseOrder(opts.order)
	if err != nil {
		return data.RentalCompsOptions{}, err
	}
	rco := data.RentalCompsOptions{
		MaxAddressesPerRequest: opts.maxPerRequest,
		NumComps:               opts.numComps,
		Order:                  order,
	}
	if opts.filtersPath == "" {
		return rco, nil
	}

	raw, err := os.ReadFile(opts.filtersPath)
	if err != nil {
		return rco, fmt.Errorf("read filters: %w", err)
	}
	var filters data.Filters
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&filters); err != nil {
		return rco, fmt.Errorf("decode filters %s: %w", opts.filtersPath, err)
	}
	rco.Filters = &filters
	return rco, nil
}

// readAddresses yields one address per non-empty input line. The first read
// or decode error is stored in errp and ends the sequence.
func readAddresses(r io.Reader, errp *error) iter.Seq[data.Address] {
	return func(yield func(data.Address) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(bytes.TrimSpace(text)) == 0 {
				continue
			}
			var a data.Address
			if err := json.Unmarshal(text, &a); err != nil {
				*errp = fmt.Errorf("line %d: %w", line, err)
				return
			}
			if !yield(a) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			*errp = fmt.Errorf("read input: %w", err)
		}
	}
}

type stats struct {
	results int
	errors  int
}

type errorLine struct {
	Error  string   `json:"error"`
	Tokens []string `json:"tokens,omitempty"`
}

// writeResults encodes every result or chunk error as one JSON line. An error
// line lists the tokens of the failed chunk.
func writeResults[R any](w io.Writer, results iter.Seq2[R, error]) (stats, error) {
	var st stats
	enc := json.NewEncoder(w)
	for result, err := range results {
		if err != nil {
			st.errors++
			line := errorLine{Error: err.Error()}
			var ce *data.ChunkError
			if errors.As(err, &ce) {
				line.Tokens = ce.Tokens
			}
			if encErr := enc.Encode(line); encErr != nil {
				return st, encErr
			}
			continue
		}
		st.results++
		if err := enc.Encode(result); err != nil {
			return st, err
		}
	}
	return st, nil
}

func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

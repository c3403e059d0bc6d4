// Command spikes reads daily crash counts and reports the channels and
// signatures that spiked on the last day.
//
// Usage:
//
//	spikes <channels|signatures|outliers|startup|version> [-config file] [-input file]
//
// The input is a YAML document:
//
//	date: 2016-06-10
//	channels:
//	  nightly: [10, 20, 15, 9, 14, 17, 50]
//	signatures:
//	  nightly:
//	    "OOM | small": [12, 10, 11, 13, 12, 11, 60]
//
// Reports are written to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mozilla/spikes/internal/config"
	"github.com/mozilla/spikes/internal/spikes"
	"github.com/mozilla/spikes/internal/spikes/anomaly"
	"github.com/mozilla/spikes/internal/spikes/differ"
	"github.com/mozilla/spikes/internal/spikes/series"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: spikes <command> [flags]

commands:
  channels     classify the last day of every channel
  signatures   find the spiking signatures of every channel
  outliers     screen every channel's signatures for day-over-day outliers
  startup      outliers of the channels going up
  version      print version information and exit
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// input is the YAML document read by every command.
type input struct {
	Date       time.Time                `yaml:"date"`
	Channels   map[string][]float64     `yaml:"channels"`
	Signatures map[string]series.Cohort `yaml:"signatures"`
}

type options struct {
	configPath  string
	inputPath   string
	diagnostics bool
	differ      string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "spikes %s\n", version)
		return 0
	case "channels", "signatures", "outliers", "startup":
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	var opts options
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to configuration file")
	fs.StringVar(&opts.inputPath, "input", "-", "path to the input document, - for stdin")
	fs.BoolVar(&opts.diagnostics, "diagnostics", false, "include the baseline bands of every channel")
	fs.StringVar(&opts.differ, "differ", "", "override analysis.outliers.differ")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	v, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if f := v.ConfigFileUsed(); f != "" {
		logger.Debug("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	}

	cfg, err := config.Analysis(v)
	if err != nil {
		logger.Error("invalid analysis configuration", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	analyzer, err := spikes.New(cfg, logger.Named("spikes"), reg)
	if err != nil {
		logger.Error("failed to create analyzer", zap.Error(err))
		return 1
	}

	in, err := readInput(opts.inputPath, stdin)
	if err != nil {
		logger.Error("failed to read input", zap.String("input", opts.inputPath), zap.Error(err))
		return 1
	}

	report, err := execute(ctx, cmd, analyzer, in, opts)
	if err != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", zap.Error(err))
		return 1
	}

	if path := v.GetString("metrics.textfile"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
		}
	}
	return 0
}

func readInput(path string, stdin io.Reader) (input, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return input{}, err
		}
		defer f.Close()
		r = f
	}

	var in input
	if err := yaml.NewDecoder(r).Decode(&in); err != nil && err != io.EOF {
		return input{}, fmt.Errorf("decoding input: %w", err)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}
	in.Date = series.Day(in.Date)
	return in, nil
}

// channelReport is a Classification plus its plotting data.
type channelReport struct {
	anomaly.Classification
	Points []series.Point `json:"points,omitempty"`
	Range  *labelledBands `json:"bands,omitempty"`
}

type labelledBands struct {
	Center []series.Point `json:"center"`
	Upper  []series.Point `json:"upper"`
	Lower  []series.Point `json:"lower"`
}

func execute(ctx context.Context, cmd string, a *spikes.Analyzer, in input, opts options) (any, error) {
	switch cmd {
	case "channels":
		classified, err := a.ChannelSpikes(ctx, in.Channels)
		if err != nil {
			return nil, err
		}
		out := make(map[string]channelReport, len(classified))
		for channel, c := range classified {
			r := channelReport{Classification: c}
			if opts.diagnostics {
				r.Points = series.Labelled(in.Date, in.Channels[channel])
				r.Range = bandsOf(c, in.Date)
			}
			out[channel] = r
		}
		return out, nil

	case "signatures":
		return a.Signatures(ctx, in.Signatures)

	case "outliers":
		fn := differ.Func(nil)
		if opts.differ != "" {
			var err error
			if fn, err = differ.ByName(opts.differ, a.Config().Outliers.NDays); err != nil {
				return nil, err
			}
		}
		out := make(map[string]spikes.OutlierResult, len(in.Signatures))
		for channel, cohort := range in.Signatures {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if fn != nil {
				out[channel] = a.OutliersWith(cohort, fn)
			} else {
				out[channel] = a.Outliers(cohort)
			}
		}
		return out, nil

	case "startup":
		return a.Startup(ctx, in.Channels, in.Signatures)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

// bandsOf labels the normal range of c. The baseline covers the days up to
// yesterday.
func bandsOf(c anomaly.Classification, today time.Time) *labelledBands {
	if len(c.Baseline.Level) == 0 {
		return nil
	}
	b := c.Bands()
	yesterday := today.AddDate(0, 0, -1)
	return &labelledBands{
		Center: series.Labelled(yesterday, b.Center),
		Upper:  series.Labelled(yesterday, b.Upper),
		Lower:  series.Labelled(yesterday, b.Lower),
	}
}

package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/odvcencio/sniffers/internal/config"
	"github.com/odvcencio/sniffers/internal/logging"
	"github.com/odvcencio/sniffers/internal/metrics"
	"github.com/odvcencio/sniffers/pkg/digest"
	"github.com/odvcencio/sniffers/pkg/ignore"
	"github.com/odvcencio/sniffers/pkg/sniffer"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	store       string
	algorithm   string
	compress    bool
	ignoreFile  string
	logLevel    string
	logFile     string
	metricsFile string
}

func (o *globalOptions) bind(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "config file (default "+config.DefaultFile+" if present)")
	f.StringVar(&o.store, "store", "", "fingerprint store file (default "+config.Default().Store+")")
	f.StringVar(&o.algorithm, "algorithm", "", "digest algorithm: sha256, blake2b, sha3, blake3")
	f.BoolVar(&o.compress, "compress", false, "write the store as a zstd frame")
	f.StringVar(&o.ignoreFile, "ignore-file", "", "ignore file, relative to the walk root (default "+ignore.DefaultFile+")")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&o.logFile, "log-file", "", "write logs to a rotated file instead of stderr")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics after each pass")
}

// session is everything a subcommand needs for one invocation.
type session struct {
	cfg     config.Config
	sniffer *sniffer.Sniffer
	log     *slog.Logger
	metrics *metrics.Metrics
	closer  io.Closer
}

func (s *session) Close() error {
	return s.closer.Close()
}

// resolve merges the config file and changed flags, then builds the engine
// for root.
func (o *globalOptions) resolve(cmd *cobra.Command, root string) (*session, error) {
	cfg, err := config.Load(o.configPath, o.configPath != "")
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = o.store
	}
	if flags.Changed("algorithm") {
		cfg.Algorithm = o.algorithm
	}
	if flags.Changed("compress") {
		cfg.Compress = o.compress
	}
	if flags.Changed("ignore-file") {
		cfg.IgnoreFile = o.ignoreFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	alg, err := digest.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, closer := logging.New(logging.Options{
		Level:  level,
		File:   cfg.LogFile,
		Stderr: cmd.ErrOrStderr(),
	})

	matcher, err := loadIgnore(root, cfg.IgnoreFile)
	if err != nil {
		closer.Close()
		return nil, err
	}

	s := &session{
		cfg: cfg,
		sniffer: sniffer.New(sniffer.Config{
			Root:      root,
			StoreFile: cfg.Store,
			Algorithm: alg,
			Compress:  cfg.Compress,
			Ignore:    matcher,
			Logger:    logger,
			Exclude:   []string{cfg.MetricsFile, cfg.LogFile},
		}),
		log:    logger,
		closer: closer,
	}
	if cfg.MetricsFile != "" {
		s.metrics = metrics.New()
	}
	return s, nil
}

func loadIgnore(root, name string) (*ignore.Matcher, error) {
	if name == "" {
		return nil, nil
	}
	return ignore.Load(sniffer.BaseDir(root), name)
}

// observe records a pass and refreshes the metrics textfile. Export
// failures are logged, never fatal.
func (s *session) observe(p metrics.Pass) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(p)
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.log.Warn("write metrics", "file", s.cfg.MetricsFile, "err", err)
	}
}

func rootArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return sniffer.DefaultRoot
}

func reportPass(op string, r sniffer.Report, err error) metrics.Pass {
	return metrics.Pass{
		Op:       op,
		Scanned:  r.Scanned,
		Added:    len(r.Paths(sniffer.Added)),
		Modified: len(r.Paths(sniffer.Modified)),
		Removed:  len(r.Paths(sniffer.Removed)),
		Duration: r.Duration,
		Err:      err,
	}
}

func describeStore(s *sniffer.Sniffer) string {
	abs, err := filepath.Abs(s.Store().Path())
	if err != nil {
		return s.Store().Path()
	}
	return abs
}

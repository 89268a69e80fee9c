// Package main is the entry point for heartbeat, a self-terminating reporter
// that prints one system metric on a fixed beat for a bounded lifetime.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FNNDSC/pl-heartbeat/internal/collector"
	"github.com/FNNDSC/pl-heartbeat/internal/config"
	"github.com/FNNDSC/pl-heartbeat/internal/heartbeat"
	"github.com/FNNDSC/pl-heartbeat/internal/plugin"
)

// version is set at build time via -ldflags.
var version = "1.0.0"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "heartbeat: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath   string
	dumpConfig   string
	infoType     string
	beatInterval int
	lifetime     int
	logLevel     string
	verbosity    int
	quiet        bool
	showVersion  bool
	showMan      bool
	showMeta     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "heartbeat [inputdir] [outputdir]",
		Short: "Print system information periodically, then exit",
		Long: `heartbeat samples one system metric (CPU, MEMORY or DATETIME) every
beat interval and prints it on its own line. It stops by itself once the
lifetime has elapsed. Directory arguments are accepted for plugin
compatibility and otherwise ignored.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), f, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file (default: auto-discover)")
	fs.StringVar(&f.dumpConfig, "dump-config", "", "Write the resolved configuration to this path and exit")
	fs.StringVar(&f.infoType, "infoType", "", "Type of system information to return: CPU, MEMORY or DATETIME")
	fs.IntVar(&f.beatInterval, "beatInterval", 0, "Seconds to wait between outputs (default 5)")
	fs.IntVar(&f.lifetime, "lifetime", 0, "Seconds to run before terminating (default 10)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.IntVarP(&f.verbosity, "verbosity", "v", 0, "Verbosity level; 2 or more enables debug logging")
	fs.BoolVar(&f.quiet, "quiet", false, "Do not print the title banner")
	fs.BoolVar(&f.showVersion, "version", false, "Show version and exit")
	fs.BoolVar(&f.showMan, "man", false, "Show the man page and exit")
	fs.BoolVar(&f.showMeta, "meta", false, "Show plugin metadata as JSON and exit")
	return cmd
}

func run(ctx context.Context, fs *pflag.FlagSet, f flags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case f.showVersion:
		_, err := fmt.Fprintf(stdout, "heartbeat %s\n", version)
		return err
	case f.showMan:
		_, err := fmt.Fprint(stdout, plugin.Synopsis)
		return err
	case f.showMeta:
		meta := plugin.NewMeta(version)
		// Host details are best effort.
		_ = meta.DetectPlatform(ctx)
		return meta.WriteJSON(stdout)
	}

	cli, err := cliOverrides(fs, f)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if fs.Changed("config") {
		cfg, err = config.LoadLayered(cli, embeddedConfig, f.configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	infoType, err := cfg.InfoType()
	if err != nil {
		return err
	}

	if f.dumpConfig != "" {
		if err := config.WriteConfig(cfg, f.dumpConfig); err != nil {
			return fmt.Errorf("dumping config: %w", err)
		}
		return nil
	}

	logger, closeLog, err := initLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	defer logger.Sync()

	clock := clockwork.NewRealClock()
	registry := collector.NewDefaultRegistry(clock, logger)
	source, err := registry.Get(infoType)
	if err != nil {
		return err
	}

	if !cfg.Heartbeat.Quiet {
		if err := plugin.WriteBanner(stdout, version); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := heartbeat.Run(ctx, heartbeat.Options{
		Interval:  cfg.Heartbeat.BeatInterval.Duration,
		Lifetime:  cfg.Heartbeat.Lifetime.Duration,
		Collector: source,
		Out:       stdout,
		Logger:    logger,
		Clock:     clock,
	})
	if err != nil {
		logger.Error("Heartbeat failed", zap.Error(err))
		return err
	}
	logger.Info("Heartbeat finished",
		zap.Uint64("beats", summary.Ticks),
		zap.Uint64("failed_beats", summary.Failures),
		zap.Bool("interrupted", summary.Interrupted))
	return nil
}

// cliOverrides converts the flags the user actually set into config
// overrides. Non-positive durations are rejected here because the config
// layer reads zero as "not set".
func cliOverrides(fs *pflag.FlagSet, f flags) (config.CLIOverrides, error) {
	cli := config.CLIOverrides{
		InfoType: f.infoType,
		LogLevel: f.logLevel,
		Quiet:    f.quiet,
	}
	if fs.Changed("beatInterval") {
		if f.beatInterval <= 0 {
			return cli, fmt.Errorf("%w: --beatInterval must be a positive number of seconds (got %d)", config.ErrInvalidConfig, f.beatInterval)
		}
		d, err := config.SecondsToDuration(int64(f.beatInterval))
		if err != nil {
			return cli, fmt.Errorf("--beatInterval: %w", err)
		}
		cli.BeatInterval = d
	}
	if fs.Changed("lifetime") {
		if f.lifetime <= 0 {
			return cli, fmt.Errorf("%w: --lifetime must be a positive number of seconds (got %d)", config.ErrInvalidConfig, f.lifetime)
		}
		d, err := config.SecondsToDuration(int64(f.lifetime))
		if err != nil {
			return cli, fmt.Errorf("--lifetime: %w", err)
		}
		cli.Lifetime = d
	}
	if cli.LogLevel == "" && f.verbosity >= 2 {
		cli.LogLevel = "debug"
	}
	return cli, nil
}

// initLogger creates a zap logger based on the configuration. Human-readable
// logs go to stderr, leaving stdout to the beats; a JSON log file is teed in
// when configured. The returned func closes the log file; call it after Sync.
func initLogger(cfg *config.Config, stderr io.Writer) (*zap.Logger, func(), error) {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}
	closeLog := func() {}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		closeLog = func() { _ = file.Close() }
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			level,
		)
		cores = append(cores, fileCore)
	}

	return zap.New(zapcore.NewTee(cores...)), closeLog, nil
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/FNNDSC/pl-heartbeat/internal/collector"
	"github.com/FNNDSC/pl-heartbeat/internal/config"
	"github.com/FNNDSC/pl-heartbeat/internal/models"
)

// execute runs the root command with an empty config file so no config on
// the test machine leaks in.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heartbeat.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "heartbeat "+version+"\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestMan(t *testing.T) {
	out, _, err := execute(t, "--man")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "SYNOPSIS") {
		t.Errorf("man page missing SYNOPSIS:\n%s", out)
	}
}

func TestMeta(t *testing.T) {
	out, _, err := execute(t, "--meta")
	if err != nil {
		t.Fatal(err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		t.Fatalf("--meta output is not JSON: %v\n%s", err, out)
	}
	if meta["version"] != version {
		t.Errorf("version = %v, want %s", meta["version"], version)
	}
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bogus info type", []string{"--infoType", "BOGUS"}},
		{"zero interval", []string{"--beatInterval", "0"}},
		{"negative lifetime", []string{"--lifetime=-4"}},
		{"bad log level", []string{"--log-level", "chatty"}},
		{"interval overflows", []string{"--beatInterval", "18446744074"}},
		{"lifetime overflows", []string{"--lifetime=9223372037"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("error = %v, want ErrInvalidConfig", err)
			}
			if out != "" {
				t.Errorf("stdout = %q, want nothing before failing", out)
			}
		})
	}
}

func TestBogusInfoTypeIsUnknown(t *testing.T) {
	_, _, err := execute(t, "--infoType", "BOGUS")
	if !errors.Is(err, models.ErrUnknownInfoType) {
		t.Errorf("error = %v, want ErrUnknownInfoType in chain", err)
	}
}

func TestTooManyArgs(t *testing.T) {
	if _, _, err := execute(t, "--version", "in", "out", "extra"); err == nil {
		t.Error("expected an error for three positional arguments")
	}
}

func TestRun_DateTimeBeats(t *testing.T) {
	// Millisecond durations are only reachable through the environment.
	t.Setenv("HB_BEAT_INTERVAL", "40ms")
	t.Setenv("HB_LIFETIME", "230ms")

	out, stderr, err := execute(t, "--infoType", "datetime", "--quiet", "/in", "/out")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || len(lines) > 6 {
		t.Fatalf("got %d lines, want about 5:\n%s", len(lines), out)
	}
	var prev time.Time
	for i, line := range lines {
		ts, err := time.ParseInLocation(collector.DateTimeLayout, line, time.Local)
		if err != nil {
			t.Fatalf("line %d %q: %v", i, line, err)
		}
		if ts.Before(prev) {
			t.Errorf("line %d goes back in time", i)
		}
		prev = ts
	}
	if !strings.Contains(stderr, "Heartbeat finished") {
		t.Errorf("stderr missing completion log:\n%s", stderr)
	}
}

func TestRun_Banner(t *testing.T) {
	t.Setenv("HB_BEAT_INTERVAL", "1h")
	t.Setenv("HB_LIFETIME", "10ms")

	out, _, err := execute(t, "--infoType", "MEMORY")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Version: "+version) {
		t.Errorf("banner missing:\n%s", out)
	}
}

func TestCLIOverrides_Verbosity(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if err := cmd.Flags().Parse([]string{"-v", "2"}); err != nil {
		t.Fatal(err)
	}
	v, _ := cmd.Flags().GetInt("verbosity")
	cli, err := cliOverrides(cmd.Flags(), flags{verbosity: v})
	if err != nil {
		t.Fatal(err)
	}
	if cli.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cli.LogLevel)
	}

	cli, err = cliOverrides(cmd.Flags(), flags{verbosity: v, logLevel: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, explicit level should win", cli.LogLevel)
	}
}

func TestDumpConfig(t *testing.T) {
	t.Setenv("HB_LIFETIME", "90s")
	path := filepath.Join(t.TempDir(), "out", "resolved.yaml")

	out, _, err := execute(t, "--infoType", "memory", "--beatInterval", "7", "--dump-config", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want no banner or beats", out)
	}

	cfg, err := config.LoadLayered(config.CLIOverrides{}, nil, path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Heartbeat.InfoType != "memory" {
		t.Errorf("InfoType = %q, want memory", cfg.Heartbeat.InfoType)
	}
	if cfg.Heartbeat.BeatInterval.Duration != 7*time.Second {
		t.Errorf("BeatInterval = %v, want 7s", cfg.Heartbeat.BeatInterval.Duration)
	}
	if cfg.Heartbeat.Lifetime.Duration != 90*time.Second {
		t.Errorf("Lifetime = %v, want 90s", cfg.Heartbeat.Lifetime.Duration)
	}
}

func TestDumpConfig_InvalidIsNotWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolved.yaml")
	_, _, err := execute(t, "--infoType", "BOGUS", "--dump-config", path)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("config was written for an invalid setup: %v", err)
	}
}

func TestInitLogger_CloseReleasesFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.File = filepath.Join(t.TempDir(), "heartbeat.log")

	var stderr bytes.Buffer
	logger, closeLog, err := initLogger(cfg, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("beat logged", zap.Int("n", 1))
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync() before close: %v", err)
	}
	closeLog()

	data, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file is not one JSON entry: %v\n%s", err, data)
	}
	if entry["msg"] != "beat logged" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if !strings.Contains(stderr.String(), "beat logged") {
		t.Errorf("console log missing entry:\n%s", stderr.String())
	}

	if err := logger.Sync(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Sync() after close = %v, want os.ErrClosed", err)
	}
}

func TestInitLogger_NoFile(t *testing.T) {
	logger, closeLog, err := initLogger(config.DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	closeLog()
	logger.Info("still logging to the console")
}

func TestRun_LogFile(t *testing.T) {
	t.Setenv("HB_BEAT_INTERVAL", "1h")
	t.Setenv("HB_LIFETIME", "10ms")
	logPath := filepath.Join(t.TempDir(), "heartbeat.log")
	cfgPath := filepath.Join(t.TempDir(), "heartbeat.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  file: "+logPath+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"--config", cfgPath, "--quiet", "--infoType", "datetime"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"Heartbeat finished"`) {
		t.Errorf("log file missing completion entry:\n%s", data)
	}
}

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/NicolasHaas/linechat/pkg/logging"
	"github.com/NicolasHaas/linechat/pkg/server"
	"github.com/NicolasHaas/linechat/pkg/store"
	"github.com/NicolasHaas/linechat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "YAML config file (flags override file values)")
	listen := flag.String("listen", "", "TCP bind address, e.g. \":4000\"")
	idleTimeout := flag.Duration("idle-timeout", 0, "evict sessions idle longer than this")
	sweepInterval := flag.Duration("sweep-interval", 0, "idle monitor scan interval")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	auditDB := flag.String("audit-db", "", "SQLite session audit trail path (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("linechat " + version.Full())
		return
	}

	if *configPath != "" {
		merged, err := server.LoadConfigFile(*configPath, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config file: %v\n", err)
			os.Exit(1)
		}
		cfg = merged
	}

	// Listen port resolution: -listen flag > positional port argument >
	// CHAT_PORT env var > config file > default 4000.
	if v := os.Getenv("CHAT_PORT"); v != "" {
		cfg.ListenAddr = ":" + mustPort(v, "CHAT_PORT")
	}
	if flag.NArg() > 0 {
		cfg.ListenAddr = ":" + mustPort(flag.Arg(0), "port argument")
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	if *idleTimeout > 0 {
		cfg.IdleTimeout = *idleTimeout
	}
	if *sweepInterval > 0 {
		cfg.SweepInterval = *sweepInterval
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *auditDB != "" {
		cfg.AuditDB = *auditDB
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	slog.Info("starting linechat", "version", version.String())

	var deps server.Dependencies
	if cfg.AuditDB != "" {
		st, err := store.New(cfg.AuditDB)
		if err != nil {
			slog.Error("open audit database", "path", cfg.AuditDB, "err", err)
			os.Exit(1)
		}
		deps.Audit = st
	}

	srv := server.New(cfg, deps)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// mustPort parses a decimal TCP port or exits with a usage error.
func mustPort(v, source string) string {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		fmt.Fprintf(os.Stderr, "invalid %s %q: want 1-65535\n", source, v)
		os.Exit(1)
	}
	return strconv.Itoa(p)
}

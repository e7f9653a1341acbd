package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tangle/internal/app"
	"tangle/internal/core/config"
	"tangle/internal/core/ports"
	"tangle/internal/engine/graph"
	"tangle/internal/shared/observability"
	"tangle/internal/ui/cli"
	"tangle/internal/ui/report"
)

var (
	configPath = flag.String("config", "./tangle.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run a single analysis pass and exit")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode")
	levelFlag  = flag.String("level", "", "Analysis level override (namespace, type, system)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("tangle v%s\n", VERSION)
		os.Exit(0)
	}

	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.Roots = []string{flag.Arg(0)}
	}
	if *levelFlag != "" {
		if _, err := graph.ParseLevel(*levelFlag); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		cfg.Levels = []string{*levelFlag}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	if cfg.Metrics.Enabled {
		server := observability.NewMetricsServer(cfg.Metrics.Address)
		server.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	out := ports.LineFunc(func(s string) { fmt.Println(s) })
	svc := a.AnalysisService()

	for _, level := range a.Levels() {
		result, err := svc.Analyze(ctx, level)
		if err != nil {
			slog.Error("analysis failed", "level", level, "error", err)
			os.Exit(1)
		}
		if !*ui {
			printSummary(out, result)
		}
		writeReports(cfg, result)
	}

	if *once || !cfg.Watch.IsEnabled() {
		return
	}

	if *ui {
		if err := cli.RunUI(ctx, a); err != nil {
			slog.Error("terminal UI failed", "error", err)
			os.Exit(1)
		}
		return
	}

	results, err := a.Watch(ctx)
	if err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	for result := range results {
		printSummary(out, result)
		writeReports(cfg, result)
	}
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *ui {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel})))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err == nil {
		return cfg, nil
	}
	// Fall back to defaults only when the user did not name a config file.
	if *configPath == "./tangle.toml" && os.IsNotExist(err) {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return nil, cwdErr
		}
		slog.Info("no config file found, using defaults", "root", cwd)
		return config.Default(cwd), nil
	}
	return nil, err
}

func printSummary(out ports.LineLogger, result ports.AnalysisResult) {
	mode := ""
	if result.FromCache {
		mode = " (cached)"
	}
	out.Line(fmt.Sprintf("[%s] %d files, %d nodes%s",
		result.Level, len(result.AnalyzedFiles), len(result.Nodes), mode))

	if len(result.Cycles) == 0 {
		out.Line("  no circular dependencies")
		return
	}

	stats := graph.ComputeCycleStats(result.Cycles)
	out.Line(fmt.Sprintf("  %d circular dependencies (%d new, avg len %.1f, longest %d)",
		stats.Count, stats.NewCount, stats.AverageLength, stats.LongestLength))
	for _, c := range result.Cycles {
		marker := " "
		if c.IsNew {
			marker = "!"
		}
		out.Line(fmt.Sprintf("  %s %s", marker, c.String()))
		for _, e := range c.Edges {
			for _, reason := range e.Reasons {
				out.Line(fmt.Sprintf("      %s -> %s: %s", e.From, e.To, reason))
			}
		}
		out.Line(fmt.Sprintf("    suggestion: %s", graph.Suggest(c)))
	}
}

func writeReports(cfg *config.Config, result ports.AnalysisResult) {
	if cfg.Output.Mermaid == "" && cfg.Output.DOT == "" {
		return
	}
	g := &graph.Graph{Level: result.Level, Nodes: result.Nodes}
	if cfg.Output.Mermaid != "" {
		writeReport(reportPath(cfg.Output.Mermaid, result.Level), report.Mermaid(g, result.Cycles))
	}
	if cfg.Output.DOT != "" {
		writeReport(reportPath(cfg.Output.DOT, result.Level), report.DOT(g, result.Cycles))
	}
}

// reportPath keys the output file by level so multi-level runs do not
// overwrite each other.
func reportPath(path string, level graph.Level) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%s%s", path[:len(path)-len(ext)], level, ext)
}

func writeReport(path, content string) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("failed to create report dir", "path", path, "error", err)
			return
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		slog.Warn("failed to write report", "path", path, "error", err)
	}
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tangle", "tangle.log")
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "tangle", "tangle.log")
	}
	return "tangle.log"
}

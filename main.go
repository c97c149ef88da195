package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/eralp/pomotron/internal/archive"
	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/config"
	"github.com/eralp/pomotron/internal/logger"
	"github.com/eralp/pomotron/internal/pomodoro"
	"github.com/eralp/pomotron/internal/storage"
	"github.com/eralp/pomotron/internal/tui"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating data dir: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	clk := clock.System{}
	store := storage.NewFile(cfg.StatePath(), cfg.StorageQuota, clk, log)
	defer store.Close()

	arch, err := archive.New(cfg.ArchivePath())
	if err != nil {
		// Reports and export degrade without the archive; the timer and
		// recent history still work.
		log.Warn("archive unavailable", zap.Error(err))
		arch = nil
	} else {
		defer arch.Close()
	}

	ctrl := pomodoro.NewController(store, arch, clk, log)
	defer ctrl.Close()

	app := tui.NewApp(ctrl)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

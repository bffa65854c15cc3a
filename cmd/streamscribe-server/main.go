package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/guiyumin/streamscribe/internal/cli"
	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/version"
)

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	output := flag.String("output", "", "transcript directory")
	debug := flag.Bool("debug", false, "verbose logs")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamscribe-server %s\n", version.String())
		return
	}

	_ = godotenv.Load()
	cfg := config.LoadOrDefault()

	// flag > config > default
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if *output != "" {
		cfg.Paths.OutputDir = *output
	}

	// Expand ~ in path
	if dir := cfg.Paths.OutputDir; len(dir) >= 2 && dir[:2] == "~/" {
		home, _ := os.UserHomeDir()
		cfg.Paths.OutputDir = filepath.Join(home, dir[2:])
	}

	log := logging.New(os.Stderr, *debug)
	if err := cli.RunServer(cfg, log); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

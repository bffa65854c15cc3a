package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
	"github.com/guiyumin/streamscribe/internal/server"
)

var (
	servePort      int
	serveOutputDir string
	serveDaemon    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start HTTP server for remote transcription jobs",
	Long: `Start an HTTP server that accepts transcription jobs via API.
Jobs run one at a time.

Examples:
  streamscribe serve              # Start server on port 8080
  streamscribe serve -p 9000      # Start server on port 9000
  streamscribe serve -d           # Start server as background daemon
  streamscribe serve -o ~/notes   # Use custom output directory

API Endpoints:
  GET    /api/health      # Health check
  GET    /api/platforms   # Supported platforms
  POST   /api/jobs        # Queue a job: {"inputs": ["<url or path>", ...]}
  GET    /api/jobs        # List all jobs
  GET    /api/jobs/:id    # Job status, log and per-item results
  DELETE /api/jobs/:id    # Cancel an active job or remove a finished one
  DELETE /api/jobs        # Clear finished jobs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			d := newDaemon(logging.New(os.Stderr, debug).For("serve"))
			switch args[0] {
			case "stop":
				return d.stop()
			case "status":
				return d.status()
			default:
				return fmt.Errorf("unknown serve command: %s", args[0])
			}
		}
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().StringVarP(&serveOutputDir, "output", "o", "", "transcript directory")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.LoadOrDefault()

	// flag > config > default
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if serveOutputDir != "" {
		if abs, err := filepath.Abs(serveOutputDir); err == nil {
			serveOutputDir = abs
		}
		cfg.Paths.OutputDir = serveOutputDir
	}

	log := logging.New(os.Stderr, debug)
	if serveDaemon {
		return newDaemon(log.For("serve")).start(cfg.Server.Port, cfg.Paths.OutputDir, debug)
	}
	return RunServer(cfg, log)
}

// RunServer serves the job API in the foreground until SIGINT or SIGTERM.
// It holds the serve lock for its lifetime, so `serve status` and
// `serve stop` see it whether it was started with -d or not.
func RunServer(cfg *config.Config, log *logging.Logger) error {
	d := newDaemon(log.For("serve"))
	release, err := d.claim()
	if err != nil {
		return err
	}
	defer release()

	p, err := pipeline.New(cfg, pipeline.Deps{Logger: log})
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, p.AcquireBatch, log.For("server"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	return srv.Start()
}

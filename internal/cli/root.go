package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
	"github.com/guiyumin/streamscribe/internal/core/version"
)

const logFileName = "streamscribe.log"

// ErrSomeFailed is returned when at least one input produced no transcript.
// The summary has already been printed, so callers only set the exit code.
var ErrSomeFailed = errors.New("some inputs failed")

var (
	inputFile       string
	forceTranscribe bool
	model           string
	language        string
	outputDir       string
	proxy           string
	plain           bool
	debug           bool
)

var rootCmd = &cobra.Command{
	Use:   "streamscribe [url|file]...",
	Short: "Turn YouTube, Bilibili and local media into text transcripts",
	Long: `streamscribe fetches a transcript for each input.

Platform subtitles are used when they exist. Otherwise the audio is
downloaded (or extracted from a local video) and transcribed with
whisper-ctranslate2.`,
	Example: `  streamscribe https://www.youtube.com/watch?v=dQw4w9WgXcQ
  streamscribe https://www.bilibili.com/video/BV1xx411c7mD --force-transcribe
  streamscribe ./talk.mp4 ./interview.m4a --model small
  streamscribe -f inputs.txt --plain`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := collectInputs(args, inputFile)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return cmd.Help()
		}
		return runAcquire(cmd.Context(), inputs)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read inputs from file (one per line)")
	rootCmd.Flags().BoolVar(&forceTranscribe, "force-transcribe", false, "skip subtitles and always transcribe the audio")
	rootCmd.Flags().StringVar(&model, "model", "", "whisper model (tiny, base, small, medium, large-v2, large-v3)")
	rootCmd.Flags().StringVar(&language, "language", "", "spoken language passed to whisper (auto to detect)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "transcript directory")
	rootCmd.Flags().StringVar(&proxy, "proxy", "", "proxy for yt-dlp, e.g. http://127.0.0.1:7890")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "print progress lines instead of the interactive view")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logs on stderr")
}

// Execute runs the root command. Ctrl+C cancels the running batch.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// collectInputs joins positional inputs with the lines of file. Blank lines
// and lines starting with # are skipped.
func collectInputs(args []string, file string) ([]string, error) {
	inputs := append([]string{}, args...)
	if file == "" {
		return inputs, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()
	lines, err := readInputs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return append(inputs, lines...), nil
}

func readInputs(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

// applyFlags overlays command-line flags on cfg.
func applyFlags(cfg *config.Config) {
	if forceTranscribe {
		cfg.ForceTranscribe = true
	}
	if model != "" {
		cfg.Whisper.Model = model
		// let the compute type follow the new model
		cfg.Whisper.ComputeType = ""
	}
	if language != "" {
		cfg.Whisper.Language = language
	}
	if outputDir != "" {
		if abs, err := filepath.Abs(outputDir); err == nil {
			outputDir = abs
		}
		cfg.Paths.OutputDir = outputDir
	}
	if proxy != "" {
		cfg.Network.Proxy = proxy
	}
}

// openLogger logs to stderr in debug mode and to a file in the temp dir
// otherwise, so log lines never tear the interactive view.
func openLogger(cfg *config.Config) (*logging.Logger, func()) {
	if debug {
		return logging.New(os.Stderr, true), func() {}
	}
	if err := os.MkdirAll(cfg.Paths.TempDir, 0o755); err == nil {
		f, err := os.OpenFile(filepath.Join(cfg.Paths.TempDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return logging.New(f, false), func() { f.Close() }
		}
	}
	return logging.Discard(), func() {}
}

func runAcquire(ctx context.Context, inputs []string) error {
	cfg := config.LoadOrDefault()
	applyFlags(cfg)
	t := i18n.T(cfg.Language)

	if !config.Exists() {
		fmt.Fprintln(os.Stderr, color.YellowString("%s. %s", t.Errors.ConfigNotFound, t.Server.RunInitHint))
	}

	log, closeLog := openLogger(cfg)
	defer closeLog()

	p, err := pipeline.New(cfg, pipeline.Deps{Logger: log})
	if err != nil {
		return err
	}

	reqs := make([]extractor.Request, 0, len(inputs))
	for _, in := range inputs {
		reqs = append(reqs, extractor.ParseInput(in))
	}

	interactive := !plain && !debug && term.IsTerminal(int(os.Stdout.Fd()))
	var sum *pipeline.Summary
	if interactive {
		sum, err = runWithProgress(ctx, p, reqs, t)
	} else {
		sum, err = p.AcquireBatch(ctx, reqs, plainSink(os.Stdout))
	}
	if sum != nil && len(sum.Items) > 0 {
		fmt.Println()
		fmt.Println(renderSummary(sum, t, termWidth()))
	}
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return ErrSomeFailed
	}
	return nil
}

// plainSink prints progress lines for non-interactive output.
func plainSink(w io.Writer) pipeline.Sink {
	bullet := color.New(color.FgCyan).Sprint("›")
	return func(msg string) {
		fmt.Fprintf(w, "%s %s\n", bullet, msg)
	}
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

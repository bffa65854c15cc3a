package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/deps"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/runner"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that yt-dlp, BBDown, ffmpeg and whisper-ctranslate2 are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		t := i18n.T(cfg.Language)
		d := &deps.Doctor{Config: cfg, Exec: runner.NewTaskExecutor(logging.Discard())}
		report := d.Run(cmd.Context())

		fmt.Println(renderDoctor(report, t))
		if !report.OK() {
			fmt.Fprintln(os.Stderr, color.YellowString("%s", t.Doctor.SomeIssue))
			return ErrSomeFailed
		}
		color.Green("%s", t.Doctor.AllGood)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func renderDoctor(report deps.Report, t *i18n.Translations) string {
	d := t.Doctor
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{d.Tool, d.Status, d.Path, ""})
	for _, c := range report.Checks {
		var status string
		switch {
		case c.Found:
			status = color.GreenString("✓ " + d.Found)
		case c.Optional:
			status = color.YellowString("- " + d.Optional)
		default:
			status = color.RedString("✗ " + d.Missing)
		}
		info := c.Detail
		if c.Version != "" {
			info = truncate(c.Version, 40)
		}
		tw.AppendRow(table.Row{c.Name, status, c.Path, info})
	}
	return tw.Render()
}

package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
)

// renderSummary draws the per-item result table and the totals line.
func renderSummary(sum *pipeline.Summary, t *i18n.Translations, width int) string {
	s := t.Summary
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(s.Title)
	tw.AppendHeader(table.Row{"#", s.Input, s.Platform, s.Method, s.Result, s.Transcript})

	cell := max((width-40)/2, 16)
	for i, r := range sum.Items {
		status := "✓"
		detail := r.TranscriptPath
		if !r.Success {
			status = "✗"
			detail = r.Error()
		} else if size := fileSize(r.TranscriptPath); size != "" {
			detail += " (" + size + ")"
		}
		tw.AppendRow(table.Row{
			i + 1,
			truncate(r.Input, cell),
			string(r.Platform),
			methodLabel(r, t),
			status,
			truncate(detail, cell),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignCenter},
	})

	totals := fmt.Sprintf("%s: %d  %s: %d  %s: %d  (%s)",
		s.Total, sum.Total, s.Succeeded, sum.Succeeded, s.Failed, sum.Failed, sum.Elapsed.Round(time.Second))
	return tw.Render() + "\n" + totals
}

func methodLabel(r *extractor.Result, t *i18n.Translations) string {
	switch r.Method {
	case extractor.MethodSubtitle:
		return t.Summary.Subtitle
	case extractor.MethodTranscription:
		label := t.Summary.Transcription
		if r.Timing != nil && r.Timing.SpeedRatio > 0 {
			label += " " + strconv.FormatFloat(r.Timing.SpeedRatio, 'f', 1, 64) + "x"
		}
		return label
	default:
		return "-"
	}
}

func fileSize(path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return humanize.Bytes(uint64(info.Size()))
}

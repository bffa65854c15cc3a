package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/streamscribe/internal/core/extractor"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported inputs",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(renderPlatforms(extractor.Platforms()))
	},
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func renderPlatforms(platforms []extractor.Platform) string {
	var b strings.Builder
	bold := color.New(color.Bold)
	for _, p := range platforms {
		fmt.Fprintf(&b, "%s (%s, via %s)\n", bold.Sprint(p.Name), p.Kind, p.Tool)
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "  %s\n", ex)
		}
	}
	return b.String()
}

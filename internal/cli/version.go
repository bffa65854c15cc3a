package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiyumin/streamscribe/internal/core/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("streamscribe " + version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package cli

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/media"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for streamscribe.

Bash:
  # Add to ~/.bashrc:
  source <(streamscribe completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(streamscribe completion zsh)

  # Or install to fpath:
  streamscribe completion zsh > "${fpath[1]}/_streamscribe"

Fish:
  streamscribe completion fish > ~/.config/fish/completions/streamscribe.fish

PowerShell:
  streamscribe completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	rootCmd.ValidArgsFunction = completeMediaPath
	configSetCmd.ValidArgsFunction = completeConfigKey
	configGetCmd.ValidArgsFunction = completeConfigKey
	configUnsetCmd.ValidArgsFunction = completeConfigKey
}

// unescapeShellPath removes common shell escape sequences
func unescapeShellPath(s string) string {
	r := strings.NewReplacer(
		"\\ ", " ",
		"\\[", "[",
		"\\]", "]",
		"\\(", "(",
		"\\)", ")",
		"\\&", "&",
		"\\'", "'",
		"\\\"", "\"",
	)
	return r.Replace(s)
}

// completeMediaPath offers directories and files with a supported audio or
// video extension. URLs are left to the user.
func completeMediaPath(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if strings.Contains(toComplete, "://") {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := config.LoadOrDefault()
	formats := media.Formats{Audio: cfg.Local.AudioFormats, Video: cfg.Local.VideoFormats}
	return mediaCandidates(unescapeShellPath(toComplete), formats), cobra.ShellCompDirectiveNoSpace
}

func mediaCandidates(toComplete string, formats media.Formats) []string {
	dir, base := filepath.Split(toComplete)
	listDir := dir
	if listDir == "" {
		listDir = "."
	}
	entries, err := os.ReadDir(listDir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, base) || (strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".")) {
			continue
		}
		switch {
		case e.IsDir():
			out = append(out, dir+name+"/")
		case formats.ByExt(name) != media.KindUnknown:
			out = append(out, dir+name)
		}
	}
	sort.Strings(out)
	return out
}

func completeConfigKey(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, k := range config.Keys() {
		if strings.HasPrefix(k, toComplete) {
			out = append(out, k)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

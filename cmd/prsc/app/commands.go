// Package app provides the prsc command tree.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/promptscript-lang/promptscript-go/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "prsc",
	DisableAutoGenTag: true,
	Short:             "PromptScript document resolver",
	Long: `prsc resolves PromptScript (.prs) documents: it loads the inherit/use
dependency graph from configured registries, merges inherited content,
applies extensions, and prints one flattened document.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			slog.Error("error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command for the prsc CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("error formatting version info as JSON", "error", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "prsc %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "marquee",
		Short: "Browse, search and collect movies and TV shows",
		Long: `marquee aggregates a home feed of movie and TV rows from a curated
service and a public catalog, merges catalog search with your own
collections, and keeps favorites, lists and watch history locally.`,
		SilenceUsage: true,
	}
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default is ~/.config/marquee/config.yaml)")

	rootCmd.AddCommand(RunServeCommand(&configPath))
	rootCmd.AddCommand(RunBrowseCommand(&configPath))
	rootCmd.AddCommand(RunHomeCommand(&configPath))
	rootCmd.AddCommand(RunRowCommand(&configPath))
	rootCmd.AddCommand(RunSearchCommand(&configPath))
	rootCmd.AddCommand(RunRecommendCommand(&configPath))
	rootCmd.AddCommand(RunFavoritesCommand(&configPath))
	rootCmd.AddCommand(RunListsCommand(&configPath))
	rootCmd.AddCommand(RunHistoryCommand(&configPath))
	rootCmd.AddCommand(RunSetupCommand(&configPath))
	rootCmd.AddCommand(RunVersionCommand(Version))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of marquee",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("marquee %s\n", version)
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joestump/bookmarks/internal/build"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "bookmarks",
		Short:   "A local mirror of a remote bookmark collection",
		Long:    "Bookmarks keeps a queryable local copy of a remote bookmark feed and serves it with thumbnails.",
		Version: fmt.Sprintf("%s (%s, %s)", build.Version, build.Commit, build.Branch),
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newMigrateCmd(&configPath))
	rootCmd.AddCommand(newSyncCmd(&configPath))
	rootCmd.AddCommand(newAddCmd(&configPath))
	rootCmd.AddCommand(newListCmd(&configPath))
	rootCmd.AddCommand(newRemoveCmd(&configPath))
	rootCmd.AddCommand(newTagsCmd(&configPath))
	rootCmd.AddCommand(newThumbnailCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

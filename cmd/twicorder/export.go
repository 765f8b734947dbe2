package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/twicorder/pkg/exporter"
	"github.com/cuemby/twicorder/pkg/log"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw capture files to a relational SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		dest, _ := cmd.Flags().GetString("dest")
		if source == "" || dest == "" {
			return fmt.Errorf("both --source and --dest are required")
		}

		log.Init(log.Config{Level: log.InfoLevel})

		stats, err := exporter.New(source, dest).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported %d tweets (%d skipped, %d users) from %d files\n",
			stats.ExportedTweets, stats.SkippedTweets, stats.ExportedUsers, stats.Files)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("source", "", "Directory holding raw capture files")
	exportCmd.Flags().String("dest", "", "SQLite database file to write")
}

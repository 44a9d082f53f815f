package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightjar-systems/logship/internal/seeder"
)

var (
	seedURL    string
	seedCount  int
	seedSpread time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Post generated lifecycle events to a running ingest endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		events := seeder.GenerateBatch(seedCount, seedSpread)
		if err := seeder.Post(seedURL, events); err != nil {
			return err
		}
		fmt.Printf("posted %d events to %s\n", len(events), seedURL)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedURL, "url", "http://localhost:8085", "ingest base URL")
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of events to generate")
	seedCmd.Flags().DurationVar(&seedSpread, "spread", time.Hour, "window to spread event timestamps over")
	rootCmd.AddCommand(seedCmd)
}

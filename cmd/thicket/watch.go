package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/thicket"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index current as files change",
	Long:  "Brings the index up to date, then refreshes the inventory and call graph after each burst of filesystem changes until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", thicket.DefaultDebounce, "quiet period before a refresh")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return outputError("watch", err)
	}
	e, err := openEngineAt(root, resolveDBPath(root))
	if err != nil {
		return outputError("watch", err)
	}
	defer e.Close()

	w := thicket.NewWatcher(e,
		thicket.WithDebounce(flagDebounce),
		thicket.OnUpdate(func(c thicket.FileChanges, st thicket.Stats) {
			slog.Info("index updated",
				"added", c.Added, "updated", c.Updated, "removed", c.Removed,
				"extracted", st.Extracted, "failed", st.Failed)
		}),
	)
	if err := w.Run(cmd.Context()); err != nil {
		return outputError("watch", err)
	}
	return nil
}

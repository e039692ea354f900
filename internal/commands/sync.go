package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/tasknest/internal/app"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/utils"
)

// SyncCommand returns the CLI command for reconciling pending changes
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Sync local data with the Tasknest server",
		Description: "Push pending local changes to the server and pull the latest remote state",
		Subcommands: []*cli.Command{
			{
				Name:        "status",
				Usage:       "Show sync status",
				Description: "Display results of recent sync passes and pending work",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of log entries to show",
						Value: 20,
					},
				},
				Action: syncStatusAction,
			},
		},
		Action: syncAction,
	}
}

// syncAction runs one manual reconciliation pass across all repositories
func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if application.Config.Server.URL == "" {
		return fmt.Errorf("no sync server configured; set TASKNEST_SERVER_URL")
	}

	loggy.Info("Starting manual sync")

	if !application.Monitor.Probe(c.Context) {
		utils.PrintError("Server unreachable: " + application.Config.Sync.ProbeURL)
		return nil
	}

	outcomes := application.Coordinator.SyncNow(c.Context)

	for _, o := range outcomes {
		if o.Err != nil {
			utils.PrintError(fmt.Sprintf("%s: %s", o.Repository, o.Err))
			continue
		}
		if o.Result == nil {
			utils.PrintInfo(fmt.Sprintf("%s: sync already in progress, skipped", o.Repository))
			continue
		}
		if o.Result.Total == 0 {
			utils.PrintSuccess(fmt.Sprintf("%s: nothing to sync", o.Repository))
			continue
		}
		msg := fmt.Sprintf("%s: %d synced, %d failed, %d abandoned of %d in %s",
			o.Repository, o.Result.Synced, o.Result.Failed, o.Result.Abandoned,
			o.Result.Total, o.Result.Duration.Round(time.Millisecond))
		if o.Result.Failed > 0 {
			utils.PrintWarning(msg)
		} else {
			utils.PrintSuccess(msg)
		}
	}

	return nil
}

// syncStatusAction shows recent sync passes and per-repository pending work
func syncStatusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	pendingTasks, err := application.Tasks.HasPendingChanges(c.Context)
	if err != nil {
		loggy.Warn("Failed to check pending tasks", "error", err)
	}
	pendingNotes, err := application.Notes.HasPendingChanges(c.Context)
	if err != nil {
		loggy.Warn("Failed to check pending notes", "error", err)
	}

	utils.PrintKeyValue("Server", application.Config.Server.URL)
	utils.PrintKeyValue("Device", application.Config.Sync.DeviceName)
	utils.PrintKeyValue("Pending tasks", fmt.Sprintf("%v", pendingTasks))
	utils.PrintKeyValue("Pending notes", fmt.Sprintf("%v", pendingNotes))
	fmt.Println()

	logs, err := application.SyncLogs.GetSyncLogs(c.Context, "", c.Int("limit"), 0)
	if err != nil {
		return fmt.Errorf("getting sync logs: %w", err)
	}

	rows := [][]string{}
	for _, log := range logs {
		rows = append(rows, []string{
			string(log.SyncType),
			log.Repository,
			fmt.Sprintf("%d", log.TotalItems),
			fmt.Sprintf("%d", log.SuccessItems),
			fmt.Sprintf("%d", log.FailedItems),
			fmt.Sprintf("%d", log.AbandonedItems),
			formatSuccess(log.Success),
			utils.Truncate(log.ErrorMessage, 48),
			utils.FormatTime(log.CompletedAt),
		})
	}

	utils.PrintTable("Sync Logs",
		[]string{"Type", "Repository", "Total", "Synced", "Failed", "Abandoned", "Status", "Error", "Completed"},
		rows)
	return nil
}

func formatSuccess(success bool) string {
	if success {
		return "✓"
	}
	return "✗"
}

// formatSyncState renders the per-entity sync bookkeeping for display
func formatSyncState(meta *store.SyncMeta) string {
	if !meta.PendingSync {
		return "synced"
	}
	if meta.SyncError != "" {
		return "pending (error)"
	}
	return "pending"
}

// probeOnline refreshes the connectivity flag once before a command runs,
// so one-shot invocations do not sit behind the poll interval.
func probeOnline(c *cli.Context, application *app.App) {
	if application.Config.Server.URL == "" {
		return
	}
	application.Monitor.Probe(c.Context)
}

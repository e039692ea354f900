package commands

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/tasknest/internal/app"
	"github.com/tildaslashalef/tasknest/internal/note"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/utils"
)

// NoteCommand returns the CLI command for managing notes
func NoteCommand() *cli.Command {
	return &cli.Command{
		Name:    "note",
		Aliases: []string{"n"},
		Usage:   "Manage notes",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a new note",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "body",
						Aliases: []string{"b"},
						Usage:   "Note body text",
					},
				},
				Action: noteAddAction,
			},
			{
				Name:   "list",
				Usage:  "List notes",
				Action: noteListAction,
			},
			{
				Name:      "show",
				Usage:     "Show a single note",
				ArgsUsage: "<id>",
				Action:    noteShowAction,
			},
			{
				Name:      "pin",
				Usage:     "Pin or unpin a note",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "off",
						Usage: "Unpin instead of pin",
					},
				},
				Action: notePinAction,
			},
			{
				Name:      "rm",
				Usage:     "Delete a note",
				ArgsUsage: "<id>",
				Action:    noteDeleteAction,
			},
		},
	}
}

func noteAddAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	title := c.Args().First()
	if title == "" {
		return fmt.Errorf("note title is required")
	}

	probeOnline(c, application)

	created, err := application.Notes.Create(c.Context, note.CreateNoteInput{
		Title: title,
		Body:  c.String("body"),
	})
	if err != nil {
		return fmt.Errorf("creating note: %w", err)
	}

	if created.SyncMeta.PendingSync {
		utils.PrintWarning("Offline: note saved locally and will sync later")
	}
	utils.PrintSuccess(fmt.Sprintf("Note created: %s", created.ID))
	return nil
}

func noteListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	probeOnline(c, application)

	notes, err := application.Notes.GetAll(c.Context)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}

	rows := [][]string{}
	for _, n := range notes {
		pinned := ""
		if n.Pinned {
			pinned = "📌"
		}
		rows = append(rows, []string{
			n.ID,
			utils.Truncate(n.Title, 48),
			pinned,
			utils.FormatTime(n.CreatedAt),
			formatSyncState(&n.SyncMeta),
		})
	}

	utils.PrintTable("Notes",
		[]string{"ID", "Title", "Pinned", "Created", "Sync"}, rows)
	return nil
}

func noteShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("note id is required")
	}

	probeOnline(c, application)

	n, err := application.Notes.GetByID(c.Context, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Note not found: " + id)
			return nil
		}
		return fmt.Errorf("fetching note: %w", err)
	}

	utils.PrintHeading(n.Title)
	utils.PrintKeyValue("ID", n.ID)
	utils.PrintKeyValue("Created", utils.FormatTime(n.CreatedAt))
	utils.PrintKeyValue("Sync", formatSyncState(&n.SyncMeta))
	if n.SyncMeta.SyncError != "" {
		utils.PrintKeyValue("Sync error", n.SyncMeta.SyncError)
	}
	if n.Body != "" {
		fmt.Println()
		fmt.Println(n.Body)
	}
	return nil
}

func notePinAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("note id is required")
	}

	probeOnline(c, application)

	pinned := !c.Bool("off")
	updated, err := application.Notes.Update(c.Context, id, note.UpdateNoteInput{
		Pinned: &pinned,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Note not found: " + id)
			return nil
		}
		return fmt.Errorf("updating note: %w", err)
	}

	if pinned {
		utils.PrintSuccess("Note pinned: " + updated.Title)
	} else {
		utils.PrintSuccess("Note unpinned: " + updated.Title)
	}
	return nil
}

func noteDeleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("note id is required")
	}

	probeOnline(c, application)

	if err := application.Notes.Delete(c.Context, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Note not found: " + id)
			return nil
		}
		return fmt.Errorf("deleting note: %w", err)
	}

	utils.PrintSuccess("Note deleted: " + id)
	return nil
}

package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/tasknest/internal/app"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/task"
	"github.com/tildaslashalef/tasknest/internal/utils"
)

// TaskCommand returns the CLI command for managing tasks
func TaskCommand() *cli.Command {
	return &cli.Command{
		Name:    "task",
		Aliases: []string{"t"},
		Usage:   "Manage tasks",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a new task",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "notes",
						Aliases: []string{"n"},
						Usage:   "Free-form notes attached to the task",
					},
					&cli.StringFlag{
						Name:    "priority",
						Aliases: []string{"p"},
						Usage:   "Task priority: low, medium or high",
					},
					&cli.TimestampFlag{
						Name:   "due",
						Usage:  "Due date (2006-01-02)",
						Layout: "2006-01-02",
					},
				},
				Action: taskAddAction,
			},
			{
				Name:  "list",
				Usage: "List tasks",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include completed tasks",
					},
				},
				Action: taskListAction,
			},
			{
				Name:      "show",
				Usage:     "Show a single task",
				ArgsUsage: "<id>",
				Action:    taskShowAction,
			},
			{
				Name:      "done",
				Usage:     "Mark a task as completed",
				ArgsUsage: "<id>",
				Action:    taskDoneAction,
			},
			{
				Name:      "edit",
				Usage:     "Edit a task",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "New title"},
					&cli.StringFlag{Name: "notes", Usage: "New notes"},
					&cli.StringFlag{Name: "priority", Usage: "New priority"},
					&cli.TimestampFlag{
						Name:   "due",
						Usage:  "New due date (2006-01-02)",
						Layout: "2006-01-02",
					},
				},
				Action: taskEditAction,
			},
			{
				Name:      "rm",
				Usage:     "Delete a task",
				ArgsUsage: "<id>",
				Action:    taskDeleteAction,
			},
		},
	}
}

func taskAddAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	title := c.Args().First()
	if title == "" {
		return fmt.Errorf("task title is required")
	}

	input := task.CreateTaskInput{
		Title:    title,
		Notes:    c.String("notes"),
		Priority: task.Priority(c.String("priority")),
	}
	if due := c.Timestamp("due"); due != nil && !due.IsZero() {
		input.DueDate = due
	}

	probeOnline(c, application)

	created, err := application.Tasks.Create(c.Context, input)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	if created.SyncMeta.PendingSync {
		utils.PrintWarning("Offline: task saved locally and will sync later")
	}
	utils.PrintSuccess(fmt.Sprintf("Task created: %s", created.ID))
	return nil
}

// ListTasksAction lists open tasks; it is also the app's default action.
func ListTasksAction(c *cli.Context) error {
	return taskListAction(c)
}

func taskListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	probeOnline(c, application)

	tasks, err := application.Tasks.GetAll(c.Context)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	showAll := c.Bool("all")
	rows := [][]string{}
	for _, t := range tasks {
		if t.Completed && !showAll {
			continue
		}
		rows = append(rows, []string{
			t.ID,
			utils.Truncate(t.Title, 48),
			string(t.Priority),
			formatDue(t.DueDate),
			formatCompleted(t.Completed),
			formatSyncState(&t.SyncMeta),
		})
	}

	utils.PrintTable("Tasks",
		[]string{"ID", "Title", "Priority", "Due", "Done", "Sync"}, rows)
	return nil
}

func taskShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	probeOnline(c, application)

	t, err := application.Tasks.GetByID(c.Context, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Task not found: " + id)
			return nil
		}
		return fmt.Errorf("fetching task: %w", err)
	}

	utils.PrintHeading(t.Title)
	utils.PrintKeyValue("ID", t.ID)
	utils.PrintKeyValue("Priority", string(t.Priority))
	utils.PrintKeyValue("Due", formatDue(t.DueDate))
	utils.PrintKeyValue("Completed", formatCompleted(t.Completed))
	utils.PrintKeyValue("Created", utils.FormatTime(t.CreatedAt))
	utils.PrintKeyValue("Sync", formatSyncState(&t.SyncMeta))
	if t.SyncMeta.SyncError != "" {
		utils.PrintKeyValue("Sync error", t.SyncMeta.SyncError)
	}
	if t.Notes != "" {
		fmt.Println()
		fmt.Println(t.Notes)
	}
	return nil
}

func taskDoneAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	probeOnline(c, application)

	completed := true
	updated, err := application.Tasks.Update(c.Context, id, task.UpdateTaskInput{
		Completed: &completed,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Task not found: " + id)
			return nil
		}
		return fmt.Errorf("updating task: %w", err)
	}

	utils.PrintSuccess(fmt.Sprintf("Task completed: %s", updated.Title))
	return nil
}

func taskEditAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	var input task.UpdateTaskInput
	if c.IsSet("title") {
		title := c.String("title")
		input.Title = &title
	}
	if c.IsSet("notes") {
		notes := c.String("notes")
		input.Notes = &notes
	}
	if c.IsSet("priority") {
		priority := task.Priority(c.String("priority"))
		input.Priority = &priority
	}
	if c.IsSet("due") {
		input.DueDate = c.Timestamp("due")
	}

	probeOnline(c, application)

	updated, err := application.Tasks.Update(c.Context, id, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Task not found: " + id)
			return nil
		}
		return fmt.Errorf("updating task: %w", err)
	}

	utils.PrintSuccess(fmt.Sprintf("Task updated: %s", updated.Title))
	return nil
}

func taskDeleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	probeOnline(c, application)

	if err := application.Tasks.Delete(c.Context, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.PrintError("Task not found: " + id)
			return nil
		}
		return fmt.Errorf("deleting task: %w", err)
	}

	utils.PrintSuccess("Task deleted: " + id)
	return nil
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "-"
	}
	return due.Local().Format("2006-01-02")
}

func formatCompleted(done bool) string {
	if done {
		return "✓"
	}
	return ""
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/model"
)

var tasksLimit int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recent enrichment runs",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tasks, err := db.ListTasks(ctx, tasksLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list tasks: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-36s %-10s %-19s %9s %5s %5s  %s\n", "Task", "Status", "Created", "Duration", "OK", "Fail", "Selector")
	fmt.Println(strings.Repeat("─", 110))
	for _, t := range tasks {
		fmt.Printf("%-36s %-10s %-19s %9s %5d %5d  %s\n",
			t.ID, t.Status, t.CreatedAt.Local().Format("2006-01-02 15:04:05"), taskDuration(t), t.Succeeded, t.Failed, t.Selector)
		if t.Error != "" {
			fmt.Printf("%-36s └ %s\n", "", t.Error)
		}
	}
	fmt.Printf("\n%d run(s)\n", len(tasks))
	return nil
}

func taskDuration(t model.EnrichmentTask) string {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return "–"
	}
	return t.FinishedAt.Sub(*t.StartedAt).Round(time.Millisecond).String()
}

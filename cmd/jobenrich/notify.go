package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Reporter utilities",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test run report through the configured reporter",
	RunE:  runNotifyTest,
}

func init() {
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	reporter := setupReporter(cfg, &http.Client{Timeout: 10 * time.Second}, logger)
	if err := notifier.SendTestReport(reporter); err != nil {
		logger.Error("test report failed", "type", cfg.Notification.Type, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Test report sent via %s reporter.\n", cfg.Notification.Type)
	return nil
}

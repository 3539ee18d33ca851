package main

import (
	"os"
	"time"

	"github.com/doorman-io/doorman/internal/bus"
	"github.com/doorman-io/doorman/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	natsURL       string
	subjectPrefix string
	adminURL      string
	authToken     string
	jsonOutput    bool
)

func defaultNATSURL() string {
	if s := os.Getenv("DOORMAN_NATS_URL"); s != "" {
		return s
	}
	return "nats://127.0.0.1:4222"
}

func defaultPrefix() string {
	if s := os.Getenv("DOORMAN_SUBJECT_PREFIX"); s != "" {
		return s
	}
	return "doors"
}

func defaultAdminURL() string {
	if s := os.Getenv("DOORMAN_ADMIN_URL"); s != "" {
		return s
	}
	return "http://localhost:8089"
}

func defaultFollow() time.Duration {
	if s := os.Getenv("DOORMAN_REPLY_FOLLOW"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 90 * time.Second
}

var rootCmd = &cobra.Command{
	Use:   "doorman <command>",
	Short: "Control and observe pulse-actuated doors over NATS",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonOutput || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	},
}

// dialBus connects to NATS using the global flags and returns the
// connection together with the subject layout for the active prefix.
func dialBus(name string, opts ...nats.Option) (*bus.Conn, bus.Subjects, error) {
	conn, err := bus.Connect(natsURL, name, opts...)
	if err != nil {
		return nil, bus.Subjects{}, err
	}
	return conn, bus.NewSubjects(subjectPrefix), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", defaultNATSURL(), "NATS server URL")
	rootCmd.PersistentFlags().StringVar(&subjectPrefix, "prefix", defaultPrefix(), "subject prefix for all bus traffic")
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", defaultAdminURL(), "admin API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("DOORMAN_AUTH_TOKEN"), "bearer token for the admin API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "doors", Title: "Doors:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Doors
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(ventCmd)

	// Views
	rootCmd.AddCommand(doorsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

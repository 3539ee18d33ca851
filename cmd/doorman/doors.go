package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/doorman-io/doorman/internal/model"
	"github.com/spf13/cobra"
)

// adminGet fetches path from the admin API and decodes the JSON body
// into v. Error bodies ({"error": "..."}) are surfaced as errors.
func adminGet(ctx context.Context, path string, v any) error {
	url := strings.TrimRight(adminURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching admin API at %s: %w", adminURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", url, e.Error)
		}
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

var doorsCmd = &cobra.Command{
	Use:     "doors",
	Short:   "List doors and their fused state",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		if skipped, _ := cmd.Flags().GetBool("skipped"); skipped {
			var out struct {
				Skipped []skippedDoor `json:"skipped"`
			}
			if err := adminGet(cmd.Context(), "/v1/skipped", &out); err != nil {
				return err
			}
			if jsonOutput {
				printSkippedJSON(out.Skipped)
			} else {
				printSkippedTable(out.Skipped)
			}
			return nil
		}

		var out struct {
			Doors []model.DoorSnapshot `json:"doors"`
		}
		if err := adminGet(cmd.Context(), "/v1/doors", &out); err != nil {
			return err
		}
		if jsonOutput {
			printDoorListJSON(out.Doors)
		} else {
			printDoorListTable(out.Doors)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <door>",
	Short:   "Show one door in detail",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap model.DoorSnapshot
		if err := adminGet(cmd.Context(), "/v1/doors/"+args[0], &snap); err != nil {
			return err
		}
		if jsonOutput {
			printDoorJSON(snap)
		} else {
			printDoorTable(snap)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the controller",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Status  string `json:"status"`
			Doors   int    `json:"doors"`
			Skipped int    `json:"skipped"`
		}
		if err := adminGet(cmd.Context(), "/v1/health", &out); err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("Health:  %s\n", out.Status)
			fmt.Printf("Doors:   %d\n", out.Doors)
			fmt.Printf("Skipped: %d\n", out.Skipped)
		}

		if out.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", out.Status)
		}
		return nil
	},
}

func init() {
	doorsCmd.Flags().Bool("skipped", false, "list doors that failed registry validation instead")
}

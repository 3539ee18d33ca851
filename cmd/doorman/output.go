package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/ui"
)

// skippedDoor mirrors the admin API's /v1/skipped entries.
type skippedDoor struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func printDoorJSON(d model.DoorSnapshot) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printDoorTable(d model.DoorSnapshot) {
	fmt.Printf("ID:          %s\n", d.ID)
	fmt.Printf("Name:        %s\n", d.Name)
	fmt.Printf("State:       %s\n", renderState(d.State, 0))
	fmt.Printf("Position:    %s\n", formatPosition(d.Position))
	if d.BadClose {
		fmt.Printf("Bad Close:   %s (last close was never confirmed)\n", ui.RenderBad("yes"))
	}
	if d.Pending != nil {
		fmt.Printf("Pending:     %s (%s, since %s)\n",
			d.Pending.Action, d.Pending.Phase, d.Pending.Since.Format("15:04:05"))
		fmt.Printf("Correlation: %s\n", d.Pending.CorrelationID)
	}
	if !d.UpdatedAt.IsZero() {
		fmt.Printf("Updated At:  %s\n", d.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printDoorListJSON(doors []model.DoorSnapshot) {
	data, err := json.MarshalIndent(doors, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printDoorListTable(doors []model.DoorSnapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tPOSITION\tPENDING\tUPDATED")
	anyBad := false
	for _, d := range doors {
		name := d.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		state := string(d.State)
		if d.BadClose {
			state += " !"
			anyBad = true
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID,
			name,
			state,
			formatPosition(d.Position),
			pendingCell(d.Pending),
			formatTime(d.UpdatedAt),
		)
	}
	w.Flush()
	fmt.Printf("\n%d doors\n", len(doors))
	if anyBad {
		fmt.Println(ui.RenderMuted("!  last close command was never confirmed"))
	}
}

func printSkippedJSON(skipped []skippedDoor) {
	data, err := json.MarshalIndent(skipped, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSkippedTable(skipped []skippedDoor) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREASON")
	for _, s := range skipped {
		fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Reason)
	}
	w.Flush()
	fmt.Printf("\n%d skipped\n", len(skipped))
}

// printReply prints one reply from a command's stream.
func printReply(r model.Reply) {
	if jsonOutput {
		printEventJSON("reply", r)
		return
	}
	fmt.Printf("%s  %s\n", renderOutcome(r.Outcome, 17), r.Message)
}

// printReplyLine is the watch-stream variant of printReply, with
// timestamp and door columns.
func printReplyLine(r model.Reply) {
	if jsonOutput {
		printEventJSON("reply", r)
		return
	}
	fmt.Printf("%s  %-14s %s  %s\n",
		r.At.Format("15:04:05"), r.DoorID, renderOutcome(r.Outcome, 17), r.Message)
}

func printStatusLine(u model.StatusUpdate) {
	if jsonOutput {
		printEventJSON("status", u)
		return
	}
	line := fmt.Sprintf("%s  %-14s %s %s",
		u.At.Format("15:04:05"), u.DoorID, renderState(u.Label, 8), formatPosition(u.Position))
	if u.Source != model.SourceReconciler {
		line += "  " + ui.RenderMuted("["+string(u.Source)+"]")
	}
	fmt.Println(line)
}

func printAlertLine(a model.Alert) {
	if jsonOutput {
		printEventJSON("alert", a)
		return
	}
	sev := strings.ToUpper(string(a.Severity))
	switch a.Severity {
	case model.SeverityCritical:
		sev = ui.RenderBad(sev)
	case model.SeverityWarning:
		sev = ui.RenderWarn(sev)
	default:
		sev = ui.RenderAccent(sev)
	}
	fmt.Printf("%s  %s  %s: %s\n", a.At.Format("15:04:05"), sev, a.Title, a.Message)
}

// printEventJSON prints a stream event as a single JSON line so the
// output stays pipeable.
func printEventJSON(kind string, v any) {
	data, err := json.Marshal(map[string]any{"type": kind, "event": v})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// renderState colors a door state. The value is padded to width before
// styling: escape codes confuse printf padding, so pad first.
func renderState(s model.State, width int) string {
	padded := fmt.Sprintf("%-*s", width, string(s))
	switch s {
	case model.StateOpen:
		return ui.RenderGood(padded)
	case model.StateClosed:
		return ui.RenderAccent(padded)
	case model.StateVenting:
		return ui.RenderWarn(padded)
	}
	return ui.RenderMuted(padded)
}

// renderOutcome colors a reply outcome, padded like renderState.
func renderOutcome(o model.ReplyOutcome, width int) string {
	padded := fmt.Sprintf("%-*s", width, string(o))
	switch o {
	case model.OutcomeDone, model.OutcomeAlreadySatisfied:
		return ui.RenderGood(padded)
	case model.OutcomeFailed, model.OutcomeAlreadyPending:
		return ui.RenderBad(padded)
	case model.OutcomeProcessing:
		return ui.RenderWarn(padded)
	}
	return ui.RenderAccent(padded)
}

// formatPosition renders a normalized position; -1 (never reported)
// shows as a dash.
func formatPosition(p float64) string {
	if p < 0 {
		return "-"
	}
	return strconv.FormatFloat(p, 'g', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func pendingCell(p *model.PendingInfo) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", p.Action, p.Phase)
}

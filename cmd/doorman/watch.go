package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"

	"github.com/doorman-io/doorman/internal/bus"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream door status changes and alerts",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		doors, _ := cmd.Flags().GetStringSlice("door")
		withReplies, _ := cmd.Flags().GetBool("replies")
		filter := newDoorFilter(doors)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		conn, subj, err := dialBus("doorman-watch",
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer conn.Close()

		statusCh, cancelStatuses, err := conn.Subscribe(subj.Statuses())
		if err != nil {
			return err
		}
		defer cancelStatuses()

		alertCh, cancelAlerts, err := conn.Subscribe(subj.Alert())
		if err != nil {
			return err
		}
		defer cancelAlerts()

		// replyCh stays nil unless requested; a nil channel never fires.
		var replyCh <-chan bus.Msg
		if withReplies {
			ch, cancelReplies, err := conn.Subscribe(subj.Replies())
			if err != nil {
				return err
			}
			defer cancelReplies()
			replyCh = ch
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case m, ok := <-statusCh:
				if !ok {
					return nil
				}
				var u model.StatusUpdate
				if err := json.Unmarshal(m.Data, &u); err != nil {
					continue
				}
				if !filter.match(u.DoorID) {
					continue
				}
				printStatusLine(u)
			case m, ok := <-alertCh:
				if !ok {
					return nil
				}
				var a model.Alert
				if err := json.Unmarshal(m.Data, &a); err != nil {
					continue
				}
				if a.DoorID != "" && !filter.match(a.DoorID) {
					continue
				}
				printAlertLine(a)
			case m, ok := <-replyCh:
				if !ok {
					return nil
				}
				var r model.Reply
				if err := json.Unmarshal(m.Data, &r); err != nil {
					continue
				}
				if !filter.match(r.DoorID) {
					continue
				}
				printReplyLine(r)
			}
		}
	},
}

// doorFilter restricts watch output to a set of door IDs. An empty
// filter matches everything.
type doorFilter map[string]bool

func newDoorFilter(ids []string) doorFilter {
	if len(ids) == 0 {
		return nil
	}
	f := make(doorFilter, len(ids))
	for _, id := range ids {
		f[id] = true
	}
	return f
}

func (f doorFilter) match(id string) bool {
	return len(f) == 0 || f[id]
}

func init() {
	watchCmd.Flags().StringSlice("door", nil, "only show these doors (repeatable)")
	watchCmd.Flags().Bool("replies", false, "also show command replies")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/doorman-io/doorman/internal/idgen"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// requestTimeout bounds the wait for the controller's first verdict.
// Sensor confirmation can take much longer; that wait is governed by
// --follow.
const requestTimeout = 5 * time.Second

var openCmd = &cobra.Command{
	Use:     "open <door>",
	Short:   "Open a door",
	GroupID: "doors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd, model.ActionOpen, args[0])
	},
}

var closeCmd = &cobra.Command{
	Use:     "close <door>",
	Short:   "Close a door",
	GroupID: "doors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd, model.ActionClose, args[0])
	},
}

var ventCmd = &cobra.Command{
	Use:     "vent <door>",
	Short:   "Move a door to its vent position",
	GroupID: "doors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd, model.ActionVent, args[0])
	},
}

// runSend publishes a command and relays the reply stream until a
// terminal outcome arrives or the follow window expires.
func runSend(cmd *cobra.Command, action model.Action, doorID string) error {
	follow, _ := cmd.Flags().GetDuration("follow")
	noFollow, _ := cmd.Flags().GetBool("no-follow")

	token, err := idgen.NewRequestID()
	if err != nil {
		return fmt.Errorf("generating caller token: %w", err)
	}

	conn, subj, err := dialBus("doorman-cli")
	if err != nil {
		return err
	}
	defer conn.Close()

	// Subscribe to the door's reply stream before sending, so the
	// terminal reply cannot slip past between request and subscription.
	ch, cancel, err := conn.Subscribe(subj.Reply(doorID))
	if err != nil {
		return err
	}
	defer cancel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reqCtx, cancelReq := context.WithTimeout(ctx, requestTimeout)
	defer cancelReq()
	msg, err := conn.Request(reqCtx, subj.Command(doorID), model.Command{
		Action:      action,
		CallerToken: token,
	})
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return fmt.Errorf("no controller is listening for %q (is doorman serve running?)", subj.Command(doorID))
		}
		return fmt.Errorf("sending %s command: %w", action, err)
	}

	var first model.Reply
	if err := json.Unmarshal(msg.Data, &first); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	printReply(first)
	if first.Outcome.Terminal() || noFollow {
		return replyErr(first)
	}

	// Follow the reply subject to the terminal outcome. The first reply
	// is mirrored there too; drop the copy by timestamp.
	last := first
	deadline := time.NewTimer(follow)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return fmt.Errorf("no terminal reply within %s; the door may still be moving", follow)
		case m, ok := <-ch:
			if !ok {
				return errors.New("reply stream closed")
			}
			var r model.Reply
			if err := json.Unmarshal(m.Data, &r); err != nil {
				continue
			}
			if r.CallerToken != token {
				continue
			}
			if r.Outcome == last.Outcome && r.At.Equal(last.At) {
				continue
			}
			printReply(r)
			last = r
			if r.Outcome.Terminal() {
				return replyErr(r)
			}
		}
	}
}

// replyErr maps a terminal reply to the command's exit status: failures
// and rejected commands exit non-zero so scripts can tell.
func replyErr(r model.Reply) error {
	switch r.Outcome {
	case model.OutcomeFailed, model.OutcomeAlreadyPending:
		return errors.New(r.Message)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{openCmd, closeCmd, ventCmd} {
		c.Flags().Duration("follow", defaultFollow(), "how long to wait for sensor confirmation")
		c.Flags().Bool("no-follow", false, "exit after the first reply without waiting for confirmation")
	}
}

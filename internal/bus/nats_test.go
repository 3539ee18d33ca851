package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func connect(t *testing.T, url string) *Conn {
	t.Helper()
	c, err := Connect(url, "bus-test")
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConn_PublishSubscribe(t *testing.T) {
	url := startTestNATS(t)
	pub := connect(t, url)
	sub := connect(t, url)

	ch, cancel, err := sub.Subscribe("doors.status.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	type payload struct {
		DoorID string `json:"door_id"`
	}
	if err := pub.Publish(context.Background(), "doors.status.front", payload{DoorID: "front"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.Flush()

	select {
	case msg := <-ch:
		if msg.Subject != "doors.status.front" {
			t.Errorf("Subject = %q, want doors.status.front", msg.Subject)
		}
		var got payload
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshaling: %v", err)
		}
		if got.DoorID != "front" {
			t.Errorf("DoorID = %q, want front", got.DoorID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestConn_RequestCarriesReplyInbox(t *testing.T) {
	url := startTestNATS(t)
	server := connect(t, url)
	client := connect(t, url)

	ch, cancel, err := server.Subscribe("doors.cmd.front")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	// Answer the first request with a fixed payload.
	go func() {
		msg := <-ch
		if msg.Reply == "" {
			return
		}
		_ = server.Publish(context.Background(), msg.Reply, map[string]string{"outcome": "accepted"})
	}()

	ctx, cancelReq := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelReq()
	resp, err := client.Request(ctx, "doors.cmd.front", map[string]string{"action": "open"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("unmarshaling reply: %v", err)
	}
	if got["outcome"] != "accepted" {
		t.Errorf("reply outcome = %q, want accepted", got["outcome"])
	}
}

func TestConn_SubscribeCancel(t *testing.T) {
	url := startTestNATS(t)
	sub := connect(t, url)

	ch, cancel, err := sub.Subscribe("doors.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()

	// Channel should be closed.
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Calling cancel twice should not panic.
	cancel()
}

func TestConn_CancelDuringMessages(t *testing.T) {
	url := startTestNATS(t)
	pub := connect(t, url)
	sub := connect(t, url)

	ch, cancel, err := sub.Subscribe("doors.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Publish 100 messages concurrently with cancel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.Publish(context.Background(), "doors.sensor.input-1", map[string]string{"reading": "1"})
		}
		pub.Flush()
	}()

	// Cancel while messages are being sent -- must not panic.
	cancel()
	<-done

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestConn_ReconnectHandlerOption(t *testing.T) {
	url := startTestNATS(t)

	reconnected := make(chan struct{}, 1)
	c, err := Connect(url, "bus-test",
		nats.ReconnectHandler(func(_ *nats.Conn) {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer c.Close()

	// Verify the handler option was accepted (connection is alive).
	if !c.nc.IsConnected() {
		t.Fatal("expected connection to be alive")
	}
}

func TestConn_ImplementsInterfaces(t *testing.T) {
	var _ Publisher = (*Conn)(nil)
	var _ Subscriber = (*Conn)(nil)
}

// Package controller connects the bus to the tracker: it decodes
// command, sensor, and ack traffic into tracker calls and publishes the
// tracker's replies, statuses, actuations, and alerts back out.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/doorman-io/doorman/internal/bus"
	"github.com/doorman-io/doorman/internal/metrics"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/registry"
	"github.com/doorman-io/doorman/internal/tracker"
)

// skippedAlertTTL bounds how long a configuration alert stays
// interesting to downstream sinks.
const skippedAlertTTL = 24 * time.Hour

// Controller owns a tracker and acts as its Emitter.
type Controller struct {
	pub    bus.Publisher
	subj   bus.Subjects
	reg    *registry.Registry
	trk    *tracker.Tracker
	logger *slog.Logger
}

// New builds a controller for the registry. The controller itself is
// the tracker's emitter, so outbound traffic flows through pub.
func New(reg *registry.Registry, pub bus.Publisher, subj bus.Subjects, logger *slog.Logger) *Controller {
	c := &Controller{
		pub:    pub,
		subj:   subj,
		reg:    reg,
		logger: logger,
	}
	c.trk = tracker.New(reg, c)
	return c
}

// Tracker exposes the read model for the admin API and CLI.
func (c *Controller) Tracker() *tracker.Tracker { return c.trk }

// Run subscribes to command, sensor, and ack traffic and dispatches it
// until ctx is cancelled. Startup statuses and configuration alerts are
// published once the subscriptions are live.
func (c *Controller) Run(ctx context.Context, sub bus.Subscriber) error {
	cmds, cancelCmds, err := sub.Subscribe(c.subj.Commands())
	if err != nil {
		return fmt.Errorf("controller: subscribe commands: %w", err)
	}
	defer cancelCmds()

	sensors, cancelSensors, err := sub.Subscribe(c.subj.Sensors())
	if err != nil {
		return fmt.Errorf("controller: subscribe sensors: %w", err)
	}
	defer cancelSensors()

	acks, cancelAcks, err := sub.Subscribe(c.subj.Ack())
	if err != nil {
		return fmt.Errorf("controller: subscribe acks: %w", err)
	}
	defer cancelAcks()

	c.announceStartup()
	c.logger.Info("controller: started",
		"doors", c.reg.Len(), "skipped", len(c.reg.Skipped()))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller: stopping")
			return nil
		case m, ok := <-cmds:
			if !ok {
				return nil
			}
			c.handleCommand(m)
		case m, ok := <-sensors:
			if !ok {
				return nil
			}
			c.handleSensor(m)
		case m, ok := <-acks:
			if !ok {
				return nil
			}
			c.handleAck(m)
		}
	}
}

// announceStartup raises one alert per door entry the registry refused,
// then publishes every loaded door's initial status.
func (c *Controller) announceStartup() {
	now := time.Now().UTC()
	for _, sk := range c.reg.Skipped() {
		c.Alert(model.Alert{
			DoorID:   sk.ID,
			Title:    fmt.Sprintf("%s: door not loaded", sk.ID),
			Message:  sk.Reason.Error(),
			Severity: model.SeverityWarning,
			Expires:  now.Add(skippedAlertTTL),
			At:       now,
		})
	}
	c.trk.PublishStartup()
}

func (c *Controller) handleCommand(m bus.Msg) {
	doorID, ok := c.subj.DoorFromCommand(m.Subject)
	if !ok {
		c.logger.Warn("controller: command on unparseable subject", "subject", m.Subject)
		return
	}
	var cmd model.Command
	if err := json.Unmarshal(m.Data, &cmd); err != nil {
		c.logger.Warn("controller: bad command payload", "subject", m.Subject, "err", err)
		return
	}
	c.trk.HandleCommand(doorID, cmd, m.Reply)
}

func (c *Controller) handleSensor(m bus.Msg) {
	var ss model.SensorStatus
	if err := json.Unmarshal(m.Data, &ss); err != nil {
		c.logger.Warn("controller: bad sensor payload", "subject", m.Subject, "err", err)
		return
	}
	// The subject token is authoritative; the payload id is a fallback
	// for producers publishing on the bare sensor subject.
	sensorID, ok := c.subj.SensorFromSubject(m.Subject)
	if !ok || sensorID == "" {
		sensorID = ss.SensorID
	}
	if sensorID == "" {
		c.logger.Warn("controller: sensor reading without an id", "subject", m.Subject)
		return
	}
	c.trk.HandleSensor(sensorID, ss.Reading, ss.At)
}

func (c *Controller) handleAck(m bus.Msg) {
	var ack model.ActuatorAck
	if err := json.Unmarshal(m.Data, &ack); err != nil {
		c.logger.Warn("controller: bad ack payload", "subject", m.Subject, "err", err)
		return
	}
	if ack.CorrelationID == "" {
		c.logger.Warn("controller: ack without correlation id")
		return
	}
	c.trk.HandleAck(ack)
}

// Actuate publishes a pulse command on the actuator's subject.
func (c *Controller) Actuate(cmd model.ActuatorCommand) {
	c.publish(c.subj.Actuate(cmd.ActuatorID), cmd)
}

// Reply publishes a command reply on the door's reply subject and, when
// the command arrived as a bus request, to its reply inbox too.
func (c *Controller) Reply(inbox string, r model.Reply) {
	c.publish(c.subj.Reply(r.DoorID), r)
	if inbox != "" {
		c.publish(inbox, r)
	}
}

// Status publishes a status update on the door's status subject.
func (c *Controller) Status(u model.StatusUpdate) {
	c.publish(c.subj.Status(u.DoorID), u)
}

// Alert publishes an alert on the shared alert subject.
func (c *Controller) Alert(a model.Alert) {
	c.publish(c.subj.Alert(), a)
}

func (c *Controller) publish(subject string, v any) {
	if err := c.pub.Publish(context.Background(), subject, v); err != nil {
		metrics.PublishFailuresTotal.Inc()
		c.logger.Error("controller: publish failed", "subject", subject, "err", err)
	}
}

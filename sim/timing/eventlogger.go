package timing

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/hooking"
)

// EventLogger is an hook that prints the event information
type EventLogger struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewEventLogger returns a new EventLogger which will write in to the logger
// at debug level.
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger
	h.level = logrus.DebugLevel

	return h
}

// WithLevel changes the level the events are logged at.
func (h *EventLogger) WithLevel(level logrus.Level) *EventLogger {
	h.level = level
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*Event)
	if !ok {
		return
	}

	entry := h.logger.WithFields(logrus.Fields{
		"time":     evt.Time(),
		"priority": evt.Priority(),
		"seq":      evt.Seq(),
		"id":       evt.ID(),
	})

	name := evt.Name()
	if name == "" {
		name = "event"
	}

	switch h.level {
	case logrus.TraceLevel:
		entry.Trace(name)
	case logrus.InfoLevel:
		entry.Info(name)
	default:
		entry.Debug(name)
	}
}

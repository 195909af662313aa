package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/metrics"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/Ananth-NQI/soko-ussd/internal/ussd"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Shown whenever a turn fails outside the scripted menus
const msgServiceError = "Samahani, huduma haipatikani kwa sasa. Please try again later."

// Notifier queues SMS without waiting for delivery
type Notifier interface {
	Notify(to, body string)
}

// USSDHandler adapts gateway requests to the menu state machine
type USSDHandler struct {
	sessions session.Store
	machine  *ussd.Machine
	notifier Notifier
	log      logrus.FieldLogger
}

// NewUSSDHandler creates a new USSD handler
func NewUSSDHandler(sessions session.Store, machine *ussd.Machine, notifier Notifier, log logrus.FieldLogger) *USSDHandler {
	return &USSDHandler{
		sessions: sessions,
		machine:  machine,
		notifier: notifier,
		log:      log,
	}
}

// USSDRequest is one turn as posted by the telephony gateway
type USSDRequest struct {
	SessionID   string `form:"sessionId" json:"sessionId"`
	ServiceCode string `form:"serviceCode" json:"serviceCode"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber"`
	Text        string `form:"text" json:"text"`
}

// Handle processes a USSD turn. It always answers 200 with a CON/END line
// so the gateway shows the trader a message instead of a network error.
func (h *USSDHandler) Handle(c *fiber.Ctx) error {
	var req USSDRequest
	reply := ussd.End(msgServiceError)

	if err := c.BodyParser(&req); err != nil {
		h.log.WithError(err).Warn("Error parsing USSD request")
	} else if strings.TrimSpace(req.SessionID) == "" {
		h.log.WithField("phone", req.PhoneNumber).Warn("USSD request without session ID")
	} else {
		reply = h.Turn(c.UserContext(), req)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(reply.String())
}

// Turn runs one request through the session store and state machine
func (h *USSDHandler) Turn(ctx context.Context, req USSDRequest) (reply ussd.Reply) {
	start := time.Now()
	state := "unknown"

	logEntry := h.log.WithFields(logrus.Fields{
		"session": req.SessionID,
		"phone":   req.PhoneNumber,
	})

	defer func() {
		if r := recover(); r != nil {
			logEntry.WithField("panic", r).Error("Recovered from panic while handling USSD turn")
			_ = h.sessions.Delete(ctx, req.SessionID)
			reply = ussd.End(msgServiceError)
		}
		if reply.Message == msgServiceError {
			metrics.TurnFailures.Inc()
		}
		metrics.Turns.WithLabelValues(state, replyLabel(reply)).Inc()
		metrics.TurnDuration.WithLabelValues(state).Observe(time.Since(start).Seconds())
	}()

	sess, err := h.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		logEntry.WithError(err).Error("Failed to load session")
		return ussd.End(msgServiceError)
	}
	state = string(sess.State)
	sess.Phone = req.PhoneNumber

	turn := ussd.Turn{
		SessionKey:  req.SessionID,
		ServiceCode: req.ServiceCode,
		Phone:       req.PhoneNumber,
		Text:        req.Text,
	}
	logEntry.WithFields(logrus.Fields{
		"state": state,
		"input": req.Text,
		"key":   turn.Keystroke(),
	}).Debug("USSD turn")

	result := h.machine.Step(ctx, sess, turn)

	if result.Reply.End {
		if err := h.sessions.Delete(ctx, req.SessionID); err != nil {
			logEntry.WithError(err).Error("Failed to delete finished session")
		}
	} else if err := h.sessions.Save(ctx, sess); err != nil {
		logEntry.WithError(err).Error("Failed to save session")
		_ = h.sessions.Delete(ctx, req.SessionID)
		return ussd.End(msgServiceError)
	}

	for _, n := range result.Notifications {
		h.notifier.Notify(n.To, n.Body)
	}

	return result.Reply
}

func replyLabel(r ussd.Reply) string {
	if r.End {
		return "end"
	}
	return "continue"
}

package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one SMS. Implementations make a single attempt;
// retries belong to NotificationService.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type TwilioService struct {
	client *twilio.RestClient
	from   string // sender ID or Twilio number
	log    logrus.FieldLogger
}

// NewTwilioService creates a new Twilio SMS sender
func NewTwilioService(accountSid, authToken, from string, log logrus.FieldLogger) (*TwilioService, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		client: client,
		from:   from,
		log:    log,
	}, nil
}

// Send sends a plain SMS via Twilio
func (t *TwilioService) Send(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.WithFields(logrus.Fields{"to": to, "sid": sid}).Debug("SMS sent")
	return nil
}

// LogSender only logs messages. Used when no SMS provider is configured.
type LogSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

func (l *LogSender) Send(ctx context.Context, to, body string) error {
	l.log.WithField("to", to).Infof("SMS (not sent - no provider configured): %s", body)
	return nil
}

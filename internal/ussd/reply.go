package ussd

import "strings"

// Separator joins keystrokes in the gateway's accumulated input
const Separator = "*"

// Turn is one inbound request from the telephony gateway
type Turn struct {
	SessionKey  string
	ServiceCode string
	Phone       string
	Text        string // every keystroke so far, joined by Separator
}

// Keystroke returns the input supplied in this turn
func (t Turn) Keystroke() string {
	return LatestKeystroke(t.Text)
}

// IsFirst reports whether this turn opens the conversation
func (t Turn) IsFirst() bool {
	return t.Text == ""
}

// LatestKeystroke returns the segment after the final separator.
// "1*2*3" yields "3"; an empty input yields "".
func LatestKeystroke(text string) string {
	if i := strings.LastIndex(text, Separator); i >= 0 {
		return text[i+1:]
	}
	return text
}

// Reply is the text shown to the user and whether the session ends
type Reply struct {
	End     bool
	Message string
}

// String renders the reply in gateway format: "CON <msg>" or "END <msg>"
func (r Reply) String() string {
	if r.End {
		return "END " + r.Message
	}
	return "CON " + r.Message
}

// Continue builds a reply that waits for another keystroke
func Continue(message string) Reply {
	return Reply{Message: message}
}

// End builds a reply that terminates the conversation
func End(message string) Reply {
	return Reply{End: true, Message: message}
}

// Notification is an SMS the machine wants sent as a side effect
type Notification struct {
	To   string
	Body string
}

// Result is the outcome of one state machine step
type Result struct {
	Reply         Reply
	Notifications []Notification
}

func (r Result) notify(to, body string) Result {
	r.Notifications = append(r.Notifications, Notification{To: to, Body: body})
	return r
}

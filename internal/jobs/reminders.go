package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/sirupsen/logrus"
)

// Sent to traders who have not paid dues in the last day
const duesReminderSMS = "Kumbuka kulipa ushuru wa leo kupitia *384*123#. Asante kwa kutumia huduma za Soko la Mwenge!"

// UserLister finds traders who have not paid since a point in time
type UserLister interface {
	GetUsersWithoutPaymentSince(ctx context.Context, since time.Time) ([]*models.User, error)
}

// Notifier queues SMS without waiting for delivery
type Notifier interface {
	Notify(to, body string)
}

// DuesReminderJob texts unpaid traders once a day at a fixed hour
type DuesReminderJob struct {
	users    UserLister
	notifier Notifier
	hour     int
	log      logrus.FieldLogger
	now      func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewDuesReminderJob creates a reminder job that fires daily at hour (0-23)
func NewDuesReminderJob(users UserLister, notifier Notifier, hour int, log logrus.FieldLogger) *DuesReminderJob {
	return &DuesReminderJob{
		users:    users,
		notifier: notifier,
		hour:     hour,
		log:      log,
		now:      time.Now,
	}
}

// Start begins the daily schedule
func (j *DuesReminderJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stop != nil {
		j.log.Info("Dues reminder job already running")
		return
	}

	j.stop = make(chan struct{})
	j.stopped = make(chan struct{})
	go j.schedule(j.stop, j.stopped)

	j.log.WithField("hour", j.hour).Info("Dues reminder job started")
}

// Stop halts the schedule and waits for a running batch to finish
func (j *DuesReminderJob) Stop() {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop, j.stopped = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	j.log.Info("Dues reminder job stopped")
}

func (j *DuesReminderJob) schedule(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		wait := j.nextRun(j.now()).Sub(j.now())
		j.log.Debugf("Next dues reminder run in %v", wait)

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := j.Run(context.Background()); err != nil {
			j.log.WithError(err).Error("Dues reminder run failed")
		}
	}
}

// nextRun returns the next occurrence of the reminder hour strictly after now
func (j *DuesReminderJob) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), j.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run sends one batch of reminders and returns how many were queued
func (j *DuesReminderJob) Run(ctx context.Context) (int, error) {
	users, err := j.users.GetUsersWithoutPaymentSince(ctx, j.now().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}

	for _, u := range users {
		j.notifier.Notify(u.Phone, duesReminderSMS)
	}

	j.log.WithField("count", len(users)).Info("Dues reminders queued")
	return len(users), nil
}

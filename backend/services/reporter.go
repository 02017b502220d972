package services

import (
	"sync"
	"time"

	"georetail/backend/system"
)

// DailyReporter posts the current top cities once a day
type DailyReporter struct {
	ranking  *RankingService
	webhook  *WebhookService
	hour     int
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewDailyReporter(ranking *RankingService, webhook *WebhookService, hour int) *DailyReporter {
	return &DailyReporter{
		ranking:  ranking,
		webhook:  webhook,
		hour:     hour,
		stopChan: make(chan struct{}),
	}
}

// Start schedules the digest at the configured hour. A negative hour or a
// disabled webhook leaves the reporter idle.
func (r *DailyReporter) Start() {
	if r.hour < 0 || !r.webhook.IsEnabled() {
		return
	}

	go func() {
		for {
			wait := time.Until(NextDigest(time.Now(), r.hour))
			system.Info("Next daily digest scheduled in %v", wait.Round(time.Second))

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				r.SendReport()
			case <-r.stopChan:
				timer.Stop()
				return
			}
		}
	}()
}

func (r *DailyReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// NextDigest is the first time strictly after now at the given hour
func NextDigest(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SendReport posts the unfiltered top N
func (r *DailyReporter) SendReport() {
	if !r.webhook.IsEnabled() {
		return
	}

	res, err := r.ranking.Top(Filter{})
	if err != nil {
		system.Error("Failed to build daily digest: %v", err)
		return
	}
	if err := r.webhook.SendDigest(r.ranking.Info(), res.Cities); err != nil {
		system.Warn("Failed to send daily digest: %v", err)
	}
}

package notifier

import "time"

// Config controls delivery.
type Config struct {
	ChatID       int64
	ChatUsername string
	ThreadID     int

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Recorder receives delivery outcomes (metrics).
type Recorder interface {
	NotificationSent()
	NotificationFailed()
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent()   {}
func (nopRecorder) NotificationFailed() {}

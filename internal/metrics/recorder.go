package metrics

import "time"

// Outcome labels the result of one rebuild.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Trigger labels what asked for a rebuild.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerWatcher Trigger = "watcher"
	TriggerResync  Trigger = "resync"
	TriggerManual  Trigger = "manual"
)

// Recorder receives build observations. NoopRecorder is used when metrics are disabled.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(trigger Trigger, outcome Outcome)
	SetEntries(n int)
	SetSiteVersion(v uint64)
	IncWatcherEvent(op string)
	IncWatcherError()
}

type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(Trigger, Outcome) {}
func (NoopRecorder) SetEntries(int) {}
func (NoopRecorder) SetSiteVersion(uint64) {}
func (NoopRecorder) IncWatcherEvent(string) {}
func (NoopRecorder) IncWatcherError() {}

// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Registration rejection reasons.
const (
	ReasonMissingField   = "missing_field"
	ReasonEmailExists    = "email_exists"
	ReasonUsernameExists = "username_exists"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserRegistered()
	IncRegistrationRejected(reason string)
	IncLoginSucceeded()
	IncLoginFailed()
	ObservePasswordHashDuration(duration time.Duration)

	// Maintenance record metrics
	IncRecordCreated()
	IncRecordsListed(count int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

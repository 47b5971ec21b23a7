package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserRegistered()                        {}
func (n *NoopRecorder) IncRegistrationRejected(string)            {}
func (n *NoopRecorder) IncLoginSucceeded()                        {}
func (n *NoopRecorder) IncLoginFailed()                           {}
func (n *NoopRecorder) ObservePasswordHashDuration(time.Duration) {}
func (n *NoopRecorder) IncRecordCreated()                         {}
func (n *NoopRecorder) IncRecordsListed(int)                      {}

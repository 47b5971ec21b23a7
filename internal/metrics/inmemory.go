package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered       uint64
	RegistrationsRejected map[string]uint64
	LoginsSucceeded       uint64
	LoginsFailed          uint64
	PasswordHashCount     uint64
	PasswordHashTotalNs   int64
	RecordsCreated        uint64
	RecordListings        uint64
	RecordsListedTotal    uint64
}

// InMemoryRecorder keeps counters in memory. It backs the /metrics endpoint
// and is safe for concurrent use.
type InMemoryRecorder struct {
	usersRegistered     atomic.Uint64
	rejectedMissing     atomic.Uint64
	rejectedEmail       atomic.Uint64
	rejectedUsername    atomic.Uint64
	loginsSucceeded     atomic.Uint64
	loginsFailed        atomic.Uint64
	passwordHashCount   atomic.Uint64
	passwordHashTotalNs atomic.Int64
	recordsCreated      atomic.Uint64
	recordListings      atomic.Uint64
	recordsListedTotal  atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered: m.usersRegistered.Load(),
		RegistrationsRejected: map[string]uint64{
			ReasonMissingField:   m.rejectedMissing.Load(),
			ReasonEmailExists:    m.rejectedEmail.Load(),
			ReasonUsernameExists: m.rejectedUsername.Load(),
		},
		LoginsSucceeded:     m.loginsSucceeded.Load(),
		LoginsFailed:        m.loginsFailed.Load(),
		PasswordHashCount:   m.passwordHashCount.Load(),
		PasswordHashTotalNs: m.passwordHashTotalNs.Load(),
		RecordsCreated:      m.recordsCreated.Load(),
		RecordListings:      m.recordListings.Load(),
		RecordsListedTotal:  m.recordsListedTotal.Load(),
	}
}

// IncUserRegistered increments the registered users counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncRegistrationRejected counts a rejected registration. Unknown reasons are dropped.
func (m *InMemoryRecorder) IncRegistrationRejected(reason string) {
	switch reason {
	case ReasonMissingField:
		m.rejectedMissing.Add(1)
	case ReasonEmailExists:
		m.rejectedEmail.Add(1)
	case ReasonUsernameExists:
		m.rejectedUsername.Add(1)
	}
}

// IncLoginSucceeded increments the successful login counter.
func (m *InMemoryRecorder) IncLoginSucceeded() {
	m.loginsSucceeded.Add(1)
}

// IncLoginFailed increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailed() {
	m.loginsFailed.Add(1)
}

// ObservePasswordHashDuration records how long a password hash took.
func (m *InMemoryRecorder) ObservePasswordHashDuration(duration time.Duration) {
	m.passwordHashCount.Add(1)
	m.passwordHashTotalNs.Add(duration.Nanoseconds())
}

// IncRecordCreated increments the maintenance records created counter.
func (m *InMemoryRecorder) IncRecordCreated() {
	m.recordsCreated.Add(1)
}

// IncRecordsListed records one listing that returned count records.
func (m *InMemoryRecorder) IncRecordsListed(count int) {
	m.recordListings.Add(1)
	m.recordsListedTotal.Add(uint64(count))
}

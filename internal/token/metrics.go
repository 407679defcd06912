package token

import "sync"

// SecurityLevel is derived from the running average entropy of generated
// tokens.
type SecurityLevel string

const (
	LevelStrong     SecurityLevel = "strong"
	LevelAcceptable SecurityLevel = "acceptable"
	LevelWeak       SecurityLevel = "weak"
	LevelUnknown    SecurityLevel = "unknown"
)

// Metrics holds process-wide token counters. It is explicitly owned and
// injected, not a package singleton, so tests can reset it between cases.
// All methods are safe for concurrent use and tolerate a nil receiver.
type Metrics struct {
	mu                 sync.Mutex
	policy             Policy
	tokensGenerated    int64
	validationFailures int64
	totalEntropyBits   float64
}

type MetricsSnapshot struct {
	TokensGenerated    int64         `json:"tokens_generated"`
	ValidationFailures int64         `json:"validation_failures"`
	AverageEntropyBits float64       `json:"average_entropy_bits"`
	SecurityLevel      SecurityLevel `json:"security_level"`
}

func NewMetrics(policy Policy) *Metrics {
	return &Metrics{policy: policy}
}

func (m *Metrics) RecordGenerated(entropyBits float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensGenerated++
	m.totalEntropyBits += entropyBits
}

func (m *Metrics) RecordValidationFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationFailures++
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{SecurityLevel: LevelUnknown}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		TokensGenerated:    m.tokensGenerated,
		ValidationFailures: m.validationFailures,
		SecurityLevel:      LevelUnknown,
	}
	if m.tokensGenerated > 0 {
		snapshot.AverageEntropyBits = m.totalEntropyBits / float64(m.tokensGenerated)
		switch {
		case snapshot.AverageEntropyBits >= m.policy.LowRiskEntropyBits:
			snapshot.SecurityLevel = LevelStrong
		case snapshot.AverageEntropyBits >= m.policy.MinEntropyBits:
			snapshot.SecurityLevel = LevelAcceptable
		default:
			snapshot.SecurityLevel = LevelWeak
		}
	}
	return snapshot
}

// Reset zeroes all counters. Test/debug hook.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensGenerated = 0
	m.validationFailures = 0
	m.totalEntropyBits = 0
}

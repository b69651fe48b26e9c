package domain

// Severity classifies how unusual a flagged transaction is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyType identifies which detector produced an anomaly.
type AnomalyType string

const (
	// AnomalyTypeAmount is produced by the per-category z-score detector.
	AnomalyTypeAmount AnomalyType = "amount"
	// AnomalyTypeIsolationForest is produced by the multivariate ensemble detector.
	AnomalyTypeIsolationForest AnomalyType = "isolation_forest"
)

// Anomaly is a flagged transaction with severity, confidence and a
// human-readable explanation. At most one Anomaly exists per transaction per
// session; the detectors enforce this before emitting, not the store.
//
// ExpectedValue and ActualValue are absolute amounts. Confidence is in [0,1]
// and is a distinct field from any z-score: the two detectors derive it
// differently and the record does not overload one field for both meanings.
type Anomaly struct {
	SessionID     string `json:"session_id"`
	TransactionID string `json:"transaction_id"`

	AnomalyType AnomalyType `json:"anomaly_type"`
	Severity    Severity    `json:"severity"`

	ExpectedValue float64 `json:"expected_value"`
	ActualValue   float64 `json:"actual_value"`
	Confidence    float64 `json:"confidence"`

	Explanation string `json:"explanation"`
}

package dto

// StartReconcileRequest is the request body for starting a reconciliation.
type StartReconcileRequest struct {
	Kind string `json:"kind"` // "transactions", "balances" or "all" (default)
}

// StartReconcileResponse is returned when a reconciliation job is started.
type StartReconcileResponse struct {
	JobID  string `json:"job_id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// ReconcileJobResponse represents a reconciliation job's status.
type ReconcileJobResponse struct {
	JobID       string  `json:"job_id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Phase       string  `json:"phase"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	LastUpdate  string  `json:"last_update"`
	Result      any     `json:"result,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// ReconcileJobsResponse lists reconciliation jobs.
type ReconcileJobsResponse struct {
	Jobs  []ReconcileJobResponse `json:"jobs"`
	Count int                    `json:"count"`
}

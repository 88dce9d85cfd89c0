package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates that no storage backend answers.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentVectorStore = "vector_store"
	ComponentDatabase    = "database"
	ComponentEmbedding   = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	vectors   Pinger
	database  Pinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(vectors, database Pinger, embedding EmbeddingChecker) *Service {
	return &Service{vectors: vectors, database: database, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentVectorStore: result(s.vectors.Ping(ctx)),
		ComponentDatabase:    result(s.database.Ping(ctx)),
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentVectorStore] == CheckError && checks[ComponentDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}

package chi

import (
	"net/http"

	kpiuc "github.com/kailas-cloud/reportlens/internal/usecase/kpi"
	overviewuc "github.com/kailas-cloud/reportlens/internal/usecase/overview"
)

// ComputeKPI handles POST /api/kpi.
func (s *Server) ComputeKPI(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req kpiRequest
	if !s.decode(w, r, &req) {
		return
	}

	rep, err := s.kpis.Compute(r.Context(), kpiuc.Request{
		UserID:      id.UserID,
		DocumentID1: req.DocumentID1,
		DocumentID2: req.DocumentID2,
		KPIName:     req.KPIName,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpiToResponse(rep))
}

// Overview handles POST /api/overview.
func (s *Server) Overview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req overviewRequest
	if !s.decode(w, r, &req) {
		return
	}

	table, err := s.overviews.Compare(r.Context(), overviewuc.Request{
		UserID:      id.UserID,
		DocumentID1: req.DocumentID1,
		DocumentID2: req.DocumentID2,
		Message:     req.Message,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewToResponse(table))
}

package handler

import (
	"net/http"

	"detectserver/internal/dto"
	"detectserver/internal/service"
)

// ViewerCounter reports connected live viewers.
type ViewerCounter interface {
	GetClientCount() int
}

// HealthHandler reports liveness along with the configured backend.
func HealthHandler(backend string, manager *service.Manager, viewers ViewerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := dto.HealthStatus{
			Status:  "ok",
			Backend: backend,
			Journal: manager.Journal() != nil,
		}
		if viewers != nil {
			status.Viewers = viewers.GetClientCount()
		}
		writeJSON(w, http.StatusOK, status)
	}
}

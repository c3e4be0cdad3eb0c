package http

import (
	"net/http"

	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
)

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, &model.HealthStatus{
		Status:  "healthy",
		Service: types.AppName,
		Version: types.Version,
	})
}

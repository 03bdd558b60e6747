package handler

import (
	"net/http"

	"detectserver/internal/service"
)

// MetadataHandler serves the fixed model description.
func MetadataHandler(provider *service.MetadataProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, provider.Metadata())
	}
}

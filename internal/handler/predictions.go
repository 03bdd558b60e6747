package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/repository"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// journalDisabled answers when the server runs without a journal.
func journalDisabled(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "prediction journal is disabled")
}

// PredictionStatsHandler returns journal aggregates.
func PredictionStatsHandler(journal repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			journalDisabled(w)
			return
		}
		stats, err := journal.GetStats()
		if err != nil {
			logger.Error("Error reading prediction stats: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read prediction stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// RecentPredictionsHandler lists the newest journal entries; ?limit=N.
func RecentPredictionsHandler(journal repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			journalDisabled(w)
			return
		}

		limit := atoiDefault(r.URL.Query().Get("limit"), defaultRecentLimit)
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}

		records, err := journal.GetRecent(limit)
		if err != nil {
			logger.Error("Error reading recent predictions: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read predictions")
			return
		}
		if records == nil {
			records = []model.PredictionRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// PredictionHandler returns one journal entry by id.
func PredictionHandler(journal repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			journalDisabled(w)
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "id must be a positive integer")
			return
		}

		record, err := journal.GetByID(id)
		if err != nil {
			logger.Error("Error reading prediction %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to read prediction")
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

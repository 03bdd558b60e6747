package handler

import (
	"net/http"
	"os"
	"slices"

	"github.com/go-chi/chi/v5"

	"detectserver/internal/logger"
)

// levelParam returns the {level} URL parameter when it names a log level.
func levelParam(r *http.Request) (string, bool) {
	level := chi.URLParam(r, "level")
	return level, slices.Contains(logger.Levels, level)
}

// ShowLogsHandler serves the log file of {level} as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := levelParam(r)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown log level")
			return
		}

		filePath := log.FilePath(level)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + level + ".log"))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of {level}.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := levelParam(r)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown log level")
			return
		}

		if err := log.CleanLogs(level); err != nil {
			log.Error("Error clearing %s logs: %v", level, err)
			writeError(w, http.StatusInternalServerError, "failed to clear logs")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package sqlite

import (
	"database/sql"
	"fmt"

	"detectserver/internal/model"
)

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert stores a prediction and its detections in one transaction.
func (r *PredictionRepository) Insert(rec *model.PredictionRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO predictions (filename, model, outcome, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Filename, rec.Model, rec.Outcome, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read prediction id: %w", err)
	}

	if len(rec.Detections) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO prediction_detections
				(prediction_id, position, label, confidence, left_px, top_px, right_px, bottom_px)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, det := range rec.Detections {
			if _, err := stmt.Exec(id, i, det.Label, det.Confidence, det.Left, det.Top, det.Right, det.Bottom); err != nil {
				return 0, fmt.Errorf("failed to insert detection: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prediction: %w", err)
	}
	rec.ID = id
	return id, nil
}

// GetByID retrieves a prediction with its detections.
func (r *PredictionRepository) GetByID(id int64) (*model.PredictionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rec model.PredictionRecord
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, model, outcome, duration_ms, created_at
		FROM predictions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Filename, &rec.Model, &rec.Outcome, &rec.DurationMS, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	rec.Detections, err = r.detections(rec.ID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecent returns the newest predictions first.
func (r *PredictionRepository) GetRecent(limit int) ([]model.PredictionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, filename, model, outcome, duration_ms, created_at
		FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	var records []model.PredictionRecord
	for rows.Next() {
		var rec model.PredictionRecord
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Model, &rec.Outcome, &rec.DurationMS, &rec.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	for i := range records {
		if records[i].Detections, err = r.detections(records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// detections loads the detections of one prediction in drawing order.
// Callers hold the read lock.
func (r *PredictionRepository) detections(predictionID int64) ([]model.DetectionResult, error) {
	rows, err := r.db.Conn().Query(`
		SELECT label, confidence, left_px, top_px, right_px, bottom_px
		FROM prediction_detections WHERE prediction_id = ? ORDER BY position
	`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.DetectionResult{}
	for rows.Next() {
		var det model.DetectionResult
		if err := rows.Scan(&det.Label, &det.Confidence, &det.Left, &det.Top, &det.Right, &det.Bottom); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, rows.Err()
}

// GetStats aggregates predictions by outcome and model, and detections by label.
func (r *PredictionRepository) GetStats() (*model.PredictionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.PredictionStats{
		ByOutcome: make(map[string]int),
		ByModel:   make(map[string]int),
		ByLabel:   make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	groups := []struct {
		query  string
		target map[string]int
	}{
		{`SELECT outcome, COUNT(*) FROM predictions GROUP BY outcome`, stats.ByOutcome},
		{`SELECT model, COUNT(*) FROM predictions GROUP BY model`, stats.ByModel},
		{`SELECT label, COUNT(*) FROM prediction_detections GROUP BY label`, stats.ByLabel},
	}
	for _, g := range groups {
		if err := r.countInto(g.query, g.target); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (r *PredictionRepository) countInto(query string, target map[string]int) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan stats: %w", err)
		}
		target[key] = count
	}
	return rows.Err()
}

// DeleteAll removes every prediction and detection.
func (r *PredictionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM prediction_detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}

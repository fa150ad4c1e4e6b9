package store

import (
	"database/sql"
	"fmt"
	"time"

	"redraft/internal/core"
)

const detectionColumns = `
	id, article_id, detection_type, platform, score, threshold, is_passed,
	detected_at, profile_id, egress_ip, attempts, page_status`

func scanDetection(row interface{ Scan(...any) error }) (*core.DetectionResult, error) {
	var d core.DetectionResult
	err := row.Scan(
		&d.ID, &d.ArticleID, &d.DetectionType, &d.Platform, &d.Score,
		&d.Threshold, &d.Passed, &d.DetectedAt, &d.ProfileID, &d.EgressIP,
		&d.Attempts, &d.PageStatus,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AppendDetection records one detector submission. Rows are append-only and
// never mutated afterwards.
func (s *Store) AppendDetection(d *core.DetectionResult) (int64, error) {
	if d.ArticleID == 0 {
		return 0, core.E(core.KindValidation, "detection result requires article_id")
	}
	detectedAt := d.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	detectionType := d.DetectionType
	if detectionType == "" {
		detectionType = "ai_probability"
	}

	res, err := s.db.Exec(`
	INSERT INTO detection_results
	(article_id, detection_type, platform, score, threshold, is_passed,
	 detected_at, profile_id, egress_ip, attempts, page_status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ArticleID, detectionType, d.Platform, d.Score, d.Threshold,
		d.Passed, detectedAt, d.ProfileID, d.EgressIP, d.Attempts, d.PageStatus)
	if err != nil {
		return 0, fmt.Errorf("insert detection result: %w", err)
	}
	return res.LastInsertId()
}

// LastDetection returns the most recent detection result for an article, or
// nil when the article has never been submitted.
func (s *Store) LastDetection(articleID int64) (*core.DetectionResult, error) {
	row := s.db.QueryRow("SELECT"+detectionColumns+
		" FROM detection_results WHERE article_id = ? ORDER BY detected_at DESC, id DESC LIMIT 1",
		articleID)
	d, err := scanDetection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan detection: %w", err)
	}
	return d, nil
}

// ListDetections returns the full detection history for an article, oldest
// first.
func (s *Store) ListDetections(articleID int64) ([]core.DetectionResult, error) {
	rows, err := s.db.Query("SELECT"+detectionColumns+
		" FROM detection_results WHERE article_id = ? ORDER BY detected_at ASC, id ASC",
		articleID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var results []core.DetectionResult
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

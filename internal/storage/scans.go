package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/service"
)

const scanColumns = `id, source, found, masked_number, last4, box_count, boxes,
	attempts, unrecoverable, error, duration_ms, has_expiry, scanned_at`

// SaveScan stores rec and sets its ID.
func (s *SQLiteStorage) SaveScan(ctx context.Context, rec *model.ScanRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateScanRecord(rec); err != nil {
		return err
	}

	boxes := rec.Boxes
	if boxes == nil {
		boxes = []model.DetectedBox{}
	}
	boxesJSON, err := json.Marshal(boxes)
	if err != nil {
		return fmt.Errorf("failed to marshal boxes: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (source, found, masked_number, last4, box_count, boxes,
			attempts, unrecoverable, error, duration_ms, has_expiry, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Source,
		rec.Found,
		nullString(rec.MaskedNumber),
		nullString(rec.Last4),
		len(rec.Boxes),
		string(boxesJSON),
		rec.Attempts,
		rec.Unrecoverable,
		nullString(rec.Error),
		rec.Duration.Milliseconds(),
		rec.HasExpiry,
		rec.ScannedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get scan id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetScan returns the scan with the given id.
func (s *SQLiteStorage) GetScan(ctx context.Context, id int64) (*model.ScanRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %d: %w", id, err)
	}
	return rec, nil
}

// ListScans returns scans newest first.
func (s *SQLiteStorage) ListScans(ctx context.Context, filter service.ScanFilter) ([]model.ScanRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.FoundOnly {
		where = append(where, "found = 1")
	}
	if filter.Since != nil {
		where = append(where, "scanned_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + scanColumns + ` FROM scans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY scanned_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scans []model.ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}
	return scans, nil
}

// DeleteScansBefore removes scans older than before and returns how many were
// removed.
func (s *SQLiteStorage) DeleteScansBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE scanned_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete scans: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted scans: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.ScanRecord, error) {
	var (
		rec                   model.ScanRecord
		masked, last4, errMsg sql.NullString
		boxCount              int
		boxesJSON             string
		durationMS            int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Source,
		&rec.Found,
		&masked,
		&last4,
		&boxCount,
		&boxesJSON,
		&rec.Attempts,
		&rec.Unrecoverable,
		&errMsg,
		&durationMS,
		&rec.HasExpiry,
		&rec.ScannedAt,
	); err != nil {
		return nil, err
	}

	rec.MaskedNumber = masked.String
	rec.Last4 = last4.String
	rec.Error = errMsg.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	if boxCount > 0 {
		if err := json.Unmarshal([]byte(boxesJSON), &rec.Boxes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal boxes: %w", err)
		}
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-geo/nexus-gateway/internal/scope"
)

// AddGrant creates a new grant for a subject.
// Exactly one of MunicipalityID and StateCode must be set; ValidUntil, when
// present, must be in the future. Returns the new grant ID.
func (s *SQLiteStorage) AddGrant(ctx context.Context, g *scope.Grant) (int64, error) {
	if g.SubjectID == "" {
		return 0, fmt.Errorf("subject id cannot be empty")
	}
	if (g.MunicipalityID != 0) == (g.StateCode != "") {
		return 0, ErrInvalidGrant
	}
	if g.ValidUntil != nil && !g.ValidUntil.After(time.Now()) {
		return 0, fmt.Errorf("valid_until must be in the future")
	}

	var municipalityID, uf any
	if g.MunicipalityID != 0 {
		municipalityID = g.MunicipalityID
	}
	if g.StateCode != "" {
		uf = strings.ToUpper(g.StateCode)
	}

	var validUntil any
	if g.ValidUntil != nil {
		validUntil = g.ValidUntil.UTC()
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO grants (subject_id, municipality_id, uf, exclusive, valid_until) VALUES (?, ?, ?, ?, ?)",
		g.SubjectID, municipalityID, uf, g.Exclusive, validUntil)
	if err != nil {
		return 0, fmt.Errorf("failed to insert grant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GrantsForSubject retrieves all grants for a subject, including expired
// ones; activity filtering happens at resolution time so that "now" is
// decided by the caller. Returns an empty slice if no grants exist.
func (s *SQLiteStorage) GrantsForSubject(ctx context.Context, subjectID string) ([]scope.Grant, error) {
	return s.queryGrants(ctx,
		"SELECT id, subject_id, municipality_id, uf, exclusive, valid_until, created_at FROM grants WHERE subject_id = ? ORDER BY created_at ASC",
		subjectID)
}

// ListGrants retrieves all grants across all subjects, for the admin API.
func (s *SQLiteStorage) ListGrants(ctx context.Context) ([]scope.Grant, error) {
	return s.queryGrants(ctx,
		"SELECT id, subject_id, municipality_id, uf, exclusive, valid_until, created_at FROM grants ORDER BY created_at ASC")
}

func (s *SQLiteStorage) queryGrants(ctx context.Context, query string, args ...any) ([]scope.Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	grants := []scope.Grant{}
	for rows.Next() {
		var g scope.Grant
		var municipalityID sql.NullInt64
		var uf sql.NullString
		var validUntil sql.NullTime

		if err := rows.Scan(&g.ID, &g.SubjectID, &municipalityID, &uf, &g.Exclusive, &validUntil, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant row: %w", err)
		}
		if municipalityID.Valid {
			g.MunicipalityID = municipalityID.Int64
		}
		if uf.Valid {
			g.StateCode = uf.String
		}
		if validUntil.Valid {
			t := validUntil.Time
			g.ValidUntil = &t
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grant rows: %w", err)
	}
	return grants, nil
}

// DeleteGrant deletes a grant by ID.
// Returns ErrNotFound if the grant doesn't exist.
func (s *SQLiteStorage) DeleteGrant(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM grants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

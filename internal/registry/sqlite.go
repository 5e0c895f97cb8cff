package registry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"zonegate/internal/models"
)

// SQLiteRegistry stores codes in the embedded app database.
type SQLiteRegistry struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteRegistry { return &SQLiteRegistry{db: db} }

func (r *SQLiteRegistry) FindByCode(ctx context.Context, code string) (models.IdentityRecord, error) {
	var rec models.IdentityRecord
	var levelName, zonesCSV string
	var active int
	var lastUsed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT code,display_name,contact_handle,access_level,granted_zones,is_active,usage_counter,created_at,last_used_at FROM entry_codes WHERE code=?`,
		code,
	).Scan(&rec.Code, &rec.DisplayName, &rec.ContactHandle, &levelName, &zonesCSV, &active, &rec.UsageCounter, &rec.CreatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return models.IdentityRecord{}, ErrNotFound
	}
	if err != nil {
		return models.IdentityRecord{}, err
	}
	rec.Level, _ = models.ParseLevel(levelName)
	rec.GrantedZones = splitZones(zonesCSV)
	rec.IsActive = active == 1
	if lastUsed.Valid {
		t := lastUsed.Time
		rec.LastUsedAt = &t
	}
	return rec, nil
}

func (r *SQLiteRegistry) CreateCode(ctx context.Context, rec models.IdentityRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entry_codes(code,display_name,contact_handle,access_level,granted_zones,is_active,usage_counter,created_at) VALUES(?,?,?,?,?,?,?,?)`,
		rec.Code, rec.DisplayName, rec.ContactHandle, rec.Level.String(), joinZones(rec.GrantedZones), boolToInt(rec.IsActive), rec.UsageCounter, createdAt,
	)
	if err != nil && isUniqueErr(err) {
		return ErrConflict
	}
	return err
}

func (r *SQLiteRegistry) TouchUsage(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entry_codes SET usage_counter=usage_counter+1, last_used_at=? WHERE code=?`,
		time.Now().UTC(), code,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteRegistry) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entry_codes SET is_active=? WHERE code=?`, boolToInt(active), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteRegistry) SetZones(ctx context.Context, code string, zones []string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entry_codes SET granted_zones=? WHERE code=?`, joinZones(zones), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteRegistry) SetLevel(ctx context.Context, code string, level models.AccessLevel) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entry_codes SET access_level=? WHERE code=?`, level.String(), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteRegistry) List(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code,display_name,contact_handle,access_level,granted_zones,is_active,usage_counter,created_at,last_used_at FROM entry_codes ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IdentityRecord
	for rows.Next() {
		var rec models.IdentityRecord
		var levelName, zonesCSV string
		var active int
		var lastUsed sql.NullTime
		if err := rows.Scan(&rec.Code, &rec.DisplayName, &rec.ContactHandle, &levelName, &zonesCSV, &active, &rec.UsageCounter, &rec.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		rec.Level, _ = models.ParseLevel(levelName)
		rec.GrantedZones = splitZones(zonesCSV)
		rec.IsActive = active == 1
		if lastUsed.Valid {
			t := lastUsed.Time
			rec.LastUsedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRegistry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinZones(zones []string) string {
	clean := make([]string, 0, len(zones))
	for _, z := range zones {
		z = strings.TrimSpace(z)
		if z != "" {
			clean = append(clean, z)
		}
	}
	return strings.Join(clean, ",")
}

func splitZones(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

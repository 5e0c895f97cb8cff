package registry

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zonegate/internal/config"
	"zonegate/internal/models"
)

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLRegistry reads and writes codes in an external relational store
// (postgres or mysql) with a configurable table and column layout, so the
// service can sit in front of a registry it does not own the schema of.
type SQLRegistry struct {
	db         *sql.DB
	driver     string
	table      string
	codeCol    string
	nameCol    string
	contactCol string
	levelCol   string
	zonesCol   string
	activeCol  string
	usesCol    string
	usedAtCol  string
}

// New builds the registry backend selected by config. The sqlite driver uses
// the shared app DB handle; the others open their own pool.
func New(cfg config.Config, appDB *sql.DB) (Registry, error) {
	switch cfg.RegistryDriver {
	case "", "sqlite":
		return NewSQLite(appDB), nil
	}
	for _, ident := range []string{
		cfg.RegistryTable, cfg.RegistryCodeCol, cfg.RegistryNameCol, cfg.RegistryContactCol,
		cfg.RegistryLevelCol, cfg.RegistryZonesCol, cfg.RegistryActiveCol, cfg.RegistryUsesCol, cfg.RegistryUsedAtCol,
	} {
		if !identRx.MatchString(ident) {
			return nil, fmt.Errorf("invalid SQL identifier %q", ident)
		}
	}
	driver := cfg.RegistryDriver
	if driver == "postgres" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, cfg.RegistryDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &SQLRegistry{
		db:         db,
		driver:     driver,
		table:      cfg.RegistryTable,
		codeCol:    cfg.RegistryCodeCol,
		nameCol:    cfg.RegistryNameCol,
		contactCol: cfg.RegistryContactCol,
		levelCol:   cfg.RegistryLevelCol,
		zonesCol:   cfg.RegistryZonesCol,
		activeCol:  cfg.RegistryActiveCol,
		usesCol:    cfg.RegistryUsesCol,
		usedAtCol:  cfg.RegistryUsedAtCol,
	}, nil
}

// ph renders the n-th placeholder for the active driver.
func (r *SQLRegistry) ph(n int) string {
	if r.driver == "pgx" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *SQLRegistry) selectCols() string {
	return strings.Join([]string{
		r.codeCol, r.nameCol, r.contactCol, r.levelCol, r.zonesCol, r.activeCol, r.usesCol, r.usedAtCol,
	}, ",")
}

func (r *SQLRegistry) scanRecord(scan func(dest ...any) error) (models.IdentityRecord, error) {
	var rec models.IdentityRecord
	var name, contact, levelName, zonesCSV sql.NullString
	var active sql.NullInt64
	var lastUsed sql.NullTime
	if err := scan(&rec.Code, &name, &contact, &levelName, &zonesCSV, &active, &rec.UsageCounter, &lastUsed); err != nil {
		return models.IdentityRecord{}, err
	}
	rec.DisplayName = strings.TrimSpace(name.String)
	rec.ContactHandle = strings.TrimSpace(contact.String)
	rec.Level, _ = models.ParseLevel(strings.TrimSpace(levelName.String))
	rec.GrantedZones = splitZones(zonesCSV.String)
	rec.IsActive = active.Valid && active.Int64 == 1
	if lastUsed.Valid {
		t := lastUsed.Time
		rec.LastUsedAt = &t
	}
	return rec, nil
}

func (r *SQLRegistry) FindByCode(ctx context.Context, code string) (models.IdentityRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s=%s", r.selectCols(), r.table, r.codeCol, r.ph(1))
	row := r.db.QueryRowContext(ctx, q, code)
	rec, err := r.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return models.IdentityRecord{}, ErrNotFound
	}
	if err != nil {
		return models.IdentityRecord{}, err
	}
	return rec, nil
}

func (r *SQLRegistry) CreateCode(ctx context.Context, rec models.IdentityRecord) error {
	cols := []string{r.codeCol, r.nameCol, r.contactCol, r.levelCol, r.zonesCol, r.activeCol, r.usesCol}
	vals := []any{rec.Code, rec.DisplayName, rec.ContactHandle, rec.Level.String(), joinZones(rec.GrantedZones), boolToInt(rec.IsActive), rec.UsageCounter}
	phs := make([]string, len(vals))
	for i := range vals {
		phs[i] = r.ph(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, strings.Join(cols, ","), strings.Join(phs, ","))
	if _, err := r.db.ExecContext(ctx, q, vals...); err != nil {
		if isUniqueErr(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *SQLRegistry) TouchUsage(ctx context.Context, code string) error {
	q := fmt.Sprintf("UPDATE %s SET %s=%s+1, %s=%s WHERE %s=%s",
		r.table, r.usesCol, r.usesCol, r.usedAtCol, r.ph(1), r.codeCol, r.ph(2))
	res, err := r.db.ExecContext(ctx, q, time.Now().UTC(), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLRegistry) SetActive(ctx context.Context, code string, active bool) error {
	q := fmt.Sprintf("UPDATE %s SET %s=%s WHERE %s=%s", r.table, r.activeCol, r.ph(1), r.codeCol, r.ph(2))
	res, err := r.db.ExecContext(ctx, q, boolToInt(active), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLRegistry) SetZones(ctx context.Context, code string, zones []string) error {
	q := fmt.Sprintf("UPDATE %s SET %s=%s WHERE %s=%s", r.table, r.zonesCol, r.ph(1), r.codeCol, r.ph(2))
	res, err := r.db.ExecContext(ctx, q, joinZones(zones), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLRegistry) SetLevel(ctx context.Context, code string, level models.AccessLevel) error {
	q := fmt.Sprintf("UPDATE %s SET %s=%s WHERE %s=%s", r.table, r.levelCol, r.ph(1), r.codeCol, r.ph(2))
	res, err := r.db.ExecContext(ctx, q, level.String(), code)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLRegistry) List(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %s OFFSET %s",
		r.selectCols(), r.table, r.codeCol, r.ph(1), r.ph(2))
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IdentityRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLRegistry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

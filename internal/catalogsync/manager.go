// Package catalogsync polls a published zone catalog and reports drift
// against the catalog the process booted with. The running catalog is never
// swapped in place; applying a newer revision means a restart.
package catalogsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zonegate/internal/config"
	"zonegate/internal/store"
)

const (
	settingLastCheckAt    = "catalog_last_check_at"
	settingETag           = "catalog_etag"
	settingLatestRevision = "catalog_latest_revision"
	settingLastCheckError = "catalog_last_check_error"
)

const maxCatalogBytes = 1 << 20

type Status struct {
	Enabled        bool   `json:"enabled"`
	LoadedRevision string `json:"loaded_revision"`
	LatestRevision string `json:"latest_revision,omitempty"`
	Drift          bool   `json:"drift"`
	LastCheckAt    string `json:"last_check_at,omitempty"`
	LastCheckError string `json:"last_check_error,omitempty"`
}

type Manager struct {
	cfg            config.Config
	http           *http.Client
	loadedRevision string
	now            func() time.Time
}

func NewManager(cfg config.Config, loadedRevision string) *Manager {
	return &Manager{
		cfg:            cfg,
		http:           &http.Client{Timeout: 15 * time.Second},
		loadedRevision: loadedRevision,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Status(ctx context.Context, st *store.Store, forceCheck bool) (Status, error) {
	status := Status{Enabled: m.cfg.CatalogSyncEnabled, LoadedRevision: m.loadedRevision}
	if m.cfg.CatalogSyncEnabled && (forceCheck || m.shouldRefresh(ctx, st)) {
		if err := m.refreshLatest(ctx, st); err != nil && forceCheck {
			return status, err
		}
	}
	if v, ok, _ := st.GetSetting(ctx, settingLatestRevision); ok {
		status.LatestRevision = v
		status.Drift = v != "" && v != m.loadedRevision
	}
	if v, ok, _ := st.GetSetting(ctx, settingLastCheckAt); ok {
		status.LastCheckAt = v
	}
	if v, ok, _ := st.GetSetting(ctx, settingLastCheckError); ok {
		status.LastCheckError = v
	}
	return status, nil
}

func (m *Manager) shouldRefresh(ctx context.Context, st *store.Store) bool {
	v, ok, err := st.GetSetting(ctx, settingLastCheckAt)
	if err != nil || !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return true
	}
	interval := time.Duration(m.cfg.CatalogSyncIntervalMin) * time.Minute
	return m.now().Sub(last) >= interval
}

type remoteCatalog struct {
	Revision string `yaml:"revision"`
}

func (m *Manager) refreshLatest(ctx context.Context, st *store.Store) error {
	etag, _, _ := st.GetSetting(ctx, settingETag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.CatalogSyncURL, nil)
	if err != nil {
		return m.recordError(ctx, st, err)
	}
	if strings.TrimSpace(etag) != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return m.recordError(ctx, st, err)
	}
	defer resp.Body.Close()

	_ = st.UpsertSetting(ctx, settingLastCheckAt, m.now().Format(time.RFC3339))
	if resp.StatusCode == http.StatusNotModified {
		_ = st.UpsertSetting(ctx, settingLastCheckError, "")
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return m.recordError(ctx, st, fmt.Errorf("catalog fetch HTTP %d", resp.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return m.recordError(ctx, st, err)
	}
	var rc remoteCatalog
	if err := yaml.Unmarshal(raw, &rc); err != nil {
		return m.recordError(ctx, st, err)
	}
	if strings.TrimSpace(rc.Revision) == "" {
		return m.recordError(ctx, st, fmt.Errorf("remote catalog has no revision"))
	}
	_ = st.UpsertSetting(ctx, settingLatestRevision, strings.TrimSpace(rc.Revision))
	if newETag := strings.TrimSpace(resp.Header.Get("ETag")); newETag != "" {
		_ = st.UpsertSetting(ctx, settingETag, newETag)
	}
	_ = st.UpsertSetting(ctx, settingLastCheckError, "")
	return nil
}

func (m *Manager) recordError(ctx context.Context, st *store.Store, err error) error {
	_ = st.UpsertSetting(ctx, settingLastCheckAt, m.now().Format(time.RFC3339))
	_ = st.UpsertSetting(ctx, settingLastCheckError, err.Error())
	return err
}

// Package sqlite provides the SQLite-backed store.Store implementation.
// Schema changes are ordered DDL/DML statements in the migrations slice,
// applied exactly once and tracked in schema_migrations: to add one,
// append a new string, never edit or reorder existing entries.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store"
)

var migrations = []string{
	// v1–v2 — resolver mappings and their unique index
	`CREATE TABLE IF NOT EXISTS mappings (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		scope          TEXT NOT NULL,
		key_normalized TEXT NOT NULL DEFAULT '',
		preset_name    TEXT NOT NULL,
		created_at     INTEGER NOT NULL DEFAULT (unixepoch()),
		updated_at     INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_scope_key ON mappings(scope, key_normalized)`,
	// v3–v4 — devices and their cached presets
	`CREATE TABLE IF NOT EXISTS devices (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		host       TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	`CREATE TABLE IF NOT EXISTS device_presets (
		device_id INTEGER NOT NULL,
		name      TEXT NOT NULL,
		position  INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(device_id) REFERENCES devices(id) ON DELETE CASCADE
	)`,
	// v5 — last-applied preset per device
	`CREATE TABLE IF NOT EXISTS last_applied (
		device_id  INTEGER PRIMARY KEY,
		track_key  TEXT NOT NULL,
		preset     TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v6 — genre overrides keyed by exact track key
	`CREATE TABLE IF NOT EXISTS genre_overrides (
		track_key TEXT PRIMARY KEY,
		genre     TEXT NOT NULL
	)`,
	// v7 — app settings key/value store
	`CREATE TABLE IF NOT EXISTS app_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v8 — custom EQ presets
	`CREATE TABLE IF NOT EXISTS eq_presets (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		bands_json TEXT NOT NULL
	)`,
	// v9 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database implementing store.Store.
type Store struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral storage in tests.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		logger.Warn("enable WAL mode failed, continuing", "err", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		logger.Warn("set busy_timeout failed, continuing", "err", err)
	}

	s := &Store{db: db, path: path, logger: logger.With("component", "sqlite")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		s.logger.Info("applied migration", "version", v)
	}
	return nil
}

func (s *Store) Mappings() store.MappingRepo           { return (*mappingRepo)(s) }
func (s *Store) Devices() store.DeviceRepo              { return (*deviceRepo)(s) }
func (s *Store) LastApplied() store.LastAppliedRepo      { return (*lastAppliedRepo)(s) }
func (s *Store) GenreOverrides() store.GenreOverrideRepo { return (*genreOverrideRepo)(s) }
func (s *Store) AppSettings() store.AppSettingsRepo      { return (*appSettingsRepo)(s) }
func (s *Store) EqPresets() store.EqPresetRepo           { return (*eqPresetRepo)(s) }

// DBPath returns the on-disk database file path.
func (s *Store) DBPath() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)

type mappingRepo Store

func (r *mappingRepo) Upsert(m resolver.Mapping) (int64, error) {
	s := (*Store)(r)
	res, err := s.db.Exec(
		`INSERT INTO mappings(scope, key_normalized, preset_name) VALUES(?, ?, ?)
		 ON CONFLICT(scope, key_normalized) DO UPDATE SET
			preset_name = excluded.preset_name, updated_at = unixepoch()`,
		string(m.Scope), m.KeyNormalized, m.PresetName,
	)
	if err != nil {
		return 0, err
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}
	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM mappings WHERE scope = ? AND key_normalized = ?`,
		string(m.Scope), m.KeyNormalized,
	).Scan(&id)
	return id, err
}

func (r *mappingRepo) ListAll() ([]resolver.Mapping, error) {
	s := (*Store)(r)
	rows, err := s.db.Query(`SELECT scope, key_normalized, preset_name, created_at, updated_at FROM mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resolver.Mapping
	for rows.Next() {
		var m resolver.Mapping
		var scope string
		if err := rows.Scan(&scope, &m.KeyNormalized, &m.PresetName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Scope = resolver.Scope(scope)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *mappingRepo) Delete(id int64) error {
	s := (*Store)(r)
	_, err := s.db.Exec(`DELETE FROM mappings WHERE id = ?`, id)
	return err
}

type deviceRepo Store

func (r *deviceRepo) Create(name, host string) (int64, error) {
	s := (*Store)(r)
	res, err := s.db.Exec(`INSERT INTO devices(name, host) VALUES(?, ?)`, name, host)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *deviceRepo) GetByID(id int64) (store.Device, error) {
	s := (*Store)(r)
	var d store.Device
	d.ID = id
	err := s.db.QueryRow(`SELECT name, host FROM devices WHERE id = ?`, id).Scan(&d.Name, &d.Host)
	if err != nil {
		return store.Device{}, err
	}
	d.Presets, err = r.GetPresets(id)
	return d, err
}

func (r *deviceRepo) ListAll() ([]store.Device, error) {
	s := (*Store)(r)
	rows, err := s.db.Query(`SELECT id, name, host FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Device
	for rows.Next() {
		var d store.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.Host); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *deviceRepo) UpdateHost(id int64, host string) error {
	s := (*Store)(r)
	res, err := s.db.Exec(`UPDATE devices SET host = ? WHERE id = ?`, host, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *deviceRepo) Delete(id int64) error {
	s := (*Store)(r)
	_, err := s.db.Exec(`DELETE FROM devices WHERE id = ?`, id)
	return err
}

func (r *deviceRepo) SyncPresets(deviceID int64, names []string) error {
	s := (*Store)(r)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM device_presets WHERE device_id = ?`, deviceID); err != nil {
		tx.Rollback()
		return err
	}
	for i, name := range names {
		if _, err := tx.Exec(
			`INSERT INTO device_presets(device_id, name, position) VALUES(?, ?, ?)`,
			deviceID, name, i,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *deviceRepo) GetPresets(deviceID int64) ([]string, error) {
	s := (*Store)(r)
	rows, err := s.db.Query(
		`SELECT name FROM device_presets WHERE device_id = ? ORDER BY position ASC`, deviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type lastAppliedRepo Store

func (r *lastAppliedRepo) Update(deviceID int64, trackKey, preset string) error {
	s := (*Store)(r)
	_, err := s.db.Exec(
		`INSERT INTO last_applied(device_id, track_key, preset) VALUES(?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
			track_key = excluded.track_key, preset = excluded.preset, updated_at = unixepoch()`,
		deviceID, trackKey, preset,
	)
	return err
}

func (r *lastAppliedRepo) Get(deviceID int64) (string, string, bool, error) {
	s := (*Store)(r)
	var trackKey, preset string
	err := s.db.QueryRow(
		`SELECT track_key, preset FROM last_applied WHERE device_id = ?`, deviceID,
	).Scan(&trackKey, &preset)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return trackKey, preset, true, nil
}

type genreOverrideRepo Store

func (r *genreOverrideRepo) Upsert(trackKey, genre string) error {
	s := (*Store)(r)
	_, err := s.db.Exec(
		`INSERT INTO genre_overrides(track_key, genre) VALUES(?, ?)
		 ON CONFLICT(track_key) DO UPDATE SET genre = excluded.genre`,
		trackKey, genre,
	)
	return err
}

func (r *genreOverrideRepo) Get(trackKey string) (string, bool, error) {
	s := (*Store)(r)
	var genre string
	err := s.db.QueryRow(`SELECT genre FROM genre_overrides WHERE track_key = ?`, trackKey).Scan(&genre)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return genre, true, nil
}

func (r *genreOverrideRepo) Delete(trackKey string) error {
	s := (*Store)(r)
	_, err := s.db.Exec(`DELETE FROM genre_overrides WHERE track_key = ?`, trackKey)
	return err
}

type appSettingsRepo Store

func (r *appSettingsRepo) get(key string) (string, bool, error) {
	s := (*Store)(r)
	var val string
	err := s.db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *appSettingsRepo) set(key, value string) error {
	s := (*Store)(r)
	_, err := s.db.Exec(
		`INSERT INTO app_settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (r *appSettingsRepo) GetLastConnectedHost() (string, bool, error) {
	return r.get("last_connected_host")
}
func (r *appSettingsRepo) SetLastConnectedHost(host string) error {
	return r.set("last_connected_host", host)
}
func (r *appSettingsRepo) GetLastInputDevice() (string, bool, error) {
	return r.get("last_input_device")
}
func (r *appSettingsRepo) SetLastInputDevice(name string) error {
	return r.set("last_input_device", name)
}

type eqPresetRepo Store

func (r *eqPresetRepo) Create(p store.EqPreset) (int64, error) {
	s := (*Store)(r)
	bandsJSON, err := marshalBands(p.Bands)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO eq_presets(name, bands_json) VALUES(?, ?)`, p.Name, bandsJSON)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *eqPresetRepo) Update(p store.EqPreset, id int64) error {
	s := (*Store)(r)
	bandsJSON, err := marshalBands(p.Bands)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE eq_presets SET name = ?, bands_json = ? WHERE id = ?`, p.Name, bandsJSON, id)
	return err
}

func (r *eqPresetRepo) GetByName(name string) (store.EqPreset, bool, error) {
	s := (*Store)(r)
	var bandsJSON string
	err := s.db.QueryRow(`SELECT bands_json FROM eq_presets WHERE name = ?`, name).Scan(&bandsJSON)
	if err == sql.ErrNoRows {
		return store.EqPreset{}, false, nil
	}
	if err != nil {
		return store.EqPreset{}, false, err
	}
	bands, err := unmarshalBands(bandsJSON)
	if err != nil {
		return store.EqPreset{}, false, err
	}
	return store.EqPreset{Name: name, Bands: bands}, true, nil
}

func (r *eqPresetRepo) ListNames() ([]string, error) {
	s := (*Store)(r)
	rows, err := s.db.Query(`SELECT name FROM eq_presets ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *eqPresetRepo) Delete(name string) error {
	s := (*Store)(r)
	_, err := s.db.Exec(`DELETE FROM eq_presets WHERE name = ?`, name)
	return err
}

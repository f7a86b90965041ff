// Package db manages the SQLite database that stores clients, drafts and
// check-ins.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/casefile/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db.Open createSchema: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			rowid      INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT UNIQUE NOT NULL,
			code       TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL,
			date_of_birth  TEXT,
			gender         TEXT,
			marital_status TEXT,
			associated_spouse_id TEXT,
			housing_status       TEXT,
			head_of_household    TEXT,
			family_members_serviced TEXT,
			intake     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS clients_name ON clients(last_name, first_name)`,
		`CREATE TABLE IF NOT EXISTS drafts (
			session_id TEXT PRIMARY KEY,
			form       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkins (
			id           TEXT PRIMARY KEY,
			client_id    TEXT NOT NULL REFERENCES clients(id),
			scheduled_at TEXT NOT NULL,
			note         TEXT,
			status       TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS checkins_scheduled ON checkins(scheduled_at)`,
		`CREATE TABLE IF NOT EXISTS housing_history (
			rowid       INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id   TEXT NOT NULL REFERENCES clients(id),
			status      TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}

	// Migration: add updated_count column if missing.
	cols, err := d.columns("clients")
	if err != nil {
		return err
	}
	if !cols["updated_count"] {
		if _, err := d.db.Exec("ALTER TABLE clients ADD COLUMN updated_count INTEGER DEFAULT 0"); err != nil {
			return fmt.Errorf("migration updated_count: %w", err)
		}
	}
	return nil
}

// columns returns the column names of table.
func (d *DB) columns(table string) (map[string]bool, error) {
	rows, err := d.db.Query("PRAGMA table_info(" + table + ")") // #nosec G202 -- table name is a hardcoded identifier
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

const clientCols = `id, code, first_name, last_name, date_of_birth, gender,
	marital_status, associated_spouse_id, housing_status, head_of_household,
	family_members_serviced, intake, created_at, updated_at`

// InsertClient stores a new client record under the code it already has.
func (d *DB) InsertClient(ctx context.Context, c *models.Client) error {
	if err := insertClient(ctx, d.db, c); err != nil {
		return fmt.Errorf("InsertClient: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertClient(ctx context.Context, db execer, c *models.Client) error {
	intake, err := encodeForm(c.Intake)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO clients (`+clientCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.FirstName, c.LastName, c.DateOfBirth, c.Gender,
		c.MaritalStatus, c.AssociatedSpouseID, c.HousingStatus, c.HeadOfHousehold,
		c.FamilyMembersServiced, intake,
		c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetClient fetches a client by exact ID. It returns ErrNotFound when there
// is no such client.
func (d *DB) GetClient(ctx context.Context, id string) (*models.Client, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetClient: %w", err)
	}
	return c, nil
}

// GetClientByCode fetches a client by its client code.
func (d *DB) GetClientByCode(ctx context.Context, code string) (*models.Client, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE code = ? COLLATE NOCASE`, code)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetClientByCode: %w", err)
	}
	return c, nil
}

// UpdateClient overwrites the mutable fields of an existing client and stamps
// updated_at. It returns ErrNotFound when the client does not exist.
func (d *DB) UpdateClient(ctx context.Context, c *models.Client) error {
	intake, err := encodeForm(c.Intake)
	if err != nil {
		return fmt.Errorf("UpdateClient: %w", err)
	}
	c.UpdatedAt = time.Now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE clients
		SET first_name = ?, last_name = ?, date_of_birth = ?, gender = ?,
		    marital_status = ?, associated_spouse_id = ?, housing_status = ?,
		    head_of_household = ?, family_members_serviced = ?, intake = ?,
		    updated_at = ?, updated_count = updated_count + 1
		WHERE id = ?`,
		c.FirstName, c.LastName, c.DateOfBirth, c.Gender,
		c.MaritalStatus, c.AssociatedSpouseID, c.HousingStatus,
		c.HeadOfHousehold, c.FamilyMembersServiced, intake,
		c.UpdatedAt.Format(time.RFC3339), c.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateClient: %w", err)
	}
	return requireRow(res, "client "+c.ID)
}

// SetAssociatedSpouse points client id at spouseID, in both the indexed
// column and the stored intake.
func (d *DB) SetAssociatedSpouse(ctx context.Context, id, spouseID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SetAssociatedSpouse: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT intake FROM clients WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("SetAssociatedSpouse: %w", err)
	}
	form, err := decodeForm(raw)
	if err != nil {
		return fmt.Errorf("SetAssociatedSpouse: %w", err)
	}
	form.AssociatedSpouseID = spouseID
	intake, err := encodeForm(form)
	if err != nil {
		return fmt.Errorf("SetAssociatedSpouse: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE clients
		SET associated_spouse_id = ?, intake = ?, updated_at = ?,
		    updated_count = updated_count + 1
		WHERE id = ?`,
		spouseID, intake, time.Now().UTC().Format(time.RFC3339), id,
	); err != nil {
		return fmt.Errorf("SetAssociatedSpouse: %w", err)
	}
	return tx.Commit()
}

// SearchClients returns clients whose first name, last name or client code
// starts with every whitespace-separated term of query. An empty query lists
// the newest clients.
func (d *DB) SearchClients(ctx context.Context, query string, limit int) ([]models.Client, error) {
	if limit <= 0 {
		limit = 20
	}
	var clauses []string
	var params []any
	for _, term := range strings.Fields(query) {
		p := escapeLike(term) + "%"
		clauses = append(clauses, `(first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\' OR code LIKE ? ESCAPE '\')`)
		params = append(params, p, p, p)
	}
	q := `SELECT ` + clientCols + ` FROM clients`
	order := " ORDER BY last_name, first_name, code"
	if len(clauses) == 0 {
		order = " ORDER BY created_at DESC, rowid DESC"
	} else {
		q += " WHERE " + strings.Join(clauses, " AND ") // #nosec G202 -- clauses are hardcoded; terms flow through ? bound parameters
	}
	q += order + " LIMIT ?"
	params = append(params, limit)

	rows, err := d.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("SearchClients: %w", err)
	}
	defer rows.Close()

	out := make([]models.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchClients: scan: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountClients returns the total number of clients.
func (d *DB) CountClients(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n)
	return n, err
}

// CreateClient assigns c the next sequential client code (e.g. "CF-00042")
// and stores it. The sequence only advances when the insert succeeds, so a
// failed insert leaves no gap and c.Code unchanged.
func (d *DB) CreateClient(ctx context.Context, c *models.Client, prefix string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateClient: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	var val string
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'client_seq'`).Scan(&val)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("CreateClient: %w", err)
	default:
		if n, err = strconv.Atoi(val); err != nil {
			return fmt.Errorf("CreateClient: bad sequence %q: %w", val, err)
		}
	}
	n++

	prev := c.Code
	c.Code = fmt.Sprintf("%s%05d", prefix, n)
	if err := insertClient(ctx, tx, c); err != nil {
		c.Code = prev
		return fmt.Errorf("CreateClient: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('client_seq', ?)`, strconv.Itoa(n),
	); err != nil {
		c.Code = prev
		return fmt.Errorf("CreateClient: %w", err)
	}
	if err := tx.Commit(); err != nil {
		c.Code = prev
		return fmt.Errorf("CreateClient: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Drafts
// ---------------------------------------------------------------------------

// SaveDraft upserts the in-progress form of a session.
func (d *DB) SaveDraft(ctx context.Context, sessionID string, form *models.IntakeForm) error {
	raw, err := encodeForm(form)
	if err != nil {
		return fmt.Errorf("SaveDraft: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (session_id, form, updated_at) VALUES (?, ?, ?)`,
		sessionID, raw, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("SaveDraft: %w", err)
	}
	return nil
}

// LoadDraft returns the saved form of a session, or (nil, nil) if none.
func (d *DB) LoadDraft(ctx context.Context, sessionID string) (*models.IntakeForm, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `SELECT form FROM drafts WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadDraft: %w", err)
	}
	form, err := decodeForm(raw)
	if err != nil {
		return nil, fmt.Errorf("LoadDraft %s: %w", sessionID, err)
	}
	return form, nil
}

// DeleteDraft removes a session's draft. Deleting a missing draft is not an error.
func (d *DB) DeleteDraft(ctx context.Context, sessionID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM drafts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("DeleteDraft: %w", err)
	}
	return nil
}

// ListDrafts returns the session ids with a saved draft, most recent first.
func (d *DB) ListDrafts(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT session_id FROM drafts ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("ListDrafts: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------------------------------------------------------------------------
// Check-ins
// ---------------------------------------------------------------------------

// InsertCheckIn stores a scheduled check-in.
func (d *DB) InsertCheckIn(ctx context.Context, ci *models.CheckIn) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO checkins (id, client_id, scheduled_at, note, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ci.ID, ci.ClientID, ci.ScheduledAt.UTC().Format(time.RFC3339), ci.Note, ci.Status,
		ci.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("InsertCheckIn: %w", err)
	}
	return nil
}

// ListCheckIns returns check-ins scheduled at or after from, earliest first.
// An empty clientID lists check-ins for every client.
func (d *DB) ListCheckIns(ctx context.Context, clientID string, from time.Time, limit int) ([]models.CheckIn, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, client_id, scheduled_at, note, status, created_at FROM checkins WHERE scheduled_at >= ?`
	params := []any{from.UTC().Format(time.RFC3339)}
	if clientID != "" {
		q += " AND client_id = ?"
		params = append(params, clientID)
	}
	q += " ORDER BY scheduled_at LIMIT ?"
	params = append(params, limit)

	rows, err := d.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("ListCheckIns: %w", err)
	}
	defer rows.Close()

	out := make([]models.CheckIn, 0)
	for rows.Next() {
		var ci models.CheckIn
		var note sql.NullString
		var at, created string
		if err := rows.Scan(&ci.ID, &ci.ClientID, &at, &note, &ci.Status, &created); err != nil {
			return nil, fmt.Errorf("ListCheckIns: scan: %w", err)
		}
		ci.Note = note.String
		ci.ScheduledAt = parseTime(at)
		ci.CreatedAt = parseTime(created)
		out = append(out, ci)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Housing history
// ---------------------------------------------------------------------------

// InsertHousingChange appends an entry to a client's housing history.
func (d *DB) InsertHousingChange(ctx context.Context, h *models.HousingChange) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO housing_history (client_id, status, recorded_at) VALUES (?, ?, ?)`,
		h.ClientID, h.Status, h.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("InsertHousingChange: %w", err)
	}
	return nil
}

// ListHousingHistory returns a client's housing history, oldest first.
func (d *DB) ListHousingHistory(ctx context.Context, clientID string) ([]models.HousingChange, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT client_id, status, recorded_at FROM housing_history WHERE client_id = ? ORDER BY rowid`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListHousingHistory: %w", err)
	}
	defer rows.Close()

	out := make([]models.HousingChange, 0)
	for rows.Next() {
		var h models.HousingChange
		var at string
		if err := rows.Scan(&h.ClientID, &h.Status, &at); err != nil {
			return nil, fmt.Errorf("ListHousingHistory: scan: %w", err)
		}
		h.RecordedAt = parseTime(at)
		out = append(out, h)
	}
	return out, rows.Err()
}

// DashboardCounts returns the number of clients per housing status. Clients
// without a status are counted under "".
func (d *DB) DashboardCounts(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT COALESCE(housing_status, ''), COUNT(*) FROM clients GROUP BY 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("DashboardCounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("DashboardCounts: scan: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value,
	)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	var dob, gender, marital, spouseID, housing, head, served sql.NullString
	var intake, created, updated string
	if err := row.Scan(
		&c.ID, &c.Code, &c.FirstName, &c.LastName, &dob, &gender,
		&marital, &spouseID, &housing, &head,
		&served, &intake, &created, &updated,
	); err != nil {
		return nil, err
	}
	c.DateOfBirth = dob.String
	c.Gender = gender.String
	c.MaritalStatus = marital.String
	c.AssociatedSpouseID = spouseID.String
	c.HousingStatus = housing.String
	c.HeadOfHousehold = head.String
	c.FamilyMembersServiced = served.String
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)

	form, err := decodeForm(intake)
	if err != nil {
		return nil, fmt.Errorf("client %s intake: %w", c.ID, err)
	}
	c.Intake = form
	return &c, nil
}

func encodeForm(form *models.IntakeForm) (string, error) {
	if form == nil {
		return "{}", nil
	}
	b, err := json.Marshal(form)
	if err != nil {
		return "", fmt.Errorf("encode form: %w", err)
	}
	return string(b), nil
}

func decodeForm(raw string) (*models.IntakeForm, error) {
	form := &models.IntakeForm{}
	if err := json.Unmarshal([]byte(raw), form); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	return form, nil
}

// requireRow returns ErrNotFound when res affected no rows.
func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

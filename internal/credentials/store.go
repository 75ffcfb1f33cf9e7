package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxSSIDLength is the 802.11 limit in octets.
const maxSSIDLength = 32

// Credential is one stored network.
type Credential struct {
	SSID       string
	Passphrase string
	Security   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Redacted returns a copy safe to log.
func (c Credential) Redacted() Credential {
	if c.Passphrase != "" {
		c.Passphrase = "********"
	}
	return c
}

// Store implements credential persistence on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a store. The wifi_credentials table must exist.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts or replaces the credential for c.SSID.
func (s *Store) Save(ctx context.Context, c Credential) error {
	if c.SSID == "" || len(c.SSID) > maxSSIDLength {
		return ErrInvalidSSID
	}
	if c.Security == "" {
		c.Security = "wpa2-psk"
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO wifi_credentials (ssid, passphrase, security, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ssid) DO UPDATE SET
			passphrase = excluded.passphrase,
			security = excluded.security,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, c.SSID, c.Passphrase, c.Security, now, now); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// Get retrieves the credential for ssid.
// Returns ErrNotFound if none is stored.
func (s *Store) Get(ctx context.Context, ssid string) (*Credential, error) {
	query := `
		SELECT ssid, passphrase, security, created_at, updated_at
		FROM wifi_credentials
		WHERE ssid = ?`

	c, err := scanCredential(s.db.QueryRowContext(ctx, query, ssid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	return c, nil
}

// List returns every stored credential ordered by SSID.
func (s *Store) List(ctx context.Context) ([]Credential, error) {
	query := `
		SELECT ssid, passphrase, security, created_at, updated_at
		FROM wifi_credentials
		ORDER BY ssid`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return out, nil
}

// Count returns the number of stored credentials.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wifi_credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting credentials: %w", err)
	}
	return n, nil
}

// IsEmpty reports whether no credential is stored.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// DeleteAll removes every stored credential and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wifi_credentials`)
	if err != nil {
		return 0, fmt.Errorf("deleting credentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking deleted rows: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*Credential, error) {
	var c Credential
	var created, updated string
	if err := row.Scan(&c.SSID, &c.Passphrase, &c.Security, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

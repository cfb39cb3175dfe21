package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) driver() (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", string(d))
	}
}

func (d Dialect) gooseDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Store implements domain.CredentialStore on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ domain.CredentialStore = (*Store)(nil)

// New wraps an open database. The schema must already be migrated; see
// [Store.Migrate].
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to dsn, checks the connection and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if dialect == DialectSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// Migrate applies every pending embedded migration.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

const selectAccount = `SELECT id, user_name, email, password_hash, email_confirmed,
       first_name, last_name, created_at, security_stamp, version
  FROM accounts`

func (s *Store) FindByID(ctx context.Context, id string) (domain.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE id = ?`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE email_normalized = ?`, domain.NormalizeEmail(email))
}

func (s *Store) FindByUserName(ctx context.Context, userName string) (domain.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE user_name_normalized = ?`, domain.NormalizeEmail(userName))
}

func (s *Store) findOne(ctx context.Context, query string, arg string) (domain.Account, error) {
	var (
		acct      domain.Account
		createdAt int64
		version   int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(query), arg).Scan(
		&acct.ID,
		&acct.UserName,
		&acct.Email,
		&acct.PasswordHash,
		&acct.EmailConfirmed,
		&acct.FirstName,
		&acct.LastName,
		&createdAt,
		&acct.SecurityStamp,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("db error: %w", err)
	}
	acct.CreatedAt = fromMillis(createdAt)
	acct.Version = uint64(version)
	return acct, nil
}

// Create inserts acct with Version 1.
func (s *Store) Create(ctx context.Context, acct domain.Account) (domain.Account, error) {
	query := `INSERT INTO accounts (id, user_name, user_name_normalized, email, email_normalized,
       password_hash, email_confirmed, first_name, last_name, created_at, security_stamp, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		acct.ID,
		acct.UserName,
		domain.NormalizeEmail(acct.UserName),
		acct.Email,
		domain.NormalizeEmail(acct.Email),
		acct.PasswordHash,
		acct.EmailConfirmed,
		acct.FirstName,
		acct.LastName,
		toMillis(acct.CreatedAt),
		acct.SecurityStamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrDuplicateAccount
		}
		return domain.Account{}, fmt.Errorf("db error: %w", err)
	}

	acct.CreatedAt = fromMillis(toMillis(acct.CreatedAt))
	acct.Version = 1
	return acct, nil
}

// Update writes acct when the stored version equals acct.Version and
// returns it with Version incremented. CreatedAt is never changed.
func (s *Store) Update(ctx context.Context, acct domain.Account) (domain.Account, error) {
	query := `UPDATE accounts
   SET user_name = ?, user_name_normalized = ?, email = ?, email_normalized = ?,
       password_hash = ?, email_confirmed = ?, first_name = ?, last_name = ?,
       security_stamp = ?, version = version + 1
 WHERE id = ? AND version = ?
RETURNING created_at, version`

	var createdAt, version int64
	err := s.db.QueryRowContext(ctx, s.rebind(query),
		acct.UserName,
		domain.NormalizeEmail(acct.UserName),
		acct.Email,
		domain.NormalizeEmail(acct.Email),
		acct.PasswordHash,
		acct.EmailConfirmed,
		acct.FirstName,
		acct.LastName,
		acct.SecurityStamp,
		acct.ID,
		int64(acct.Version),
	).Scan(&createdAt, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, s.missOrConflict(ctx, acct.ID)
		}
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrDuplicateAccount
		}
		return domain.Account{}, fmt.Errorf("db error: %w", err)
	}

	acct.CreatedAt = fromMillis(createdAt)
	acct.Version = uint64(version)
	return acct, nil
}

// missOrConflict explains an UPDATE that matched no row.
func (s *Store) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM accounts WHERE id = ?`), id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrAccountNotFound
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	default:
		return domain.ErrVersionConflict
	}
}

// rebind turns ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Package store is the record store: authorities, their index entries,
// external references, same-as links, the alignment history and the
// gazetteer tables, on top of database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrCommit wraps transaction commit failures.
var ErrCommit = errors.New("commit failed")

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Handle runs dialect-aware queries on a database or inside a transaction.
type Handle struct {
	q       Querier
	dialect *Dialect
	inTx    bool
}

// Dialect returns the SQL dialect of the handle.
func (h Handle) Dialect() *Dialect { return h.dialect }

// Exec runs a statement written with "?" placeholders.
func (h Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.q.ExecContext(ctx, h.dialect.Rebind(query), args...)
}

// Query runs a query written with "?" placeholders.
func (h Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.q.QueryContext(ctx, h.dialect.Rebind(query), args...)
}

// QueryRow runs a single-row query written with "?" placeholders.
func (h Handle) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return h.q.QueryRowContext(ctx, h.dialect.Rebind(query), args...)
}

// Savepoint runs fn inside a savepoint: an error from fn rolls back what fn
// did and leaves the rest of the transaction intact.
func (h Handle) Savepoint(ctx context.Context, name string, fn func() error) error {
	if !h.inTx {
		return fmt.Errorf("savepoint %s outside of a transaction", name)
	}
	open, release, rollback := h.dialect.Savepoint(name)
	if _, err := h.q.ExecContext(ctx, open); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := h.q.ExecContext(ctx, rollback); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back savepoint: %w", rbErr))
		}
		return err
	}
	if release != "" {
		if _, err := h.q.ExecContext(ctx, release); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
	}
	return nil
}

func (h Handle) insertID(ctx context.Context, table string, columns []string, args ...any) (int64, error) {
	query, returning := h.dialect.InsertReturning(table, columns)
	if returning {
		var id int64
		if err := h.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := h.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Store owns the database connection.
type Store struct {
	Handle
	db  *sql.DB
	log *slog.Logger
}

// Open connects to the database of driver and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" && dialect == SQLite {
		dsn = "placealign.db"
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if dialect == SQLite {
		// one writer; concurrent batches queue on the connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name, err)
	}

	s := &Store{
		Handle: Handle{q: db, dialect: dialect},
		db:     db,
		log:    slog.Default().With("db", dialect.Name),
	}
	if dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Tx runs fn in a transaction, committed when fn returns nil. A failed
// commit is reported as ErrCommit.
func (s *Store) Tx(ctx context.Context, fn func(tx Handle) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(Handle{q: tx, dialect: s.dialect, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	return nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			var myErr *mysql.MySQLError
			// duplicate index name
			if errors.As(err, &myErr) && myErr.Number == 1061 {
				continue
			}
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

func schema(d *Dialect) []string {
	return []string{
		d.CreateTable("authorities", `
			id {id},
			label {text} NOT NULL,
			quality {bool} NOT NULL,
			latitude {float} NULL,
			longitude {float} NULL`),
		d.CreateTable("geognames", `
			id {id},
			authority_id {int} NOT NULL,
			uri {text} NULL,
			label {text} NOT NULL,
			service_code {key} NULL,
			unit_id {text} NULL,
			service_dpt_code {key} NULL`),
		d.CreateIndex("geognames_authority_idx", "geognames", "authority_id"),
		d.CreateTable("external_refs", `
			id {id},
			uri {key} NOT NULL UNIQUE,
			source {key} NOT NULL,
			external_id {text} NULL,
			label {text} NULL,
			latitude {float} NULL,
			longitude {float} NULL`),
		d.CreateIndex("external_refs_source_idx", "external_refs", "source"),
		d.CreateTable("same_as", `
			authority_id {int} NOT NULL,
			external_ref_id {int} NOT NULL,
			PRIMARY KEY (authority_id, external_ref_id)`),
		d.CreateIndex("same_as_ref_idx", "same_as", "external_ref_id"),
		d.CreateTable("sameas_history", `
			uri {key} NOT NULL,
			authority_id {int} NOT NULL,
			action {bool} NOT NULL,
			updated_at {time} NOT NULL,
			PRIMARY KEY (uri, authority_id)`),
		d.CreateTable("geonames", `
			geonameid {int} NOT NULL PRIMARY KEY,
			name {text} NOT NULL,
			asciiname {text} NULL,
			fclass {key} NULL,
			fcode {key} NULL,
			country_code {key} NULL,
			admin1 {key} NULL,
			admin2 {key} NULL,
			admin3 {key} NULL,
			admin4 {key} NULL,
			population {int} NULL,
			latitude {float} NULL,
			longitude {float} NULL`),
		d.CreateIndex("geonames_country_idx", "geonames", "country_code", "fclass"),
		d.CreateIndex("geonames_admin2_idx", "geonames", "admin2"),
		d.CreateIndex("geonames_fcode_idx", "geonames", "fcode"),
		d.CreateTable("geonames_altnames", `
			id {int} NOT NULL PRIMARY KEY,
			geonameid {int} NOT NULL,
			lang {key} NULL,
			name {text} NOT NULL,
			preferred {bool} NOT NULL,
			short {bool} NOT NULL,
			colloquial {bool} NOT NULL,
			historic {bool} NOT NULL`),
		d.CreateIndex("geonames_altnames_place_idx", "geonames_altnames", "geonameid"),
		d.CreateIndex("geonames_altnames_lang_idx", "geonames_altnames", "lang"),
		d.CreateTable("bano", `
			id {key} NOT NULL PRIMARY KEY,
			voie {text} NOT NULL,
			code_post {key} NULL,
			nom_comm {text} NOT NULL,
			city_key {key} NOT NULL,
			source {text} NULL,
			latitude {float} NULL,
			longitude {float} NULL`),
		d.CreateIndex("bano_city_idx", "bano", "city_key"),
	}
}

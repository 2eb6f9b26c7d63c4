package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect holds the SQL differences between the supported databases.
// Queries are written with "?" placeholders and rebound per dialect.
type Dialect struct {
	Name   string
	Driver string

	placeholder func(n int) string
	types       map[string]string
	// returning is "RETURNING", "OUTPUT" or "" (use LastInsertId)
	returning string
}

var (
	SQLite = &Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		placeholder: func(int) string { return "?" },
		returning:   "RETURNING",
		types: map[string]string{
			"id":    "INTEGER PRIMARY KEY AUTOINCREMENT",
			"key":   "TEXT",
			"text":  "TEXT",
			"int":   "INTEGER",
			"bool":  "BOOLEAN",
			"float": "REAL",
			"time":  "TIMESTAMP",
		},
	}
	Postgres = &Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		returning:   "RETURNING",
		types: map[string]string{
			"id":    "BIGSERIAL PRIMARY KEY",
			"key":   "TEXT",
			"text":  "TEXT",
			"int":   "BIGINT",
			"bool":  "BOOLEAN",
			"float": "DOUBLE PRECISION",
			"time":  "TIMESTAMP",
		},
	}
	MySQL = &Dialect{
		Name:        "mysql",
		Driver:      "mysql",
		placeholder: func(int) string { return "?" },
		types: map[string]string{
			"id":    "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"key":   "VARCHAR(512)",
			"text":  "TEXT",
			"int":   "BIGINT",
			"bool":  "BOOLEAN",
			"float": "DOUBLE",
			"time":  "DATETIME",
		},
	}
	SQLServer = &Dialect{
		Name:        "sqlserver",
		Driver:      "sqlserver",
		placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
		returning:   "OUTPUT",
		types: map[string]string{
			"id":    "BIGINT IDENTITY(1,1) PRIMARY KEY",
			"key":   "NVARCHAR(400)",
			"text":  "NVARCHAR(MAX)",
			"int":   "BIGINT",
			"bool":  "BIT",
			"float": "FLOAT",
			"time":  "DATETIME2",
		},
	}
)

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (*Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites "?" placeholders for the dialect. Question marks inside
// single-quoted literals are left alone.
func (d *Dialect) Rebind(query string) string {
	if d.placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n, quoted := 0, false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteString(d.placeholder(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreateTable renders a CREATE TABLE statement. Column types are written as
// {id}, {key}, {text}, {int}, {bool}, {float} or {time}.
func (d *Dialect) CreateTable(name, body string) string {
	for k, v := range d.types {
		body = strings.ReplaceAll(body, "{"+k+"}", v)
	}
	if d == SQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", name, name, body)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, body)
}

// CreateIndex renders a CREATE INDEX statement.
func (d *Dialect) CreateIndex(name, table string, columns ...string) string {
	cols := strings.Join(columns, ", ")
	switch d {
	case SQLServer:
		return fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') CREATE INDEX %s ON %s (%s)", name, name, table, cols)
	case MySQL:
		// MySQL has no IF NOT EXISTS for indexes; duplicates are ignored by Migrate
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, cols)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, cols)
}

// InsertIgnore renders an insert that does nothing when a row with the same
// conflict columns exists.
func (d *Dialect) InsertIgnore(table string, columns, conflict []string) string {
	switch d {
	case MySQL:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), marks(len(columns)))
	case SQLServer:
		return d.merge(table, columns, conflict, nil)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		table, strings.Join(columns, ", "), marks(len(columns)), strings.Join(conflict, ", "))
}

// Upsert renders an insert that overwrites the update columns on conflict.
func (d *Dialect) Upsert(table string, columns, conflict, update []string) string {
	switch d {
	case MySQL:
		sets := make([]string, len(update))
		for i, c := range update {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(columns, ", "), marks(len(columns)), strings.Join(sets, ", "))
	case SQLServer:
		return d.merge(table, columns, conflict, update)
	}
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), marks(len(columns)), strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

func (d *Dialect) merge(table string, columns, conflict, update []string) string {
	src := make([]string, len(columns))
	vals := make([]string, len(columns))
	for i, c := range columns {
		src[i] = "? AS " + c
		vals[i] = "src." + c
	}
	on := make([]string, len(conflict))
	for i, c := range conflict {
		on[i] = fmt.Sprintf("t.%s = src.%s", c, c)
	}
	q := fmt.Sprintf("MERGE INTO %s WITH (HOLDLOCK) AS t USING (SELECT %s) AS src ON %s",
		table, strings.Join(src, ", "), strings.Join(on, " AND "))
	if len(update) > 0 {
		sets := make([]string, len(update))
		for i, c := range update {
			sets[i] = fmt.Sprintf("%s = src.%s", c, c)
		}
		q += " WHEN MATCHED THEN UPDATE SET " + strings.Join(sets, ", ")
	}
	return q + fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);", strings.Join(columns, ", "), strings.Join(vals, ", "))
}

// InsertReturning renders an insert returning the generated id. With ok
// false the caller must use LastInsertId instead.
func (d *Dialect) InsertReturning(table string, columns []string) (query string, ok bool) {
	cols, vals := strings.Join(columns, ", "), marks(len(columns))
	switch d.returning {
	case "RETURNING":
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, cols, vals), true
	case "OUTPUT":
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, cols, vals), true
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, vals), false
}

// Savepoint returns the statements that open, release and roll back to a
// savepoint. An empty release means nothing to run.
func (d *Dialect) Savepoint(name string) (open, release, rollback string) {
	if d == SQLServer {
		return "SAVE TRANSACTION " + name, "", "ROLLBACK TRANSACTION " + name
	}
	return "SAVEPOINT " + name, "RELEASE SAVEPOINT " + name, "ROLLBACK TO SAVEPOINT " + name
}

// In renders n comma-separated placeholders for an IN clause.
func In(n int) string { return marks(n) }

func marks(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

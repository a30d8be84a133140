package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect renders the provider-specific pieces of a batch.
type Dialect interface {
	// Name is the provider name the dialect was created for.
	Name() string
	// Quote quotes an identifier when the provider needs it.
	Quote(ident string) string
	// Variable returns how the intermediate table for name is referenced.
	Variable(name string) string
	// Declare returns the statement creating the intermediate table.
	Declare(variable string, columns []Column) string
	// Drop returns the statement removing the intermediate table, or "" when
	// the table disappears with the batch.
	Drop(variable string) string
	// KeyParam is the placeholder of the root key value.
	KeyParam() string
	// SingleBatch reports whether the whole batch is sent in one round trip.
	SingleBatch() bool
	// Terminator ends each statement when the batch is rendered as a script.
	Terminator() string
}

// Providers recognised by NewDialect.
const (
	SQLServer  = "sqlserver"
	PostgreSQL = "postgresql"
	MySQL      = "mysql"
	SQLite     = "sqlite"
)

// NewDialect returns the dialect for provider.
func NewDialect(provider string) (Dialect, error) {
	switch provider {
	case SQLServer, "mssql", "":
		return sqlServerDialect{}, nil
	case PostgreSQL, "postgres":
		return postgresDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	case SQLite, "sqlite3":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, provider)
}

// MustDialect is NewDialect that panics on an unknown provider.
func MustDialect(provider string) Dialect {
	d, err := NewDialect(provider)
	if err != nil {
		panic(err)
	}
	return d
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var reserved = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		ADD ALL ALTER AND ANY AS ASC BETWEEN BY CASE CHECK COLUMN CONSTRAINT CREATE
		CROSS CURRENT DATABASE DEFAULT DELETE DESC DISTINCT DROP ELSE END EXISTS
		FOREIGN FROM FULL GROUP HAVING IN INDEX INNER INSERT INTO IS JOIN KEY LEFT
		LIKE LIMIT NOT NULL OF ON OR ORDER OUTER PRIMARY REFERENCES RIGHT ROWS
		SELECT SET TABLE THEN TO TOP UNION UNIQUE UPDATE USER VALUES VIEW WHEN
		WHERE WITH`) {
		reserved[w] = true
	}
}

// needsQuote reports whether ident is a reserved word or not a plain identifier.
func needsQuote(ident string) bool {
	return !plainIdent.MatchString(ident) || reserved[strings.ToUpper(ident)]
}

// normalize maps ident onto identifier characters.
func normalize(ident string) string {
	var b strings.Builder
	for _, r := range ident {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func declareColumns(d Dialect, columns []Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = d.Quote(c.Name) + " " + c.Type
	}
	return strings.Join(defs, ", ")
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return SQLServer }

func (sqlServerDialect) Quote(ident string) string {
	if !needsQuote(ident) {
		return ident
	}
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (sqlServerDialect) Variable(name string) string { return "@" + name }

func (d sqlServerDialect) Declare(variable string, columns []Column) string {
	return fmt.Sprintf("DECLARE %s TABLE( %s )", variable, declareColumns(d, columns))
}

func (sqlServerDialect) Drop(string) string { return "" }
func (sqlServerDialect) KeyParam() string { return "@__id" }
func (sqlServerDialect) SingleBatch() bool { return true }
func (sqlServerDialect) Terminator() string { return "" }

// tempTables is shared by the providers without table variables: each
// intermediate is a temporary table created, filled and dropped statement by
// statement.
type tempTables struct{}

func (tempTables) SingleBatch() bool { return false }
func (tempTables) Terminator() string { return ";" }

type sqliteDialect struct{ tempTables }

func (sqliteDialect) Name() string { return SQLite }

func (sqliteDialect) Quote(ident string) string {
	if !needsQuote(ident) {
		return ident
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqliteDialect) Variable(name string) string { return d.Quote(name) }

func (d sqliteDialect) Declare(variable string, columns []Column) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s( %s )", variable, declareColumns(d, columns))
}

func (sqliteDialect) Drop(variable string) string { return "DROP TABLE IF EXISTS temp." + variable }
func (sqliteDialect) KeyParam() string { return "?" }

type postgresDialect struct{ tempTables }

func (postgresDialect) Name() string { return PostgreSQL }

// Quote always quotes: unquoted identifiers fold to lower case.
func (postgresDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d postgresDialect) Variable(name string) string { return d.Quote(name) }

func (d postgresDialect) Declare(variable string, columns []Column) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s( %s )", variable, declareColumns(d, columns))
}

func (postgresDialect) Drop(variable string) string { return "DROP TABLE IF EXISTS " + variable }
func (postgresDialect) KeyParam() string { return "$1" }

type mysqlDialect struct{ tempTables }

func (mysqlDialect) Name() string { return MySQL }

func (mysqlDialect) Quote(ident string) string {
	if !needsQuote(ident) {
		return ident
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d mysqlDialect) Variable(name string) string { return d.Quote(name) }

func (d mysqlDialect) Declare(variable string, columns []Column) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s( %s )", variable, declareColumns(d, columns))
}

func (mysqlDialect) Drop(variable string) string { return "DROP TEMPORARY TABLE IF EXISTS " + variable }
func (mysqlDialect) KeyParam() string { return "?" }

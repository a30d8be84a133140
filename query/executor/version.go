package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/batchsql/query/sqlgen"
)

var ErrServerVersion = errors.New("server version does not satisfy constraint")

var versionQueries = map[string]string{
	sqlgen.SQLServer:  "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))",
	sqlgen.PostgreSQL: "SHOW server_version",
	sqlgen.MySQL:      "SELECT VERSION()",
	sqlgen.SQLite:     "SELECT sqlite_version()",
}

// ServerVersion asks the server for its version.
func ServerVersion(ctx context.Context, q Querier, dialect string) (*version.Version, error) {
	query, ok := versionQueries[dialect]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sqlgen.ErrUnknownDialect, dialect)
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query server version: %w", err)
	}
	defer rows.Close()

	var raw string
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query server version: %w", err)
		}
		return nil, fmt.Errorf("server returned no version")
	}
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to scan server version: %w", err)
	}
	return parseServerVersion(raw)
}

// parseServerVersion keeps the numeric core of strings such as
// "8.0.36-0ubuntu0.22.04.1" or "16.2 (Debian 16.2-1)".
func parseServerVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty server version")
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid server version %q: %w", raw, err)
	}
	return v.Core(), nil
}

// CheckServerVersion fails with ErrServerVersion when the server does not
// satisfy constraint, for example ">= 13".
func CheckServerVersion(ctx context.Context, q Querier, dialect, constraint string) (*version.Version, error) {
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := ServerVersion(ctx, q, dialect)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return v, fmt.Errorf("%w: %s %s, need %s", ErrServerVersion, dialect, v, constraint)
	}
	return v, nil
}

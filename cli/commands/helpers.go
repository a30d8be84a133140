package commands

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"

	"github.com/satishbabariya/batchsql/cli/internal/config"
	"github.com/satishbabariya/batchsql/psl"
	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/query/expr"
	"github.com/satishbabariya/batchsql/query/graph"
	"github.com/satishbabariya/batchsql/query/result"
)

// resolveSchemaPath picks the schema file:
// 1. the --schema flag
// 2. schema_path from the config, when that file exists
// 3. the first schema found in a common location
func resolveSchemaPath() (string, error) {
	if schemaPath != "" {
		return schemaPath, nil
	}
	if cfg != nil && cfg.SchemaPath != "" {
		if _, err := config.AppFs.Stat(cfg.SchemaPath); err == nil {
			return cfg.SchemaPath, nil
		}
	}
	if found := findSchemaFile(); found != "" {
		return found, nil
	}
	return "", fmt.Errorf("schema file not found, pass --schema")
}

// findSchemaFile attempts to find a schema file in common locations
func findSchemaFile() string {
	for _, path := range []string{"schema.prisma", "prisma/schema.prisma", "db/schema.prisma"} {
		if _, err := config.AppFs.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadSchema() (*psl.Schema, string, error) {
	path, err := resolveSchemaPath()
	if err != nil {
		return nil, "", err
	}
	schema, err := psl.Load(config.AppFs, path)
	if err != nil {
		return nil, path, err
	}
	return schema, path, nil
}

func loadQuery(path string) (*expr.Node, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query: %w", err)
	}
	return expr.Decode(bytes.NewReader(data))
}

func isPlanFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".msgpack" || ext == ".plan"
}

func loadPlan(path string) (*compiler.Plan, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return compiler.DecodePlan(data)
}

func writePlan(path string, plan *compiler.Plan) error {
	data, err := plan.Encode()
	if err != nil {
		return err
	}
	return afero.WriteFile(config.AppFs, path, data, 0o644)
}

// compilerOptions merges flags over the config file.
func compilerOptions(dialect string, fastPath []string, maxPasses int) []compiler.Option {
	var opts []compiler.Option
	if dialect == "" && cfg != nil {
		dialect = cfg.Dialect
	}
	if dialect != "" {
		opts = append(opts, compiler.WithDialect(dialect))
	}
	if len(fastPath) == 0 && cfg != nil {
		fastPath = cfg.FastPathKeys
	}
	if len(fastPath) > 0 {
		opts = append(opts, compiler.WithFastPathKeys(fastPath...))
	}
	if maxPasses > 0 {
		opts = append(opts, compiler.WithMaxPasses(maxPasses))
	}
	return opts
}

// graphTree lists the table graph of plan for ui.PrintTree.
func graphTree(plan *compiler.Plan) pterm.LeveledList {
	var items pterm.LeveledList
	g := plan.TableGraph()
	if g == nil {
		return items
	}
	g.Walk(func(n *graph.TableNode, via *graph.Connection, depth int) {
		text := fmt.Sprintf("%s {%s}", n.Table, strings.Join(n.Columns, ", "))
		if via != nil {
			text += " ON " + via.String()
		}
		items = append(items, pterm.LeveledListItem{Level: depth, Text: text})
	})
	return items
}

// explainMarkdown describes plan as a markdown document.
func explainMarkdown(plan *compiler.Plan, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Query plan (%s)\n\n", plan.Dialect)
	fmt.Fprintf(&b, "Compiled in %s into %d result sets.\n\n", elapsed.Round(time.Microsecond), len(plan.ReadOrder))

	b.WriteString("| # | Table | Variable | Columns | Root key |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, u := range plan.Batch.Units {
		cols := make([]string, len(u.Columns))
		for j, c := range u.Columns {
			cols[j] = c.Name + " " + c.Type
		}
		key := "no"
		if u.UsesKey {
			key = "yes"
		}
		fmt.Fprintf(&b, "| %d | %s | `%s` | %s | %s |\n", i+1, u.Table, u.Variable, strings.Join(cols, ", "), key)
	}

	stats := plan.Stats()
	b.WriteString("\n## Optimizer\n\n")
	fmt.Fprintf(&b, "- passes: %d\n", stats.Passes)
	fmt.Fprintf(&b, "- merged duplicate paths: %d\n", stats.Merged)
	fmt.Fprintf(&b, "- lifted back edges: %d\n", stats.Lifted)
	fmt.Fprintf(&b, "- connections: %d before, %d after\n", stats.Before, stats.After)

	b.WriteString("\n## Table graph\n\n```text\n")
	b.WriteString(plan.Graph)
	b.WriteString("```\n\n## SQL\n\n```sql\n")
	b.WriteString(plan.SQL)
	b.WriteString("\n```\n")
	return b.String()
}

// parseID reads the root key as an integer when it looks like one.
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func tableRows(t *result.Table) ([]string, [][]string) {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Name
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		vals := r.Values()
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = formatValue(v)
		}
		rows[i] = row
	}
	return headers, rows
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

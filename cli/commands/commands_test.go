package commands

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/batchsql/cli/internal/config"
	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

const shopSchema = `
datasource db {
  provider = "sqlite"
}

model Customer {
  Id     Int    @id
  Name   String
  Orders Order[]
}

model Order {
  Id         Int      @id
  CustomerId Int
  Total      Decimal  @db.Decimal(10, 2)
  Customer   Customer @relation(fields: [CustomerId], references: [Id])
}
`

const ordersQuery = `
call: Select
source:
  call: SelectMany
  source: {table: Customer}
  args:
    - lambda: [c]
      body: {member: Orders, of: {param: c}}
args:
  - lambda: [o]
    body: {member: Total, of: {param: o}}
`

// run executes the CLI on an in-memory filesystem holding the schema and
// query, and returns what it printed.
func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	prevFs := config.AppFs
	config.AppFs = fs
	var out bytes.Buffer
	prevOut, prevErr := ui.Out, ui.Err
	ui.Out, ui.Err = &out, &out
	prevRaw := pterm.RawOutput
	pterm.RawOutput = true
	t.Cleanup(func() {
		config.AppFs = prevFs
		ui.Out, ui.Err = prevOut, prevErr
		pterm.RawOutput = prevRaw
	})
	t.Setenv("DATABASE_URL", "")

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func shopFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "schema.prisma", []byte(shopSchema), 0o644))
	require.NoError(t, afero.WriteFile(fs, "orders.yaml", []byte(ordersQuery), 0o644))
	return fs
}

func TestCompileCommand(t *testing.T) {
	out, err := run(t, shopFs(t), "compile", "orders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TEMP TABLE tableCustomer( Id INTEGER );")
	assert.Contains(t, out, "SELECT * FROM tableOrder;")
}

func TestCompileCommandDialectAndGraph(t *testing.T) {
	out, err := run(t, shopFs(t), "compile", "--dialect", "sqlserver", "--graph", "orders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer {Id}")
	assert.Contains(t, out, "Order {CustomerId, Total} ON Customer.Id=Order.CustomerId")
	assert.NotContains(t, out, "DECLARE")
}

func TestCompileCommandWritesPlan(t *testing.T) {
	fs := shopFs(t)
	out, err := run(t, fs, "compile", "--dialect", "sqlserver", "-o", "orders.msgpack", "orders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan for 2 tables written to orders.msgpack")

	data, err := afero.ReadFile(fs, "orders.msgpack")
	require.NoError(t, err)
	plan, err := compiler.DecodePlan(data)
	require.NoError(t, err)
	assert.Equal(t, sqlgen.SQLServer, plan.Dialect)
	assert.Equal(t, []string{"Customer", "Order"}, plan.ReadOrder)
}

func TestCompileCommandErrors(t *testing.T) {
	fs := shopFs(t)

	_, err := run(t, fs, "compile", "missing.yaml")
	assert.ErrorContains(t, err, "failed to read query")

	_, err = run(t, fs, "compile", "--dialect", "oracle", "orders.yaml")
	assert.ErrorIs(t, err, sqlgen.ErrUnknownDialect)

	_, err = run(t, afero.NewMemMapFs(), "compile", "orders.yaml")
	assert.ErrorContains(t, err, "schema file not found")
}

func TestExplainMarkdown(t *testing.T) {
	fs := shopFs(t)
	_, err := run(t, fs, "validate")
	require.NoError(t, err)

	schema, _, err := loadSchema()
	require.NoError(t, err)
	tree, err := loadQuery("orders.yaml")
	require.NoError(t, err)
	c, err := compiler.New(schema)
	require.NoError(t, err)
	plan, err := c.Compile(tree)
	require.NoError(t, err)

	md := explainMarkdown(plan, 0)
	assert.Contains(t, md, "# Query plan (sqlite)")
	assert.Contains(t, md, "| 2 | Order | `tableOrder` | CustomerId INTEGER, Total DECIMAL(10,2) | no |")
	assert.Contains(t, md, "```sql\n"+plan.SQL+"\n```")
	assert.Len(t, graphTree(plan), 2)
}

func TestCompileCommandExplain(t *testing.T) {
	out, err := run(t, shopFs(t), "compile", "--explain", "orders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "orders.yaml")
	assert.Contains(t, out, "sqlite plan, 2 tables")
	assert.Contains(t, out, "tableOrder")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, shopFs(t), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is valid: schema.prisma")
	assert.Contains(t, out, "provider sqlite")
	assert.Contains(t, out, "Orders -> Order")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.prisma", []byte("model A {\n  B Missing\n}\n"), 0o644))
	out, err = run(t, fs, "validate", "bad.prisma")
	require.Error(t, err)
	assert.Contains(t, out, "Schema validation failed")
}

func TestExecCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE Customer (Id INTEGER PRIMARY KEY, Name TEXT)`,
		`CREATE TABLE "Order" (Id INTEGER PRIMARY KEY, CustomerId INTEGER, Total DECIMAL(10,2))`,
		`INSERT INTO Customer VALUES (1, 'Ada'), (2, 'Grace')`,
		`INSERT INTO "Order" VALUES (1, 1, 10.25), (2, 1, 5.25), (3, 2, 42.75)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	fs := shopFs(t)
	out, err := run(t, fs, "exec", "--url", dbPath, "--id", "1", "--min-version", ">= 3.0", "orders.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer (1 rows)")
	assert.Contains(t, out, "Order (2 rows)")
	assert.Contains(t, out, "10.25")
	assert.NotContains(t, out, "42.75")

	// A saved plan runs without the schema.
	_, err = run(t, fs, "compile", "-o", "orders.msgpack", "orders.yaml")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("schema.prisma"))

	out, err = run(t, fs, "exec", "--url", dbPath, "--id", "2", "--tx", "orders.msgpack")
	require.NoError(t, err)
	assert.Contains(t, out, "Order (1 rows)")
	assert.Contains(t, out, "42.75")

	out, err = run(t, fs, "exec", "--url", dbPath, "--id", "3", "orders.msgpack")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer (0 rows)")
	assert.Contains(t, out, "No rows in Order")
}

func TestExecCommandNeedsURL(t *testing.T) {
	_, err := run(t, shopFs(t), "exec", "--id", "1", "orders.yaml")
	assert.ErrorContains(t, err, "no database URL")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "batchsql version")
}

func TestParseID(t *testing.T) {
	assert.Equal(t, int64(42), parseID("42"))
	assert.Equal(t, "c-42", parseID("c-42"))
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "abc", formatValue([]byte("abc")))
}

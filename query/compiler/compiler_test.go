package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/batchsql/psl"
	"github.com/satishbabariya/batchsql/query/chain"
	"github.com/satishbabariya/batchsql/query/expr"
	"github.com/satishbabariya/batchsql/query/graph"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

const shop = `
datasource db {
  provider = "sqlserver"
}

model Customer {
  Id      Int    @id
  Name    String @db.NVarChar(100)
  OwnerId Int
  Orders  Order[]
  Notes   Note[]
}

model Order {
  Id         Int      @id
  CustomerId Int
  Total      Decimal  @db.Decimal(10, 2)
  Customer   Customer @relation(fields: [CustomerId], references: [Id])
}

model Note {
  Id         Int      @id
  CustomerId Int
  OwnerId    Int
  Text       String
  Customer   Customer @relation(fields: [CustomerId], references: [Id])
}

model Line {
  Id      Int @id
  OrderId Int
}
`

var schema = psl.MustParseString("shop.prisma", shop)

func newCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	c, err := New(schema, opts...)
	require.NoError(t, err)
	return c
}

// db.Customer.SelectMany(c => c.Orders).Select(o => o.Total)
func customerOrders() *expr.Node {
	return expr.Call("Select",
		expr.Call("SelectMany", expr.Table("Customer"), expr.Lambda(expr.Path("c", "Orders"), "c")),
		expr.Lambda(expr.Path("o", "Total"), "o"))
}

func TestCompileOneToMany(t *testing.T) {
	plan, err := newCompiler(t).Compile(customerOrders())
	require.NoError(t, err)

	assert.Equal(t, sqlgen.SQLServer, plan.Dialect)
	assert.Equal(t, []string{"Customer", "Order"}, plan.ReadOrder)
	assert.Equal(t, plan.Batch.SQL(), plan.SQL)
	assert.True(t, strings.HasPrefix(plan.SQL, "DECLARE @tableCustomer TABLE( Id INT )\n"))
	assert.Contains(t, plan.SQL, "ON [current].CustomerId=previous.Id")
	assert.Equal(t, "Customer {Id}\n  Order {CustomerId, Total} ON Customer.Id=Order.CustomerId\n", plan.Graph)
	assert.NotNil(t, plan.TableGraph())
}

func TestCompileDiamondLift(t *testing.T) {
	// db.Customer.SelectMany(c => c.Orders).Select(o => o.Customer).SelectMany(c => c.Notes).Select(n => n.Text)
	n := expr.Call("Select",
		expr.Call("SelectMany",
			expr.Call("Select",
				expr.Call("SelectMany", expr.Table("Customer"), expr.Lambda(expr.Path("c", "Orders"), "c")),
				expr.Lambda(expr.Path("o", "Customer"), "o")),
			expr.Lambda(expr.Path("c", "Notes"), "c")),
		expr.Lambda(expr.Path("n", "Text"), "n"))

	plan, err := newCompiler(t).Compile(n)
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer", "Order", "Note"}, plan.ReadOrder)
	assert.Equal(t, 1, plan.Stats().Lifted)
	assert.Contains(t, plan.SQL, "INNER JOIN @tableCustomer AS previous ON [current].CustomerId=previous.Id\nSELECT * FROM @tableNote")
}

func TestCompileWithDialectAndFastPath(t *testing.T) {
	// db.Customer.SelectMany(c => c.Notes).Select(n => n.Text)
	n := expr.Call("Select",
		expr.Call("SelectMany", expr.Table("Customer"), expr.Lambda(expr.Path("c", "Notes"), "c")),
		expr.Lambda(expr.Path("n", "Text"), "n"))

	plan, err := newCompiler(t, WithDialect(sqlgen.SQLite), WithFastPathKeys("OwnerId")).Compile(n)
	require.NoError(t, err)

	assert.Equal(t, sqlgen.SQLite, plan.Dialect)
	assert.Contains(t, plan.SQL, `WHERE "current".OwnerId = ?;`)
	assert.Contains(t, plan.SQL, "DROP TABLE IF EXISTS temp.tableNote;")
	require.Len(t, plan.Batch.Units, 2)
	assert.True(t, plan.Batch.Units[1].UsesKey)
}

func TestCompileErrors(t *testing.T) {
	c := newCompiler(t)

	t.Run("unsupported expression", func(t *testing.T) {
		_, err := c.Compile(expr.Call("Aggregate", expr.Table("Customer")))
		assert.ErrorIs(t, err, ErrTranslation)
		assert.ErrorIs(t, err, chain.ErrUnsupportedExpression)
	})

	t.Run("unconnected table", func(t *testing.T) {
		// db.Customer.Where(c => db.Line.Any(l => l.Id == 1))
		n := expr.Call("Where", expr.Table("Customer"), expr.Lambda(
			expr.Call("Any", expr.Table("Line"), expr.Lambda(expr.Eq(expr.Path("l", "Id"), expr.Const(1)), "l")), "c"))
		_, err := c.Compile(n)
		require.ErrorIs(t, err, ErrTranslation)
		assert.ErrorIs(t, err, graph.ErrConnectionNotFound)

		var nc *graph.NoConnectionError
		require.True(t, errors.As(err, &nc))
		assert.Equal(t, "Line", nc.Table)
	})
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	_, err := New(schema, WithDialect("oracle"))
	assert.ErrorIs(t, err, sqlgen.ErrUnknownDialect)
}

func TestPlanEncoding(t *testing.T) {
	plan, err := newCompiler(t).Compile(customerOrders())
	require.NoError(t, err)

	data, err := plan.Encode()
	require.NoError(t, err)
	decoded, err := DecodePlan(data)
	require.NoError(t, err)

	assert.Equal(t, plan.SQL, decoded.SQL)
	assert.Equal(t, plan.ReadOrder, decoded.ReadOrder)
	assert.Equal(t, plan.Batch, decoded.Batch)
	assert.Nil(t, decoded.TableGraph())

	_, err = DecodePlan([]byte{0xc1})
	assert.Error(t, err)
}

func TestCompileCache(t *testing.T) {
	c := newCompiler(t, WithCache(4))

	first, err := c.Compile(customerOrders())
	require.NoError(t, err)
	second, err := c.Compile(customerOrders())
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	c.Reset()
	third, err := c.Compile(customerOrders())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.SQL, third.SQL)
}

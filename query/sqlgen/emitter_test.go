package sqlgen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/batchsql/psl"
	"github.com/satishbabariya/batchsql/query/chain"
	"github.com/satishbabariya/batchsql/query/expr"
	"github.com/satishbabariya/batchsql/query/graph"
	"github.com/satishbabariya/batchsql/query/optimizer"
)

const shop = `
datasource db {
  provider = "sqlserver"
}

model T {
  Id Int    @id
  X  String @db.NVarChar(50)
  Y  Int
  Z  Int
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

model Item {
  Sku   String
  Shelf Int
  @@id([Sku, Shelf])
}
`

var schema = psl.MustParseString("shop.prisma", shop)

func compile(t *testing.T, n *expr.Node) *graph.Graph {
	t.Helper()
	c, err := chain.Build(chain.NewContext(schema), n)
	require.NoError(t, err)
	g, err := graph.Build(schema, c)
	require.NoError(t, err)
	optimizer.New(optimizer.WithSchema(schema)).Optimize(g)
	return g
}

func emit(t *testing.T, g *graph.Graph, dialect string, opts Options) *Batch {
	t.Helper()
	b, err := NewEmitter(schema, MustDialect(dialect), opts).Emit(g)
	require.NoError(t, err)
	return b
}

// db.Customer.SelectMany(c => c.Orders).Select(o => o.Total)
func customerOrders() *expr.Node {
	return expr.Call("Select",
		expr.Call("SelectMany", expr.Table("Customer"), expr.Lambda(expr.Path("c", "Orders"), "c")),
		expr.Lambda(expr.Path("o", "Total"), "o"))
}

func TestEmitRootOnly(t *testing.T) {
	// db.T.Select(t => new { X = t.X, Y = t.Y })
	g := compile(t, expr.Call("Select", expr.Table("T"),
		expr.Lambda(expr.New(expr.F("X", expr.Path("t", "X")), expr.F("Y", expr.Path("t", "Y"))), "t")))
	b := emit(t, g, SQLServer, Options{})

	require.Len(t, b.Units, 1)
	assert.Equal(t, []string{"T"}, b.ReadOrder)
	u := b.Units[0]
	assert.Equal(t, []Column{{"Id", "INT"}, {"X", "NVARCHAR(50)"}, {"Y", "INT"}}, u.Columns)
	assert.Equal(t, "DECLARE @tableT TABLE( Id INT, X NVARCHAR(50), Y INT )", u.Declare)
	assert.Equal(t, "INSERT INTO @tableT(Id, X, Y)\n"+
		"    SELECT [current].Id, [current].X, [current].Y\n"+
		"        FROM T AS [current]\n"+
		"            WHERE [current].Id = @__id", u.Insert)
	assert.Equal(t, "SELECT * FROM @tableT", u.Select)
	assert.True(t, u.UsesKey)
	assert.Empty(t, u.Drop)
}

func TestEmitOneToMany(t *testing.T) {
	b := emit(t, compile(t, customerOrders()), SQLServer, Options{})

	assert.Equal(t, []string{"Customer", "Order"}, b.ReadOrder)
	require.Len(t, b.Units, 2)
	assert.Contains(t, b.Units[1].Insert, "INNER JOIN @tableCustomer AS previous ON [current].CustomerId=previous.Id")
	assert.False(t, b.Units[1].UsesKey)

	// The child alias is quoted as [current] since CURRENT is reserved in
	// T-SQL; previous is not reserved and stays bare.
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "customer_orders_sqlserver", []byte(b.SQL()))
}

func TestEmitSQLite(t *testing.T) {
	b := emit(t, compile(t, customerOrders()), SQLite, Options{})

	assert.Equal(t, "DROP TABLE IF EXISTS temp.tableOrder", b.Units[1].Drop)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "customer_orders_sqlite", []byte(b.SQL()))
}

func TestEmitFastPath(t *testing.T) {
	// db.Customer.SelectMany(c => c.Notes).Select(n => n.Text)
	g := compile(t, expr.Call("Select",
		expr.Call("SelectMany", expr.Table("Customer"), expr.Lambda(expr.Path("c", "Notes"), "c")),
		expr.Lambda(expr.Path("n", "Text"), "n")))
	b := emit(t, g, SQLServer, Options{FastPathKeys: []string{"OwnerId"}})

	require.Len(t, b.Units, 2)
	// The root keeps its key filter even though it has an owner column.
	assert.Contains(t, b.Units[0].Insert, "WHERE [current].Id = @__id")
	assert.Contains(t, b.Units[1].Insert, "WHERE [current].OwnerId = @__id")
	assert.NotContains(t, b.Units[1].Insert, "INNER JOIN")
	assert.True(t, b.Units[1].UsesKey)
	assert.Equal(t, []string{"Customer", "Note"}, b.ReadOrder)
}

func TestEmitDistinctParentFields(t *testing.T) {
	// db.Order.Select(o => o.Customer).Select(c => c.Name)
	g := compile(t, expr.Call("Select",
		expr.Call("Select", expr.Table("Order"), expr.Lambda(expr.Path("o", "Customer"), "o")),
		expr.Lambda(expr.Path("c", "Name"), "c")))
	b := emit(t, g, SQLServer, Options{})

	require.Len(t, b.Units, 2)
	assert.Equal(t, "INSERT INTO @tableCustomer(Id, Name)\n"+
		"    SELECT [current].Id, [current].Name\n"+
		"        FROM Customer AS [current]\n"+
		"            INNER JOIN (SELECT DISTINCT CustomerId FROM @tableOrder) AS previous ON [current].Id=previous.CustomerId",
		b.Units[1].Insert)
}

func TestEmitJoinWithoutPrimaryKey(t *testing.T) {
	g := graph.New()
	c := g.Add("Customer")
	g.Root = c
	n := g.Add("Note")
	g.Connect(c, []string{"OwnerId"}, n, []string{"OwnerId"})

	_, err := NewEmitter(schema, MustDialect(SQLServer), Options{}).Emit(g)
	require.ErrorIs(t, err, ErrJoinWithoutPrimaryKey)
	assert.Contains(t, err.Error(), "at least one part of join must point to PK")
}

func TestEmitRootKeyMustBeSingleColumn(t *testing.T) {
	g := graph.New()
	g.Root = g.Add("Item")

	_, err := NewEmitter(schema, MustDialect(SQLServer), Options{}).Emit(g)
	assert.ErrorIs(t, err, ErrRootKey)

	_, err = NewEmitter(schema, MustDialect(SQLServer), Options{}).Emit(graph.New())
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestEmitUnionsColumnsPerTable(t *testing.T) {
	g := graph.New()
	c := g.Add("Customer")
	g.Root = c
	o1 := g.Add("Order")
	o2 := g.Add("Order")
	g.Connect(c, []string{"Id"}, o1, []string{"CustomerId"})
	g.Connect(c, []string{"Id"}, o2, []string{"CustomerId"})
	g.Node(o2).Use("Total")

	b := emit(t, g, SQLServer, Options{})

	require.Len(t, b.Units, 3)
	assert.Equal(t, "@tableOrder", b.Units[1].Variable)
	assert.Equal(t, "@tableOrder1", b.Units[2].Variable)
	assert.Equal(t, b.Units[1].Columns, b.Units[2].Columns)
	assert.Equal(t, []string{"Customer", "Order", "Order"}, b.ReadOrder)
}

func TestEmitLeavesGraphUntouched(t *testing.T) {
	g := compile(t, customerOrders())
	before := g.String()

	first := emit(t, g, SQLServer, Options{})
	second := emit(t, g, SQLServer, Options{})

	assert.Equal(t, before, g.String())
	assert.Equal(t, first.SQL(), second.SQL())
}

func TestNamer(t *testing.T) {
	n := newNamer()
	assert.Equal(t, "tableOrder_Line", n.next("Order Line"))
	assert.Equal(t, "tableOrder_Line1", n.next("Order-Line"))
	assert.Equal(t, "tableOrder_Line2", n.next("Order Line"))
	assert.Equal(t, "tabledbo_Customer", n.next("dbo.Customer"))
}

func TestDialects(t *testing.T) {
	tests := []struct {
		provider string
		quoted   string
		variable string
		declare  string
		param    string
	}{
		{SQLServer, "[Order]", "@tableOrder", "DECLARE @tableOrder TABLE( Id INT )", "@__id"},
		{SQLite, `"Order"`, "tableOrder", "CREATE TEMP TABLE tableOrder( Id INT )", "?"},
		{PostgreSQL, `"Order"`, `"tableOrder"`, `CREATE TEMP TABLE "tableOrder"( "Id" INT )`, "$1"},
		{MySQL, "`Order`", "tableOrder", "CREATE TEMPORARY TABLE tableOrder( Id INT )", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			d, err := NewDialect(tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, d.Name())
			assert.Equal(t, tt.quoted, d.Quote("Order"))
			v := d.Variable("tableOrder")
			assert.Equal(t, tt.variable, v)
			assert.Equal(t, tt.declare, d.Declare(v, []Column{{"Id", "INT"}}))
			assert.Equal(t, tt.param, d.KeyParam())
			assert.Equal(t, tt.provider == SQLServer, d.SingleBatch())
		})
	}

	_, err := NewDialect("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestBatchSQLEmpty(t *testing.T) {
	assert.Equal(t, "", (&Batch{}).SQL())
}

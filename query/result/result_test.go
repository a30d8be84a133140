package result

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultSet struct {
	columns []ColumnType
	rows    [][]any
}

// memReader replays result sets held in memory.
type memReader struct {
	sets []resultSet
	set  int
	row  int
	err  error
}

func newMemReader(sets ...resultSet) *memReader { return &memReader{sets: sets, row: -1} }

func (m *memReader) Columns() ([]ColumnType, error) { return m.sets[m.set].columns, nil }

func (m *memReader) Next() bool {
	if m.row+1 >= len(m.sets[m.set].rows) {
		return false
	}
	m.row++
	return true
}

func (m *memReader) Values() ([]any, error) { return m.sets[m.set].rows[m.row], nil }

func (m *memReader) NextResultSet() bool {
	if m.set+1 >= len(m.sets) {
		return false
	}
	m.set++
	m.row = -1
	return true
}

func (m *memReader) Err() error { return m.err }

var (
	customers = resultSet{
		columns: []ColumnType{{"Id", "INT"}, {"Name", "NVARCHAR"}, {"Vip", "BIT"}},
		rows: [][]any{
			{int64(1), "Ada", true},
			{int64(2), nil, []byte("0")},
		},
	}
	orders = resultSet{
		columns: []ColumnType{{"CustomerId", "INT"}, {"Id", "INT"}, {"Total", "DECIMAL(10,2)"}},
		rows: [][]any{
			{int64(1), int64(10), []byte("12.50")},
			{int64(1), int64(11), nil},
			{int64(2), int64(12), 3.25},
		},
	}
)

func TestFamilyOf(t *testing.T) {
	tests := map[string]Family{
		"INT":              FamilyInt,
		"bigint":           FamilyInt,
		"INT UNSIGNED":     FamilyInt,
		"DECIMAL(10,2)":    FamilyFloat,
		"double precision": FamilyFloat,
		"NUMERIC":          FamilyFloat,
		"BIT":              FamilyBool,
		"BOOLEAN":          FamilyBool,
		"NVARCHAR":         FamilyText,
		"DATETIME2":        FamilyText,
		"":                 FamilyText,
	}
	for dbType, want := range tests {
		assert.Equal(t, want, FamilyOf(dbType), dbType)
	}
}

func TestMaterialize(t *testing.T) {
	s, err := Materialize([]string{"Customer", "Order"}, newMemReader(customers, orders))
	require.NoError(t, err)

	c := s.Table("Customer")
	require.NotNil(t, c)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, []Column{
		{Name: "Id", DBType: "INT", Family: FamilyInt},
		{Name: "Name", DBType: "NVARCHAR", Family: FamilyText},
		{Name: "Vip", DBType: "BIT", Family: FamilyBool},
	}, c.Columns)

	id, err := c.Rows[0].Int64("Id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	vip, err := c.Rows[1].Bool("Vip")
	require.NoError(t, err)
	assert.False(t, vip)

	o := s.Table("Order")
	total, err := o.Rows[0].Decimal("Total")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(total))
	f, err := o.Rows[2].Float64("Total")
	require.NoError(t, err)
	assert.InDelta(t, 3.25, f, 1e-9)

	var names []string
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"Customer", "Order"}, names)
}

func TestMaterializeRevisitedTableAccumulates(t *testing.T) {
	more := resultSet{columns: customers.columns, rows: [][]any{{int64(3), "Grace", false}}}
	s, err := Materialize([]string{"Customer", "Order", "Customer"}, newMemReader(customers, orders, more))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Table("Customer").Len())
	assert.Len(t, s.Tables(), 2)
}

func TestMaterializeResultSetCount(t *testing.T) {
	t.Run("fewer", func(t *testing.T) {
		s, err := Materialize([]string{"Customer", "Order"}, newMemReader(customers))
		assert.ErrorIs(t, err, ErrResultSetCount)
		// Rows read before the failure stay.
		assert.Equal(t, 2, s.Table("Customer").Len())
	})
	t.Run("more", func(t *testing.T) {
		_, err := Materialize([]string{"Customer"}, newMemReader(customers, orders))
		assert.ErrorIs(t, err, ErrResultSetCount)
	})
}

func TestMaterializeReaderError(t *testing.T) {
	boom := errors.New("connection reset")
	r := newMemReader(customers)
	r.err = boom
	_, err := Materialize([]string{"Customer"}, r)
	assert.ErrorIs(t, err, boom)
}

func TestNullAccess(t *testing.T) {
	s, err := Materialize([]string{"Customer", "Order"}, newMemReader(customers, orders))
	require.NoError(t, err)
	row := s.Table("Order").Rows[1]

	isNull, err := row.IsNull("Total")
	require.NoError(t, err)
	assert.True(t, isNull)

	nd, err := row.NullDecimal("Total")
	require.NoError(t, err)
	assert.False(t, nd.Valid)
	nf, err := row.NullFloat64("Total")
	require.NoError(t, err)
	assert.False(t, nf.Valid)

	_, err = row.Decimal("Total")
	assert.ErrorIs(t, err, ErrNullValue)
	_, err = row.Float64("Total")
	assert.ErrorIs(t, err, ErrNullValue)

	name := s.Table("Customer").Rows[1]
	ns, err := name.NullString("Name")
	require.NoError(t, err)
	assert.False(t, ns.Valid)
	_, err = name.String("Name")
	assert.ErrorIs(t, err, ErrNullValue)

	v, err := name.Value("Name")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTypeMismatch(t *testing.T) {
	s, err := Materialize([]string{"Customer"}, newMemReader(customers))
	require.NoError(t, err)
	row := s.Table("Customer").Rows[0]

	_, err = row.String("Id")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = row.NullInt64("Name")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = row.Decimal("Vip")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = row.Int64("Missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	ni, err := row.NullInt64("Id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ni.Int64)
	assert.True(t, ni.Valid)

	bad := resultSet{columns: []ColumnType{{"Id", "INT"}}, rows: [][]any{{"seven"}}}
	_, err = Materialize([]string{"T"}, newMemReader(bad))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestConvertInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"int64", int64(-3), -3, false},
		{"uint32", uint32(7), 7, false},
		{"max uint64 fits", uint64(math.MaxInt64), math.MaxInt64, false},
		{"uint64 overflow", uint64(math.MaxUint64), 0, true},
		{"uint overflow", uint(math.MaxInt64) + 1, 0, true},
		{"bytes", []byte("12"), 12, false},
		{"text", "twelve", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(FamilyInt, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexes(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.DeclareIndex("Customer", "Id", true))
	require.NoError(t, s.DeclareIndex("Order", "CustomerId", false))
	require.NoError(t, s.Read([]string{"Customer", "Order"}, newMemReader(customers, orders)))

	rows, err := s.Table("Order").Find("CustomerId", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Unindexed columns are scanned.
	rows, err = s.Table("Order").Find("Total", "12.5")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id, _ := rows[0].Int64("Id")
	assert.Equal(t, int64(10), id)

	err = s.Table("Customer").DeclareIndex("Name", false)
	assert.ErrorIs(t, err, ErrIndexAfterRows)
	err = s.DeclareIndex("Customer", "Name", false)
	assert.ErrorIs(t, err, ErrIndexAfterRows)
}

func TestUniqueIndexRejectsDuplicates(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.DeclareIndex("Order", "CustomerId", true))
	err := s.Read([]string{"Order"}, newMemReader(orders))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestReferenced(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.DeclareIndex("Customer", "Id", true))
	require.NoError(t, s.Read([]string{"Customer", "Order"}, newMemReader(customers, orders)))

	order := s.Table("Order").Rows[2]
	c, err := order.Referenced("CustomerId", "Customer", "Id")
	require.NoError(t, err)
	require.NotNil(t, c)
	vip, err := c.Bool("Vip")
	require.NoError(t, err)
	assert.False(t, vip)

	_, err = order.Referenced("CustomerId", "Line", "OrderId")
	assert.ErrorIs(t, err, ErrUnknownTable)

	// Lookups without an index fall back to a scan.
	o, err := c.Referenced("Id", "Order", "CustomerId")
	require.NoError(t, err)
	require.NotNil(t, o)
	id, err := o.Int64("Id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	null := s.Table("Customer").Rows[1]
	none, err := null.Referenced("Name", "Order", "Id")
	require.NoError(t, err)
	assert.Nil(t, none)
}

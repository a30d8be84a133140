// Package psl reads the mapping schema that tells the compiler how entities
// map to tables: a small Prisma-style language of datasource and model
// blocks.
//
//	datasource db {
//	  provider = "sqlserver"
//	}
//
//	model Customer {
//	  Id     Int     @id
//	  Name   String  @db.NVarChar(100)
//	  Orders Order[]
//	  @@map("Customers")
//	}
//
// A parsed Schema answers the compiler's metadata questions: which table a
// query source names, what a member of a table is (column or association),
// primary keys and SQL column types.
package psl

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/satishbabariya/batchsql/query/chain"
)

var (
	ErrSyntax  = errors.New("schema syntax error")
	ErrInvalid = errors.New("invalid schema")
)

// Providers are the datasource providers the compiler can target.
const (
	ProviderSQLServer  = "sqlserver"
	ProviderPostgreSQL = "postgresql"
	ProviderMySQL      = "mysql"
	ProviderSQLite     = "sqlite"
)

// Relation is the resolved association behind a relation field.
type Relation struct {
	Name       string
	Target     string   // target model name
	Fields     []string // local scalar fields, empty on the back-relation side
	References []string // target fields, empty on the back-relation side
}

// Field is one field of a model.
type Field struct {
	Name       string
	Column     string
	Type       string
	NativeType string
	Optional   bool
	List       bool
	ID         bool
	Relation   *Relation
}

// IsScalar reports whether the field is stored in a column.
func (f *Field) IsScalar() bool { return f.Relation == nil }

// Model is one mapped entity.
type Model struct {
	Name   string
	Table  string
	Fields []*Field
	PK     []string // primary-key field names

	fields  map[string]*Field
	columns map[string]*Field
}

// Field returns the field called name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Column returns the scalar field stored in column.
func (m *Model) Column(column string) (*Field, bool) {
	f, ok := m.columns[column]
	return f, ok
}

// Schema is a validated mapping schema.
type Schema struct {
	provider string
	models   []*Model
	byName   map[string]*Model
	byTable  map[string]*Model
}

// Parse parses and validates schema source.
func Parse(filename string, r io.Reader) (*Schema, error) {
	f, err := ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	return newSchema(f)
}

// ParseString parses and validates schema source held in a string.
func ParseString(filename, src string) (*Schema, error) {
	return Parse(filename, strings.NewReader(src))
}

// MustParseString is ParseString that panics on error.
func MustParseString(filename, src string) *Schema {
	s, err := ParseString(filename, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads and parses the schema at path on fs.
func Load(fs afero.Fs, path string) (*Schema, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseString(path, string(data))
}

// Provider returns the datasource provider, sqlserver when none is declared.
func (s *Schema) Provider() string { return s.provider }

// Models returns the models in declaration order.
func (s *Schema) Models() []*Model { return s.models }

// Model returns a model by model name or by table name.
func (s *Schema) Model(name string) (*Model, bool) {
	if m, ok := s.byName[name]; ok {
		return m, true
	}
	m, ok := s.byTable[name]
	return m, ok
}

// Table resolves a query source to its physical table.
func (s *Schema) Table(name string) (string, bool) {
	m, ok := s.Model(name)
	if !ok {
		return "", false
	}
	return m.Table, true
}

// Member describes member of the model stored in table.
func (s *Schema) Member(table, member string) (chain.Member, bool) {
	m, ok := s.byTable[table]
	if !ok {
		return chain.Member{}, false
	}
	f, ok := m.fields[member]
	if !ok {
		return chain.Member{}, false
	}
	if f.IsScalar() {
		return chain.Member{Kind: chain.MemberColumn, Column: f.Column}, true
	}
	a, ok := s.association(m, f)
	if !ok {
		return chain.Member{}, false
	}
	return chain.Member{Kind: chain.MemberAssociation, Association: a}, true
}

func (s *Schema) association(m *Model, f *Field) (chain.Association, bool) {
	target := s.byName[f.Relation.Target]
	if len(f.Relation.Fields) == 1 {
		local := m.fields[f.Relation.Fields[0]]
		remote := target.fields[f.Relation.References[0]]
		return chain.Association{
			ThisKey:    local.Column,
			OtherTable: target.Table,
			OtherKey:   remote.Column,
			Many:       f.List,
		}, true
	}
	back, ok := s.backRelation(m, f)
	if !ok {
		return chain.Association{}, false
	}
	local := m.fields[back.Relation.References[0]]
	remote := target.fields[back.Relation.Fields[0]]
	return chain.Association{
		ThisKey:    local.Column,
		OtherTable: target.Table,
		OtherKey:   remote.Column,
		Many:       f.List,
	}, true
}

// backRelation finds the field on the target model that owns the foreign key
// of a back-relation field.
func (s *Schema) backRelation(m *Model, f *Field) (*Field, bool) {
	target := s.byName[f.Relation.Target]
	var match *Field
	for _, tf := range target.Fields {
		r := tf.Relation
		if r == nil || r.Target != m.Name || len(r.Fields) == 0 || r.Name != f.Relation.Name {
			continue
		}
		if match != nil {
			return nil, false
		}
		match = tf
	}
	return match, match != nil
}

// PKFields returns the primary-key columns of table.
func (s *Schema) PKFields(table string) []string {
	m, ok := s.byTable[table]
	if !ok {
		return nil
	}
	out := make([]string, len(m.PK))
	for i, name := range m.PK {
		out[i] = m.fields[name].Column
	}
	return out
}

// HasField reports whether table stores column.
func (s *Schema) HasField(table, column string) bool {
	m, ok := s.byTable[table]
	if !ok {
		return false
	}
	_, ok = m.columns[column]
	return ok
}

// SQLType returns the column type for the schema's provider: the @db native
// type when one is declared, otherwise the provider's default for the
// scalar type.
func (s *Schema) SQLType(table, column string) string {
	m, ok := s.byTable[table]
	if !ok {
		return ""
	}
	f, ok := m.columns[column]
	if !ok {
		return ""
	}
	if f.NativeType != "" {
		return f.NativeType
	}
	return defaultTypes[s.provider][f.Type]
}

// Columns returns the scalar columns of table, sorted.
func (s *Schema) Columns(table string) []string {
	m, ok := s.byTable[table]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.columns))
	for c := range m.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

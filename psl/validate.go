package psl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var scalarTypes = map[string]bool{
	"Int": true, "BigInt": true, "Float": true, "Decimal": true,
	"String": true, "Boolean": true, "DateTime": true,
}

var defaultTypes = map[string]map[string]string{
	ProviderSQLServer: {
		"Int": "INT", "BigInt": "BIGINT", "Float": "FLOAT", "Decimal": "DECIMAL(32,16)",
		"String": "NVARCHAR(1000)", "Boolean": "BIT", "DateTime": "DATETIME2",
	},
	ProviderPostgreSQL: {
		"Int": "INTEGER", "BigInt": "BIGINT", "Float": "DOUBLE PRECISION", "Decimal": "DECIMAL(65,30)",
		"String": "TEXT", "Boolean": "BOOLEAN", "DateTime": "TIMESTAMP(3)",
	},
	ProviderMySQL: {
		"Int": "INT", "BigInt": "BIGINT", "Float": "DOUBLE", "Decimal": "DECIMAL(65,30)",
		"String": "VARCHAR(191)", "Boolean": "BOOLEAN", "DateTime": "DATETIME(3)",
	},
	ProviderSQLite: {
		"Int": "INTEGER", "BigInt": "BIGINT", "Float": "REAL", "Decimal": "DECIMAL",
		"String": "TEXT", "Boolean": "BOOLEAN", "DateTime": "DATETIME",
	},
}

// Error is a validation error with its source position.
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *Error) Unwrap() error { return ErrInvalid }

type validator struct {
	errs []error
}

func (v *validator) errorf(pos lexer.Position, format string, args ...any) {
	v.errs = append(v.errs, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func newSchema(f *File) (*Schema, error) {
	v := &validator{}
	s := &Schema{
		provider: ProviderSQLServer,
		byName:   make(map[string]*Model),
		byTable:  make(map[string]*Model),
	}

	decls := make(map[string]*ModelDecl)
	for _, item := range f.Items {
		switch {
		case item.Datasource != nil:
			v.datasource(s, item.Datasource)
		case item.Model != nil:
			if _, dup := decls[item.Model.Name]; dup {
				v.errorf(item.Model.Pos, "model %s is declared twice", item.Model.Name)
				continue
			}
			decls[item.Model.Name] = item.Model
			m := v.model(item.Model)
			s.models = append(s.models, m)
			s.byName[m.Name] = m
		}
	}

	for _, m := range s.models {
		if other, dup := s.byTable[m.Table]; dup {
			v.errorf(decls[m.Name].Pos, "models %s and %s map to the same table %s", other.Name, m.Name, m.Table)
			continue
		}
		s.byTable[m.Table] = m
	}
	for _, m := range s.models {
		v.relations(s, m, decls[m.Name])
	}

	if len(v.errs) > 0 {
		return nil, errors.Join(v.errs...)
	}
	return s, nil
}

func (v *validator) datasource(s *Schema, d *DatasourceDecl) {
	for _, p := range d.Properties {
		if p.Key != "provider" {
			continue
		}
		if p.Value.Str == nil {
			v.errorf(p.Pos, "provider must be a string")
			continue
		}
		provider := *p.Value.Str
		if _, ok := defaultTypes[provider]; !ok {
			v.errorf(p.Pos, "unsupported provider %q", provider)
			continue
		}
		s.provider = provider
	}
}

func (v *validator) model(d *ModelDecl) *Model {
	m := &Model{
		Name:    d.Name,
		Table:   d.Name,
		fields:  make(map[string]*Field),
		columns: make(map[string]*Field),
	}

	for _, member := range d.Members {
		if member.Field != nil {
			v.field(m, member.Field)
		}
	}

	for _, member := range d.Members {
		attr := member.BlockAttribute
		if attr == nil {
			continue
		}
		switch attr.Name {
		case "map":
			if name := attr.Arg("name", 0); name != nil && name.Str != nil {
				m.Table = *name.Str
			} else {
				v.errorf(attr.Pos, "@@map on %s needs a table name", m.Name)
			}
		case "id":
			if len(m.PK) > 0 {
				v.errorf(attr.Pos, "model %s declares its primary key twice", m.Name)
				continue
			}
			for _, name := range attr.Arg("fields", 0).Idents() {
				f, ok := m.fields[name]
				if !ok || !f.IsScalar() {
					v.errorf(attr.Pos, "@@id on %s names unknown field %s", m.Name, name)
					continue
				}
				f.ID = true
				m.PK = append(m.PK, name)
			}
		case "index", "unique":
		default:
			v.errorf(attr.Pos, "unknown block attribute @@%s", attr.Name)
		}
	}

	if len(m.PK) == 0 {
		v.errorf(d.Pos, "model %s has no primary key", m.Name)
	}

	for _, f := range m.Fields {
		if !f.IsScalar() {
			continue
		}
		if other, dup := m.columns[f.Column]; dup {
			v.errorf(d.Pos, "fields %s and %s of %s map to the same column %s", other.Name, f.Name, m.Name, f.Column)
			continue
		}
		m.columns[f.Column] = f
	}
	return m
}

func (v *validator) field(m *Model, d *FieldDecl) {
	if _, dup := m.fields[d.Name]; dup {
		v.errorf(d.Pos, "field %s.%s is declared twice", m.Name, d.Name)
		return
	}
	f := &Field{
		Name:     d.Name,
		Column:   d.Name,
		Type:     d.Type,
		Optional: d.Optional,
		List:     d.List,
	}
	if !scalarTypes[d.Type] {
		f.Relation = &Relation{Target: d.Type}
	}

	for _, attr := range d.Attributes {
		switch {
		case attr.Name == "id":
			f.ID = true
			m.PK = append(m.PK, f.Name)
		case attr.Name == "map":
			if name := attr.Arg("name", 0); name != nil && name.Str != nil {
				f.Column = *name.Str
			} else {
				v.errorf(attr.Pos, "@map on %s.%s needs a column name", m.Name, f.Name)
			}
		case attr.Name == "relation":
			if f.Relation == nil {
				v.errorf(attr.Pos, "@relation on scalar field %s.%s", m.Name, f.Name)
				continue
			}
			if name := attr.Arg("name", 0); name != nil && name.Str != nil {
				f.Relation.Name = *name.Str
			}
			f.Relation.Fields = attr.Arg("fields", -1).Idents()
			f.Relation.References = attr.Arg("references", -1).Idents()
		case strings.HasPrefix(attr.Name, "db."):
			f.NativeType = nativeType(attr)
		case attr.Name == "default", attr.Name == "unique", attr.Name == "updatedAt", attr.Name == "ignore":
		default:
			v.errorf(attr.Pos, "unknown attribute @%s on %s.%s", attr.Name, m.Name, f.Name)
		}
	}

	m.Fields = append(m.Fields, f)
	m.fields[f.Name] = f
}

// nativeType renders @db.NVarChar(100) as NVARCHAR(100).
func nativeType(attr *Attribute) string {
	name := strings.ToUpper(strings.TrimPrefix(attr.Name, "db."))
	if len(attr.Args) == 0 {
		return name
	}
	args := make([]string, len(attr.Args))
	for i, a := range attr.Args {
		args[i] = strings.ToUpper(a.Value.String())
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

func (v *validator) relations(s *Schema, m *Model, d *ModelDecl) {
	for _, f := range m.Fields {
		r := f.Relation
		if r == nil {
			continue
		}
		target, ok := s.byName[r.Target]
		if !ok {
			v.errorf(d.Pos, "field %s.%s has unknown type %s", m.Name, f.Name, r.Target)
			continue
		}

		if len(r.Fields) == 0 && len(r.References) == 0 {
			if _, ok := s.backRelation(m, f); !ok {
				v.errorf(d.Pos, "relation %s.%s needs fields and references on one side", m.Name, f.Name)
			}
			continue
		}
		if len(r.Fields) != len(r.References) {
			v.errorf(d.Pos, "relation %s.%s has %d field(s) and %d reference(s)", m.Name, f.Name, len(r.Fields), len(r.References))
			continue
		}
		if len(r.Fields) > 1 {
			v.errorf(d.Pos, "relation %s.%s: composite relation keys are not supported", m.Name, f.Name)
			continue
		}
		if lf, ok := m.fields[r.Fields[0]]; !ok || !lf.IsScalar() {
			v.errorf(d.Pos, "relation %s.%s references unknown local field %s", m.Name, f.Name, r.Fields[0])
		}
		if rf, ok := target.fields[r.References[0]]; !ok || !rf.IsScalar() {
			v.errorf(d.Pos, "relation %s.%s references unknown field %s.%s", m.Name, f.Name, target.Name, r.References[0])
		}
	}
}

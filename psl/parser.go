package psl

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SchemaLexer defines the token types of the mapping schema.
var SchemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},

	// Block attribute prefix must come before the single @.
	{Name: "BlockAttr", Pattern: `@@`},
	{Name: "FieldAttr", Pattern: `@`},
	{Name: "Punct", Pattern: `[{}()\[\]:,.=?]`},

	{Name: "Whitespace", Pattern: `\s+`},
})

// File is the raw parse tree of a schema file.
type File struct {
	Pos   lexer.Position
	Items []*Item `@@*`
}

// Item is one top-level declaration.
type Item struct {
	Datasource *DatasourceDecl `  @@`
	Model      *ModelDecl      `| @@`
}

// DatasourceDecl is a `datasource name { key = value ... }` block.
type DatasourceDecl struct {
	Pos        lexer.Position
	Name       string      `"datasource" @Ident "{"`
	Properties []*Property `@@* "}"`
}

// Property is a `key = value` line of a datasource block.
type Property struct {
	Pos   lexer.Position
	Key   string `@Ident "="`
	Value *Value `@@`
}

// ModelDecl is a `model Name { ... }` block.
type ModelDecl struct {
	Pos     lexer.Position
	Name    string    `"model" @Ident "{"`
	Members []*Member `@@* "}"`
}

// Member is a field or a block attribute inside a model.
type Member struct {
	BlockAttribute *Attribute `  "@@" @@`
	Field          *FieldDecl `| @@`
}

// FieldDecl is one `name Type[]? attributes...` line.
type FieldDecl struct {
	Pos        lexer.Position
	Name       string       `@Ident`
	Type       string       `@Ident`
	List       bool         `@("[" "]")?`
	Optional   bool         `@"?"?`
	Attributes []*Attribute `( "@" @@ )*`
}

// Attribute is the part of `@name(args)` or `@@name(args)` after the prefix.
// Dotted names such as db.NVarChar are kept whole.
type Attribute struct {
	Pos  lexer.Position
	Name string      `@Ident ( @"." @Ident )*`
	Args []*Argument `( "(" ( @@ ( "," @@ )* )? ")" )?`
}

// Argument is a positional or `name: value` attribute argument.
type Argument struct {
	Pos   lexer.Position
	Name  string `( @Ident ":" )?`
	Value *Value `@@`
}

// Value is an attribute or property value.
type Value struct {
	Pos    lexer.Position
	Call   *Call    `  @@`
	Str    *string  `| @String`
	Number *string  `| @Number`
	List   []*Value `| "[" ( @@ ( "," @@ )* )? "]"`
	Ident  *string  `| @Ident`
}

// Call is a function-style value such as env("DATABASE_URL").
type Call struct {
	Name string   `@Ident "("`
	Args []*Value `( @@ ( "," @@ )* )? ")"`
}

// Idents returns the identifiers of a list value, or of a single identifier.
func (v *Value) Idents() []string {
	if v == nil {
		return nil
	}
	if v.Ident != nil {
		return []string{*v.Ident}
	}
	var out []string
	for _, item := range v.List {
		if item.Ident != nil {
			out = append(out, *item.Ident)
		}
	}
	return out
}

func (v *Value) String() string {
	switch {
	case v == nil:
		return ""
	case v.Call != nil:
		args := make([]string, len(v.Call.Args))
		for i, a := range v.Call.Args {
			args[i] = a.String()
		}
		return v.Call.Name + "(" + strings.Join(args, ", ") + ")"
	case v.Str != nil:
		return *v.Str
	case v.Number != nil:
		return *v.Number
	case v.Ident != nil:
		return *v.Ident
	}
	items := make([]string, len(v.List))
	for i, item := range v.List {
		items[i] = item.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// Arg returns the named argument, falling back to the positional argument at
// index pos when name is not given explicitly. pos < 0 disables the fallback.
func (a *Attribute) Arg(name string, pos int) *Value {
	for _, arg := range a.Args {
		if arg.Name == name {
			return arg.Value
		}
	}
	positional := 0
	for _, arg := range a.Args {
		if arg.Name != "" {
			continue
		}
		if positional == pos {
			return arg.Value
		}
		positional++
	}
	return nil
}

var parser = participle.MustBuild[File](
	participle.Lexer(SchemaLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// ParseFile parses schema source into its raw parse tree.
func ParseFile(filename string, r io.Reader) (*File, error) {
	f, err := parser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return f, nil
}

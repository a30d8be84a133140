package expr

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// rawNode is the on-disk shape of a Node. Exactly one discriminating key
// (table, call, member, param, const, body, not, convert, binary, new) is set.
type rawNode struct {
	Table string `yaml:"table,omitempty"`

	Call   string  `yaml:"call,omitempty"`
	Source *Node   `yaml:"source,omitempty"`
	Args   []*Node `yaml:"args,omitempty"`

	Member string `yaml:"member,omitempty"`
	Of     *Node  `yaml:"of,omitempty"`

	Param string `yaml:"param,omitempty"`

	Const yaml.Node `yaml:"const,omitempty"`

	Lambda []string `yaml:"lambda,flow,omitempty"`
	Body   *Node    `yaml:"body,omitempty"`

	Not     *Node `yaml:"not,omitempty"`
	Convert *Node `yaml:"convert,omitempty"`

	Binary string `yaml:"binary,omitempty"`
	Left   *Node  `yaml:"left,omitempty"`
	Right  *Node  `yaml:"right,omitempty"`

	New []rawField `yaml:"new,omitempty"`
}

type rawField struct {
	Name  string `yaml:"name"`
	Value *Node  `yaml:"value"`
}

// ErrMalformed is returned when a YAML document does not describe exactly one node kind.
var ErrMalformed = errors.New("malformed query description")

// Decode reads a query-description tree from YAML.
func Decode(r io.Reader) (*Node, error) {
	var n Node
	if err := yaml.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode query description: %w", err)
	}
	return &n, nil
}

// Encode writes n as YAML.
func Encode(w io.Writer, n *Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return fmt.Errorf("encode query description: %w", err)
	}
	return enc.Close()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw rawNode
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var kinds []Kind
	if raw.Table != "" {
		kinds = append(kinds, KindTable)
	}
	if raw.Call != "" {
		kinds = append(kinds, KindCall)
	}
	if raw.Member != "" {
		kinds = append(kinds, KindMember)
	}
	if raw.Param != "" {
		kinds = append(kinds, KindParameter)
	}
	if raw.Const.Kind != 0 {
		kinds = append(kinds, KindConstant)
	}
	if raw.Body != nil {
		kinds = append(kinds, KindLambda)
	}
	if raw.Not != nil {
		kinds = append(kinds, KindNot)
	}
	if raw.Convert != nil {
		kinds = append(kinds, KindConvert)
	}
	if raw.Binary != "" {
		kinds = append(kinds, KindBinary)
	}
	if len(raw.New) > 0 {
		kinds = append(kinds, KindNew)
	}
	if len(kinds) != 1 {
		return fmt.Errorf("%w at line %d: expected one node kind, found %v", ErrMalformed, value.Line, kinds)
	}

	switch kinds[0] {
	case KindTable:
		*n = *Table(raw.Table)
	case KindCall:
		if raw.Source == nil {
			return fmt.Errorf("%w at line %d: call %s has no source", ErrMalformed, value.Line, raw.Call)
		}
		*n = *Call(raw.Call, raw.Source, raw.Args...)
	case KindMember:
		if raw.Of == nil {
			return fmt.Errorf("%w at line %d: member %s has no object", ErrMalformed, value.Line, raw.Member)
		}
		*n = *Member(raw.Of, raw.Member)
	case KindParameter:
		*n = *Param(raw.Param)
	case KindConstant:
		var v any
		if err := raw.Const.Decode(&v); err != nil {
			return err
		}
		*n = *Const(v)
	case KindLambda:
		*n = *Lambda(raw.Body, raw.Lambda...)
	case KindNot:
		*n = *Not(raw.Not)
	case KindConvert:
		*n = *Convert(raw.Convert)
	case KindBinary:
		op := BinaryOp(raw.Binary)
		if !op.Valid() {
			return fmt.Errorf("%w at line %d: unknown operator %q", ErrMalformed, value.Line, raw.Binary)
		}
		if raw.Left == nil || raw.Right == nil {
			return fmt.Errorf("%w at line %d: %s needs left and right", ErrMalformed, value.Line, op)
		}
		*n = *Binary(op, raw.Left, raw.Right)
	case KindNew:
		fields := make([]Field, len(raw.New))
		for i, f := range raw.New {
			if f.Value == nil {
				return fmt.Errorf("%w at line %d: field %s has no value", ErrMalformed, value.Line, f.Name)
			}
			fields[i] = F(f.Name, f.Value)
		}
		*n = *New(fields...)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n *Node) MarshalYAML() (any, error) {
	var raw rawNode
	switch n.Kind {
	case KindTable:
		raw.Table = n.Table
	case KindCall:
		raw.Call = n.Method
		raw.Source = n.Args[0]
		raw.Args = n.Args[1:]
	case KindMember:
		raw.Member = n.Member
		raw.Of = n.Object
	case KindParameter:
		raw.Param = n.Name
	case KindConstant:
		if err := raw.Const.Encode(n.Value); err != nil {
			return nil, err
		}
	case KindLambda:
		raw.Lambda = n.Params
		raw.Body = n.Body
	case KindNot:
		raw.Not = n.Operand
	case KindConvert:
		raw.Convert = n.Operand
	case KindBinary:
		raw.Binary = string(n.Op)
		raw.Left = n.Left
		raw.Right = n.Right
	case KindNew:
		for _, f := range n.Fields {
			raw.New = append(raw.New, rawField{Name: f.Name, Value: f.Value})
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %s node", ErrMalformed, n.Kind)
	}
	return raw, nil
}

package sqlgen

import "strings"

// Column is one declared column of an intermediate table.
type Column struct {
	Name string `msgpack:"name"`
	Type string `msgpack:"type"`
}

// Unit fills one intermediate table and reads it back.
type Unit struct {
	Table    string   `msgpack:"table"`
	Variable string   `msgpack:"variable"`
	Columns  []Column `msgpack:"columns"`
	Declare  string   `msgpack:"declare"`
	Insert   string   `msgpack:"insert"`
	Select   string   `msgpack:"select"`
	Drop     string   `msgpack:"drop,omitempty"`

	// UsesKey is set when Insert references the root key parameter.
	UsesKey bool `msgpack:"uses_key"`
}

// Batch is the ordered output of the emitter. ReadOrder names the table of
// each result set the batch produces, in order.
type Batch struct {
	Dialect    string   `msgpack:"dialect"`
	Terminator string   `msgpack:"terminator,omitempty"`
	Units      []Unit   `msgpack:"units"`
	ReadOrder  []string `msgpack:"read_order"`
}

// SQL renders the batch as one script: the declarations, then one block per
// unit, then any cleanup, separated by blank lines.
func (b *Batch) SQL() string {
	if len(b.Units) == 0 {
		return ""
	}
	t := b.Terminator

	decls := make([]string, len(b.Units))
	for i, u := range b.Units {
		decls[i] = u.Declare + t
	}
	blocks := []string{strings.Join(decls, "\n")}

	var drops []string
	for _, u := range b.Units {
		blocks = append(blocks, u.Insert+t+"\n"+u.Select+t)
		if u.Drop != "" {
			drops = append(drops, u.Drop+t)
		}
	}
	if len(drops) > 0 {
		blocks = append(blocks, strings.Join(drops, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

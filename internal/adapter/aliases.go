package adapter

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasYAML []byte

// FieldAliases binds one canonical field to its accepted header spellings,
// checked in declaration order.
type FieldAliases struct {
	Key     string   `yaml:"key"`
	Aliases []string `yaml:"aliases"`
}

// AliasTable resolves spreadsheet headers to canonical fields.
type AliasTable struct {
	fields []FieldAliases
}

// LoadAliasTable parses the embedded header alias table.
func LoadAliasTable() (*AliasTable, error) {
	var fields []FieldAliases
	if err := yaml.Unmarshal(aliasYAML, &fields); err != nil {
		return nil, eris.Wrap(err, "adapter: parse alias table")
	}
	return &AliasTable{fields: fields}, nil
}

// Resolve maps a header-keyed row onto canonical fields. For each field the
// first alias present in the row wins; headers matching no alias are ignored,
// so an unrecognized name variant yields an absent name, not an empty one.
func (t *AliasTable) Resolve(row map[string]string) map[string]string {
	out := make(map[string]string, len(t.fields))
	for _, f := range t.fields {
		for _, alias := range f.Aliases {
			if v, ok := row[alias]; ok {
				out[f.Key] = v
				break
			}
		}
	}
	return out
}

// IsHeaderEcho reports whether a name value is itself a header artifact: an
// exported file sometimes repeats its header row or embeds the raw column
// token partway through the data.
func (t *AliasTable) IsHeaderEcho(name string) bool {
	for _, f := range t.fields {
		if f.Key != "name" {
			continue
		}
		for _, alias := range f.Aliases {
			if name == alias {
				return true
			}
		}
	}
	return false
}

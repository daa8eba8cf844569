package wiremsg

import (
	"os"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"
)

// formatFile is the on-disk shape of a message format descriptor:
//
//	[[field]]
//	kind = "len"
//	width = 2
//
//	[[field]]
//	kind = "var_string"
//	len_idx = 0
type formatFile struct {
	Fields []fieldSpec `toml:"field"`
}

type fieldSpec struct {
	Kind   string `toml:"kind"`
	Width  int    `toml:"width"`
	LenIdx int    `toml:"len_idx"`
}

var kindNames = map[string]Kind{
	"len":          KindLen,
	"uint":         KindUint,
	"int":          KindInt,
	"fixed_string": KindFixedString,
	"var_string":   KindVarString,
	"fixed_bytes":  KindFixedBytes,
	"var_bytes":    KindVarBytes,
}

// ParseFormat builds a validated MessageFormat from a TOML descriptor, so an
// operator can define the layout at runtime from a file instead of code.
func ParseFormat(data []byte) (*MessageFormat, error) {
	var file formatFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, pkgerrors.Wrap(err, "parse format descriptor")
	}

	fields := make([]FieldFormat, 0, len(file.Fields))
	for i, spec := range file.Fields {
		kind, ok := kindNames[spec.Kind]
		if !ok {
			return nil, pkgerrors.Errorf("field %d: unknown kind %q", i, spec.Kind)
		}
		fields = append(fields, FieldFormat{Kind: kind, Width: spec.Width, LenIdx: spec.LenIdx})
	}

	return NewMessageFormat(fields...)
}

// LoadFormat reads and parses a TOML format descriptor file.
func LoadFormat(path string) (*MessageFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read format descriptor %s", path)
	}
	return ParseFormat(data)
}

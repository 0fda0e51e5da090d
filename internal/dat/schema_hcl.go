package dat

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// schemaFile is the HCL shape of a schema definition file:
//
//	table "BaseItemTypes" {
//	  field "Id" {
//	    offset = 0
//	    type   = "string"
//	  }
//	  field "Width" {
//	    offset = 8
//	    type   = "u32"
//	  }
//	}
type schemaFile struct {
	Tables []schemaTable `hcl:"table,block"`
}

type schemaTable struct {
	Name   string        `hcl:"name,label"`
	Fields []schemaField `hcl:"field,block"`
}

type schemaField struct {
	Name   string `hcl:"name,label"`
	Offset int    `hcl:"offset"`
	Type   string `hcl:"type"`
}

// LoadSchemas parses an HCL schema file into validated table schemas.
func LoadSchemas(path string) ([]*Schema, error) {
	var file schemaFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("load schema file: %w", err)
	}

	schemas := make([]*Schema, 0, len(file.Tables))
	for _, t := range file.Tables {
		s := &Schema{Name: t.Name}
		for _, f := range t.Fields {
			kind, err := ParseKind(f.Type)
			if err != nil {
				return nil, fmt.Errorf("table %q field %q: %w", t.Name, f.Name, err)
			}
			s.Fields = append(s.Fields, Field{Name: f.Name, Offset: f.Offset, Kind: kind})
		}
		if _, err := s.Validate(); err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// FindSchema returns the schema named table from a loaded schema file.
func FindSchema(schemas []*Schema, table string) (*Schema, error) {
	for _, s := range schemas {
		if s.Name == table {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no table %q in schema file", ErrInvalidSchema, table)
}

package models

import (
	"fmt"
	"strings"
)

// Schema selects the dataset served by the CCT service.
type Schema string

const (
	SchemaProduction Schema = "production"
	SchemaTest       Schema = "test"
)

func ParseSchema(s string) (Schema, error) {
	switch Schema(strings.ToLower(strings.TrimSpace(s))) {
	case SchemaProduction:
		return SchemaProduction, nil
	case SchemaTest:
		return SchemaTest, nil
	}
	return "", fmt.Errorf("invalid schema %q (want %s or %s)", s, SchemaProduction, SchemaTest)
}

func (s Schema) String() string { return string(s) }

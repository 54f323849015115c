package mcpservice

import (
	"reflect"
	"slices"

	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/invopop/jsonschema"
)

// reflectSchema inlines the schema of T. Only named types can be expanded at
// the root; unnamed ones such as struct{} are reflected in place.
func reflectSchema[T any](lenient bool) *jsonschema.Schema {
	t := reflect.TypeFor[T]()
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            t.Name() != "",
		AllowAdditionalProperties: lenient,
	}
	return r.ReflectFromType(t)
}

func inputSchemaFor[A any](lenient bool) mcp.ToolInputSchema {
	in := mcp.ToolInputSchema{Type: "object", AdditionalProperties: lenient}
	if s := reflectSchema[A](lenient); s != nil && s.Type == "object" {
		in.Properties = properties(s)
		in.Required = slices.Clone(s.Required)
	}
	if in.Properties == nil {
		in.Properties = map[string]mcp.SchemaProperty{}
	}
	return in
}

func outputSchemaFor[O any]() mcp.ToolOutputSchema {
	out := mcp.ToolOutputSchema{Type: "object"}
	if s := reflectSchema[O](true); s != nil && s.Type == "object" {
		out.Properties = properties(s)
		out.Required = slices.Clone(s.Required)
	}
	if out.Properties == nil {
		out.Properties = map[string]mcp.SchemaProperty{}
	}
	return out
}

// properties flattens the ordered property map of an object schema.
func properties(s *jsonschema.Schema) map[string]mcp.SchemaProperty {
	props := map[string]mcp.SchemaProperty{}
	if s.Properties == nil {
		return props
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = property(pair.Value)
	}
	return props
}

func property(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{Type: s.Type, Description: s.Description, Format: s.Format}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	switch s.Type {
	case "array":
		if s.Items != nil {
			items := property(s.Items)
			p.Items = &items
		}
	case "object":
		if s.Properties != nil {
			p.Properties = properties(s)
			p.Required = slices.Clone(s.Required)
		}
	}
	return p
}

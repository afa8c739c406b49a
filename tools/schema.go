package tools

// JSON Schema fragments for tool inputs. Schemas are plain maps so they pass
// through both providers' tool definitions unchanged.

// ThoughtField is the optional reasoning field decoded into core.BaseInput.
const ThoughtField = "thought"

const thoughtDescription = "Why you are calling this tool and what you expect to find or change. " +
	"When writing memory, say what is worth remembering."

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property.
func StringProperty(description string) map[string]interface{} {
	return property("string", description)
}

// StringEnumProperty creates a string property restricted to values.
func StringEnumProperty(description string, values ...string) map[string]interface{} {
	p := property("string", description)
	p["enum"] = values
	return p
}

// IntegerProperty creates an integer property.
func IntegerProperty(description string) map[string]interface{} {
	return property("integer", description)
}

// ObjectProperty creates a free-form object property, used for filters.
func ObjectProperty(description string) map[string]interface{} {
	p := property("object", description)
	p["additionalProperties"] = true
	return p
}

func property(typ, description string) map[string]interface{} {
	p := map[string]interface{}{"type": typ}
	if description != "" {
		p["description"] = description
	}
	return p
}

// WithThought returns a copy of schema with the thought property added.
// The input schema is not modified.
func WithThought(schema map[string]interface{}, requireThought bool) map[string]interface{} {
	result := make(map[string]interface{}, len(schema)+1)
	for k, v := range schema {
		result[k] = v
	}

	props := make(map[string]interface{})
	if existing, ok := schema["properties"].(map[string]interface{}); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	props[ThoughtField] = StringProperty(thoughtDescription)
	result["properties"] = props

	if requireThought {
		existing, _ := schema["required"].([]string)
		required := make([]string, 0, len(existing)+1)
		required = append(required, existing...)
		result["required"] = append(required, ThoughtField)
	}
	return result
}

// BuildSchemaWithThought creates an ObjectSchema with thought support.
func BuildSchemaWithThought(properties map[string]interface{}, requireThought bool, required ...string) map[string]interface{} {
	return WithThought(ObjectSchema(properties, required...), requireThought)
}

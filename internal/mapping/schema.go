package mapping

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const responseSchemaURL = "https://contactimport.local/schemas/mapping-response.schema.json"

// ResponseSchema is the JSON Schema every classifier response must satisfy.
const ResponseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["mapping"],
  "properties": {
    "mapping": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["mappedTo", "confidence"],
        "properties": {
          "mappedTo": {"type": "string", "minLength": 1},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "unmappedHeaders": {"type": "array", "items": {"type": "string"}},
    "notes": {"type": "string"}
  }
}`

var responseSchema = mustCompileSchema(responseSchemaURL, ResponseSchema)

func mustCompileSchema(url, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("mapping: load response schema: %v", err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("mapping: compile response schema: %v", err))
	}
	return compiled
}

// schemaProblems validates doc and flattens violations into one line each.
func schemaProblems(doc interface{}) []string {
	err := responseSchema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var problems []string
	for _, e := range ve.BasicOutput().Errors {
		if strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", loc, e.Error))
	}
	if len(problems) == 0 {
		problems = []string{ve.Error()}
	}
	return problems
}

// Package mapping proposes header to attribute mappings.
//
// The Engine builds a structured request from the source headers and the
// known field schema, hands it to a Classifier, and turns the classifier's
// JSON answer into a validated contact.MappingResult. The response grammar is
// deliberately small so it can be checked deterministically:
//
//	{
//	  "mapping": { "<header>": { "mappedTo": "<core|fieldId|NEW:label|unmapped>", "confidence": 0.95 } },
//	  "unmappedHeaders": ["<header>"],
//	  "notes": "<string>"
//	}
//
// The answer may be wrapped in a fenced code block or surrounded by prose; the
// first JSON object found is used. Anything that does not fit the grammar is
// reported as a *MalformedError, which unwraps to contact.ErrMalformedResponse.
// ProposeMapping has no side effects, so callers may retry it freely.
package mapping

package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")

// ExtractJSON finds the JSON object in a classifier response. It tries the
// whole text, then each fenced code block, then the first balanced {...}
// span that parses.
func ExtractJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errors.New("empty response")
	}
	if isJSONObject(text) {
		return []byte(text), nil
	}
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); isJSONObject(body) {
			return []byte(body), nil
		}
	}
	if obj, ok := firstObject(text); ok {
		return []byte(obj), nil
	}
	return nil, errors.New("no JSON object found in response")
}

func isJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

// firstObject scans for balanced braces, skipping braces inside strings.
// A brace that never closes or encloses invalid JSON moves the scan on to
// the next '{'.
func firstObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		depth := 0
		inString, escaped := false, false
		end := -1
	scan:
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					end = i
					break scan
				}
			}
		}
		if end >= 0 {
			if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// duplicateKeys reports object keys that occur more than once. Go's decoder
// keeps the last value silently, which would hide a header answered twice.
func duplicateKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var problems []string

	var walk func(path string) error
	walk = func(path string) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			return nil
		}
		switch delim {
		case '{':
			seen := make(map[string]bool)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := kt.(string)
				if seen[key] {
					problems = append(problems, fmt.Sprintf("duplicate key %q in %s", key, path))
				}
				seen[key] = true
				if err := walk(path + "." + key); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := walk(fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
		_, err = dec.Token()
		return err
	}

	if err := walk("$"); err != nil {
		return nil, err
	}
	return problems, nil
}

// ResponseEntry is one header's answer in a classifier response.
type ResponseEntry struct {
	MappedTo   string  `json:"mappedTo"`
	Confidence float64 `json:"confidence"`
}

// Response is the document a classifier returns.
type Response struct {
	Mapping         map[string]ResponseEntry `json:"mapping"`
	UnmappedHeaders []string                 `json:"unmappedHeaders"`
	Notes           string                   `json:"notes"`
}

// ParseReport describes adjustments made while parsing a valid response.
type ParseReport struct {
	// Coerced lists headers whose confidence was below the low band and
	// were therefore forced to unmapped.
	Coerced []string
	// ReportedUnmapped is the classifier's own unmappedHeaders list. The
	// result's list is always recomputed from the entries.
	ReportedUnmapped []string
}

// UnmappedMismatch reports whether the classifier's unmappedHeaders differs
// from the recomputed set.
func (p ParseReport) UnmappedMismatch(result *contact.MappingResult) bool {
	if len(p.ReportedUnmapped) != len(result.UnmappedHeaders) {
		return true
	}
	want := make(map[string]bool, len(result.UnmappedHeaders))
	for _, h := range result.UnmappedHeaders {
		want[h] = true
	}
	for _, h := range p.ReportedUnmapped {
		if !want[h] {
			return true
		}
	}
	return false
}

// ParseResponse validates raw against headers and the known field ids and
// builds the mapping result. Every violation is collected into one
// *MalformedError.
func ParseResponse(raw string, headers []string, known []contact.CustomFieldDef) (*contact.MappingResult, ParseReport, error) {
	var report ParseReport

	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, report, malformed(err.Error())
	}

	dups, err := duplicateKeys(data)
	if err != nil {
		return nil, report, malformed(fmt.Sprintf("decode response: %v", err))
	}
	if len(dups) > 0 {
		return nil, report, malformed(dups...)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, report, malformed(fmt.Sprintf("decode response: %v", err))
	}
	if problems := schemaProblems(doc); len(problems) > 0 {
		return nil, report, malformed(problems...)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, report, malformed(fmt.Sprintf("decode response: %v", err))
	}

	knownIDs := make(map[string]bool, len(known))
	for _, f := range known {
		knownIDs[f.ID] = true
	}
	inInput := make(map[string]bool, len(headers))
	for _, h := range headers {
		inInput[h] = true
	}

	var problems []string
	entries := make([]contact.MappingEntry, 0, len(headers))
	for _, h := range headers {
		w, ok := resp.Mapping[h]
		if !ok {
			problems = append(problems, fmt.Sprintf("header %q missing from mapping", h))
			continue
		}
		target, err := contact.ParseTarget(w.MappedTo)
		if err != nil {
			problems = append(problems, fmt.Sprintf("header %q: %v", h, err))
			continue
		}
		if target.Kind == contact.TargetExistingCustom && !knownIDs[target.FieldID] {
			problems = append(problems, fmt.Sprintf("header %q: unknown field id %q", h, target.FieldID))
			continue
		}
		if w.Confidence < contact.ConfidenceLow && !target.IsUnmapped() {
			target = contact.Unmapped()
			report.Coerced = append(report.Coerced, h)
		}
		entries = append(entries, contact.MappingEntry{Header: h, Target: target, Confidence: w.Confidence})
	}
	for h := range resp.Mapping {
		if !inInput[h] {
			problems = append(problems, fmt.Sprintf("unexpected header %q in mapping", h))
		}
	}
	if len(problems) > 0 {
		return nil, report, malformed(problems...)
	}

	result, err := contact.NewMappingResult(entries, strings.TrimSpace(resp.Notes))
	if err != nil {
		return nil, report, malformed(err.Error())
	}
	report.ReportedUnmapped = resp.UnmappedHeaders
	return result, report, nil
}

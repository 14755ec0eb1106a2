package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/reconcile"
	"github.com/fyrsmithlabs/contactimport/internal/rows"
)

const (
	toolProposeMapping   = "propose_mapping"
	toolReconcileMapping = "reconcile_mapping"
	toolImportContacts   = "import_contacts"
)

var errInvalidInput = errors.New("invalid tool input")

// Mappings travel as plain JSON values. TargetRef serializes to a string,
// which schema inference from the Go type would not reflect.

type proposeMappingInput struct {
	Headers []string `json:"headers,omitempty" jsonschema:"Spreadsheet column headers in file order"`
	CSV     string   `json:"csv,omitempty" jsonschema:"CSV text whose first line holds the headers; used when headers is empty"`
}

type proposeMappingOutput struct {
	Mapping    any    `json:"mapping" jsonschema:"Proposed mapping: headers, entries keyed by header, unmappedHeaders"`
	Classifier string `json:"classifier" jsonschema:"Classifier that produced the proposal"`
}

type reconcileMappingInput struct {
	Original any            `json:"original" jsonschema:"Mapping proposed by propose_mapping"`
	Working  any            `json:"working,omitempty" jsonschema:"Current edited mapping; defaults to original"`
	Ops      []reconcile.Op `json:"ops" jsonschema:"Edits applied in order: set_target, new_field, unmap, reset"`
}

type reconcileMappingOutput struct {
	Original any      `json:"original" jsonschema:"Original proposal, unchanged"`
	Working  any      `json:"working" jsonschema:"Edited mapping"`
	Changed  []string `json:"changed" jsonschema:"Headers whose target differs from the proposal"`
}

type importContactsInput struct {
	Rows    []map[string]string `json:"rows,omitempty" jsonschema:"Rows keyed by source header"`
	CSV     string              `json:"csv,omitempty" jsonschema:"CSV text to import instead of rows"`
	Mapping any                 `json:"mapping" jsonschema:"Finalized mapping"`
	Agents  map[string]string   `json:"agents,omitempty" jsonschema:"Agent email to user id; defaults to stored users"`
}

type importContactsOutput struct {
	ImportID      string                   `json:"importId" jsonschema:"Import run id"`
	Stats         contact.ImportStats      `json:"stats" jsonschema:"Row outcome counts"`
	RowErrors     []importer.RowError      `json:"rowErrors,omitempty" jsonschema:"Rejected or failed rows"`
	FieldsCreated []contact.CustomFieldDef `json:"fieldsCreated,omitempty" jsonschema:"Custom fields created by this import"`
	Warnings      []rows.Warning           `json:"warnings,omitempty" jsonschema:"CSV parse warnings"`
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolProposeMapping,
		Description: "Propose how spreadsheet headers map onto contact attributes and custom fields. Pass headers, or CSV text to read them from.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args proposeMappingInput) (*mcp.CallToolResult, proposeMappingOutput, error) {
		var out proposeMappingOutput
		err := s.instrument(ctx, toolProposeMapping, func(ctx context.Context) error {
			var err error
			out, err = s.proposeMapping(ctx, args)
			return err
		})
		if err != nil {
			return nil, proposeMappingOutput{}, err
		}
		result := out.Mapping.(*contact.MappingResult)
		return textResult(fmt.Sprintf("Proposed mapping for %d headers: %s", len(result.Headers), result.Summary())), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolReconcileMapping,
		Description: "Apply reviewer edits to a proposed mapping. Ops: set_target (target is firstName, lastName, phone, email, agentUid, a field id, NEW:<label> or unmapped), new_field (label), unmap, reset.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args reconcileMappingInput) (*mcp.CallToolResult, reconcileMappingOutput, error) {
		var out reconcileMappingOutput
		err := s.instrument(ctx, toolReconcileMapping, func(ctx context.Context) error {
			var err error
			out, err = s.reconcileMapping(args)
			return err
		})
		if err != nil {
			return nil, reconcileMappingOutput{}, err
		}
		return textResult(fmt.Sprintf("Applied %d edits; %d headers differ from the proposal", len(args.Ops), len(out.Changed))), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolImportContacts,
		Description: "Import contact rows with a finalized mapping. New fields are created first, then rows are created or merged by email, then phone.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args importContactsInput) (*mcp.CallToolResult, importContactsOutput, error) {
		var out importContactsOutput
		err := s.instrument(ctx, toolImportContacts, func(ctx context.Context) error {
			var err error
			out, err = s.importContacts(ctx, args)
			return err
		})
		if err != nil {
			return nil, importContactsOutput{}, err
		}
		st := out.Stats
		return textResult(fmt.Sprintf("Import %s: %d rows, %d created, %d merged, %d errors, %d skipped",
			out.ImportID, st.Total, st.Created, st.Merged, st.Errors, st.Skipped)), out, nil
	})
}

// instrument wraps a tool body with metrics and failure logging.
func (s *Server) instrument(ctx context.Context, tool string, fn func(context.Context) error) error {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	defer s.metrics.DecrementActive(ctx, tool)

	err := fn(ctx)
	s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
	if err != nil {
		s.logger.Warn(ctx, "tool call failed", zap.String("tool", tool), zap.Error(err))
	}
	return err
}

func (s *Server) proposeMapping(ctx context.Context, args proposeMappingInput) (proposeMappingOutput, error) {
	headers := args.Headers
	if len(headers) == 0 && args.CSV != "" {
		table, err := rows.Parse([]byte(args.CSV))
		if err != nil {
			return proposeMappingOutput{}, fmt.Errorf("%w: csv: %w", errInvalidInput, err)
		}
		headers = table.Headers
	}
	if len(headers) == 0 {
		return proposeMappingOutput{}, fmt.Errorf("%w: headers or csv is required", errInvalidInput)
	}

	known, err := s.fields.ListFields(ctx)
	if err != nil {
		return proposeMappingOutput{}, fmt.Errorf("list fields: %w", err)
	}
	result, err := s.engine.ProposeMapping(ctx, headers, known)
	if err != nil {
		return proposeMappingOutput{}, err
	}
	return proposeMappingOutput{Mapping: result, Classifier: s.engine.ClassifierName()}, nil
}

func (s *Server) reconcileMapping(args reconcileMappingInput) (reconcileMappingOutput, error) {
	original, err := decodeMapping("original", args.Original)
	if err != nil {
		return reconcileMappingOutput{}, err
	}
	if len(args.Ops) == 0 {
		return reconcileMappingOutput{}, fmt.Errorf("%w: ops is required", errInvalidInput)
	}

	session := reconcile.NewSession(original)
	if args.Working != nil {
		working, err := decodeMapping("working", args.Working)
		if err != nil {
			return reconcileMappingOutput{}, err
		}
		session.Working = working
	}

	session, err = reconcile.ApplyAll(session, args.Ops)
	if err != nil {
		return reconcileMappingOutput{}, err
	}
	changed := session.Changed()
	if changed == nil {
		changed = []string{}
	}
	return reconcileMappingOutput{Original: session.Original, Working: session.Working, Changed: changed}, nil
}

func (s *Server) importContacts(ctx context.Context, args importContactsInput) (importContactsOutput, error) {
	m, err := decodeMapping("mapping", args.Mapping)
	if err != nil {
		return importContactsOutput{}, err
	}

	data := args.Rows
	var warnings []rows.Warning
	switch {
	case len(args.Rows) > 0 && args.CSV != "":
		return importContactsOutput{}, fmt.Errorf("%w: pass rows or csv, not both", errInvalidInput)
	case args.CSV != "":
		table, err := rows.Parse([]byte(args.CSV))
		if err != nil {
			return importContactsOutput{}, fmt.Errorf("%w: csv: %w", errInvalidInput, err)
		}
		data, warnings = table.Rows, table.Warnings
	}

	var agents contact.AgentDirectory
	if args.Agents != nil {
		agents = contact.AgentDirectory(args.Agents)
	}
	result, err := s.executor.Execute(ctx, data, m, agents)
	if err != nil {
		return importContactsOutput{}, err
	}
	return importContactsOutput{
		ImportID:      result.ImportID,
		Stats:         result.Stats,
		RowErrors:     result.RowErrors,
		FieldsCreated: result.FieldsCreated,
		Warnings:      warnings,
	}, nil
}

// decodeMapping converts a JSON value received from the client into a
// validated MappingResult.
func decodeMapping(name string, v any) (*contact.MappingResult, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s is required", errInvalidInput, name)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInvalidInput, name, err)
	}
	var m contact.MappingResult
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInvalidInput, name, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInvalidInput, name, err)
	}
	m.RecomputeUnmapped()
	return &m, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

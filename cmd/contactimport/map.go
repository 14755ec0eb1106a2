package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/reconcile"
	"github.com/fyrsmithlabs/contactimport/internal/rows"
)

var (
	mapSet   []string
	mapUnmap []string
	mapOut   string
)

func init() {
	mapCmd.Flags().StringArrayVar(&mapSet, "set", nil, "override a proposal: header=target (target: firstName, lastName, phone, email, agentUid, field id, NEW:<label>, unmapped)")
	mapCmd.Flags().StringArrayVar(&mapUnmap, "unmap", nil, "leave a header unmapped")
	mapCmd.Flags().StringVarP(&mapOut, "output", "o", "", "write the mapping to a file instead of stdout")
}

// mapCmd proposes a mapping for a CSV file's headers.
var mapCmd = &cobra.Command{
	Use:   "map <file.csv>",
	Short: "Propose a column mapping for a CSV file",
	Long: `Read the header line of a CSV file and ask the classifier how each
column maps onto contact attributes or custom fields. The mapping is printed
as JSON and can be passed to "contactimport import --mapping".

Examples:
  # Propose a mapping
  contactimport map contacts.csv > mapping.json

  # Override two proposals before saving
  contactimport map contacts.csv --set "Org=NEW:Company" --unmap "Ref" -o mapping.json

  # Read from stdin
  cat contacts.csv | contactimport map -`,
	Args: cobra.ExactArgs(1),
	RunE: runMap,
}

func runMap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(ctx) }()

	table, err := readTable(cmd, args[0])
	if err != nil {
		return err
	}
	known, err := a.store.ListFields(ctx)
	if err != nil {
		return fmt.Errorf("listing fields: %w", err)
	}

	proposal, err := a.engine.ProposeMapping(ctx, table.Headers, known)
	if err != nil {
		return err
	}

	ops, err := parseOverrides(mapSet, mapUnmap)
	if err != nil {
		return err
	}
	result := proposal
	if len(ops) > 0 {
		session, err := reconcile.ApplyAll(reconcile.NewSession(proposal), ops)
		if err != nil {
			return err
		}
		result = session.Working
		a.logger.Info(ctx, "mapping overrides applied", zap.Strings("headers", session.Changed()))
	}

	out := cmd.OutOrStdout()
	if mapOut != "" {
		f, err := os.OpenFile(mapOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", mapOut, err)
		}
		defer f.Close()
		out = f
	}
	return writeJSON(out, result)
}

// parseOverrides turns --set and --unmap flags into reconciler ops.
func parseOverrides(set, unmap []string) ([]reconcile.Op, error) {
	var ops []reconcile.Op
	for _, s := range set {
		header, target, ok := strings.Cut(s, "=")
		if !ok || header == "" {
			return nil, fmt.Errorf("invalid --set %q: want header=target", s)
		}
		if label, isNew := strings.CutPrefix(target, contact.NewFieldPrefix); isNew {
			ops = append(ops, reconcile.Op{Kind: reconcile.OpNewField, Header: header, Label: label})
			continue
		}
		ops = append(ops, reconcile.Op{Kind: reconcile.OpSetTarget, Header: header, Target: target})
	}
	for _, h := range unmap {
		ops = append(ops, reconcile.Op{Kind: reconcile.OpUnmap, Header: h})
	}
	return ops, nil
}

// readTable parses path, or stdin when path is "-".
func readTable(cmd *cobra.Command, path string) (*rows.Table, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	table, err := rows.ParseReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return table, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

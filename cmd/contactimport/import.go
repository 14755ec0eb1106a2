package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

var (
	importMapping string
	importAgents  string
)

func init() {
	importCmd.Flags().StringVarP(&importMapping, "mapping", "m", "", "mapping JSON produced by \"contactimport map\" (required)")
	importCmd.Flags().StringVar(&importAgents, "agents", "", "JSON object of agent email to user id (default: stored users)")
	_ = importCmd.MarkFlagRequired("mapping")
}

// importCmd imports a CSV file with a finalized mapping.
var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a CSV file using a finalized mapping",
	Long: `Import every row of a CSV file. Custom fields proposed as NEW:<label> are
created first. Each row then creates a contact, or merges into the oldest
contact with the same email, or failing that the same phone.

The import result (stats, row errors, created fields) is printed as JSON.

Examples:
  contactimport map contacts.csv -o mapping.json
  contactimport import contacts.csv --mapping mapping.json

  # Resolve agentUid columns with an explicit directory
  contactimport import contacts.csv -m mapping.json --agents agents.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var m contact.MappingResult
	if err := readJSONFile(importMapping, &m); err != nil {
		return err
	}
	m.RecomputeUnmapped()

	var agents contact.AgentDirectory
	if importAgents != "" {
		if err := readJSONFile(importAgents, &agents); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(ctx) }()

	table, err := readTable(cmd, args[0])
	if err != nil {
		return err
	}
	for _, w := range table.Warnings {
		a.logger.Warn(ctx, "csv warning", zap.Int("line", w.Line), zap.String("message", w.Message))
	}

	result, err := a.executor.Execute(ctx, table.Rows, &m, agents)
	if result != nil {
		if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

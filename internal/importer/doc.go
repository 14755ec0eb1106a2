// Package importer writes parsed rows into the contact store using a
// finalized mapping.
//
// An import runs in order: custom fields proposed by the mapping are
// created, each row is transformed into attributes, checked against the
// validation policy, matched against existing contacts by email and then
// phone, and either created or merged. Rows are processed in fixed-size
// chunks with progress reported between chunks.
//
// Field creation failures abort the run. Per-row failures are counted in
// ImportStats.Errors and never stop the remaining rows.
package importer

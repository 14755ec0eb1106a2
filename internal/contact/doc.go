// Package contact defines the data model shared by the mapping engine, the
// reconciler and the import executor.
//
// A spreadsheet column header is mapped onto a TargetRef, which is one of:
//   - a core attribute (firstName, lastName, phone, email, agentUid)
//   - an existing custom field, referenced by its id
//   - a proposed new custom field, referenced by its label
//   - nothing (unmapped)
//
// The wire form of a TargetRef is the string grammar the classifier speaks:
// the core attribute name, the field id, "NEW:<label>" or "unmapped".
//
// Records produced from rows are held as Attributes: a fixed struct of the
// five core attributes plus an insertion-ordered map of custom field values.
package contact

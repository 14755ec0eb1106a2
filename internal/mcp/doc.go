// Package mcp exposes contact import over the Model Context Protocol.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers three tools:
//
//	propose_mapping    headers -> proposed mapping
//	reconcile_mapping  apply reviewer edits to a mapping
//	import_contacts    rows or CSV text + mapping -> import result
//
// Contact values never appear in tool text content; only counts and ids do.
package mcp

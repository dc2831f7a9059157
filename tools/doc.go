// Package tools defines the server-side tools an assistant may be created with.
//
// Includes:
//   - ToolDefinition: name, description, request tool type.
//   - Registry/Lookup: the known tools (code_interpreter, file_search).
//   - Resolve: configured names -> request tools, rejecting unknown names.
//
// Tools run on the backend; nothing here executes locally.
package tools

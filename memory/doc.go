// Package memory keeps a write-only journal of chat sessions.
//
// Persistence model:
//   - One row per session (assistant id, thread id, start/end, exit reason).
//   - One row per turn (run id, status, reply text, token usage).
//   - The journal is an audit trail. Sessions are never resumed from it.
//
// SQLite (mattn/go-sqlite3) and MySQL (go-sql-driver/mysql) are supported; the
// schema sticks to types both accept.
package memory

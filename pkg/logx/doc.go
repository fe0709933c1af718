// Package logx is the structured logger used across vmsched.
//
// It wraps zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink (min-level + rate limiting) fed through Sender
package logx

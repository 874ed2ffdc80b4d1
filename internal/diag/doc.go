// Package diag defines the diagnostic model shared by the lowering pipeline.
//
// # Purpose
//
//   - Provide deterministic data structures for findings produced while
//     lowering declarations (symbol collisions, driver I/O problems).
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting.
//
// # Data model
//
// Diagnostic is the central record: Severity, Code, Message, the primary
// source.Span and optional Notes. Whole-program findings such as mangled-name
// collisions use source.Null as their primary span.
//
// # Emitting diagnostics
//
// Producers hold a Reporter. ReportError/ReportWarning return a ReportBuilder
// that accumulates notes before Emit. BagReporter stores into a Bag, which
// supports sorting, deduplication and error queries.
//
// Rendering lives in cmd/linkgen; package diag performs no IO.
package diag

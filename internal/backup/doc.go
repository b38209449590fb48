// Package backup encodes a ledger dataset as a portable snapshot document
// and validates documents before anything is imported from them.
//
// A document has two parts: metadata (format and dataset versions, export
// scope, source profile) and entities (one array per entity type, with the
// exporting dataset's native ids). Documents are written as indented JSON
// or YAML so they diff cleanly.
//
// Validate must run before a document is used. It reports structural
// errors, which reject the document, and warnings, which the caller must
// surface and may accept.
package backup

package ledger

// Version constants for documents and the local dataset.
const (
	// SchemaVersion is the backup document format version.
	SchemaVersion = 1

	// DatasetVersion is the version of the local dataset layout. Documents
	// exported by a newer dataset produce a validation warning.
	DatasetVersion = 3

	// AppName tags exported documents.
	AppName = "ledgersync"
)

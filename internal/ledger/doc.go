// Package ledger defines the personal-ledger domain shared by every other
// package: entity types, sync states, money helpers, content keys and the
// Local Store collaborator interfaces.
//
// # Entity graph
//
// Every entity belongs to exactly one Profile. Foreign keys are plain string
// ids and are either nil or resolve to a record of the same profile:
//
//	Category <- Transaction.CategoryID, Budget.CategoryID, Payment.CategoryID
//	Debt     <- DebtPayment.DebtID
//	Transaction <- DebtPayment.TransactionID
//
// # Amounts
//
// Amounts are decimal.Decimal values and are never negative. Floats are never
// used for money, on disk or on the wire.
//
// # Content keys
//
// ContentKey derives an identity from semantic fields only (never ids or
// timestamps). Strings are trimmed, case-folded and NFC-normalized, the field
// set is serialized as canonical JSON and hashed with SHA-256 under a per-type
// domain prefix. Two records with equal keys are considered duplicates.
package ledger

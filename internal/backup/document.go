package backup

import (
	"time"

	"github.com/roach88/ledgersync/internal/ledger"
)

// Scope tells whether a document holds every profile or one.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeProfile Scope = "profile"
)

// Metadata describes a document.
type Metadata struct {
	App               string    `json:"app,omitempty"`
	SchemaVersion     *int      `json:"schemaVersion,omitempty"`
	DatasetVersion    int       `json:"datasetVersion"`
	Scope             Scope     `json:"scope"`
	SourceProfileID   string    `json:"sourceProfileId,omitempty"`
	SourceProfileName string    `json:"sourceProfileName,omitempty"`
	ExportedAt        time.Time `json:"exportedAt"`
}

// Entities holds one array per entity type.
type Entities struct {
	Profiles     []ledger.Profile     `json:"profiles"`
	Categories   []ledger.Category    `json:"categories"`
	Transactions []ledger.Transaction `json:"transactions"`
	Budgets      []ledger.Budget      `json:"budgets"`
	Payments     []ledger.Payment     `json:"payments"`
	Debts        []ledger.Debt        `json:"debts"`
	DebtPayments []ledger.DebtPayment `json:"debtPayments"`
}

// Document is a dataset snapshot.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Entities Entities `json:"entities"`
}

// entityKeys lists the required entities arrays in document order.
var entityKeys = []string{
	"profiles", "categories", "transactions", "budgets", "payments", "debts", "debtPayments",
}

// ForProfile returns the entities that belong to profileID.
func (e Entities) ForProfile(profileID string) Entities {
	out := Entities{
		Profiles:     filter(e.Profiles, func(p ledger.Profile) bool { return p.ID == profileID }),
		Categories:   filter(e.Categories, func(c ledger.Category) bool { return c.ProfileID == profileID }),
		Transactions: filter(e.Transactions, func(t ledger.Transaction) bool { return t.ProfileID == profileID }),
		Budgets:      filter(e.Budgets, func(b ledger.Budget) bool { return b.ProfileID == profileID }),
		Payments:     filter(e.Payments, func(p ledger.Payment) bool { return p.ProfileID == profileID }),
		Debts:        filter(e.Debts, func(d ledger.Debt) bool { return d.ProfileID == profileID }),
		DebtPayments: filter(e.DebtPayments, func(p ledger.DebtPayment) bool { return p.ProfileID == profileID }),
	}
	return out
}

// Count returns the number of records per entity type.
func (e Entities) Count() map[string]int {
	return map[string]int{
		"profiles":     len(e.Profiles),
		"categories":   len(e.Categories),
		"transactions": len(e.Transactions),
		"budgets":      len(e.Budgets),
		"payments":     len(e.Payments),
		"debts":        len(e.Debts),
		"debtPayments": len(e.DebtPayments),
	}
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Package merge imports a validated backup into a profile.
//
// Every strategy runs the same ordered pipeline inside one store
// transaction:
//
//	Categories → Debts → Transactions → Budgets → Payments → DebtPayments
//
// Each stage rewrites foreign keys through the remap tables filled by the
// stages before it. A key whose target is unknown becomes null. Under the
// merge strategy a record whose content key already exists in the target
// (or was inserted earlier in the same run) is not inserted again; its id is
// remapped onto the existing record instead.
package merge

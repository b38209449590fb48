package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Domain prefixes for content keys. The version suffix allows the key
// algorithm to change without colliding with old keys.
const (
	DomainCategory    = "ledgersync/category/v1"
	DomainDebt        = "ledgersync/debt/v1"
	DomainTransaction = "ledgersync/transaction/v1"
	DomainBudget      = "ledgersync/budget/v1"
	DomainPayment     = "ledgersync/payment/v1"
	DomainDebtPayment = "ledgersync/debt-payment/v1"
)

// NormalizeText trims and case-folds s. NFC normalization happens at
// serialization time. A Caser is stateful, so one is built per call.
func NormalizeText(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// KeyFields is the semantic field set a content key is computed from.
// Values may be string, *string, Raw, decimal.Decimal, int or bool; strings
// are normalized and nil pointers become "".
type KeyFields map[string]any

// Raw is a key value that is used verbatim, for ids.
type Raw string

// ContentKey hashes fields under domain: SHA256(domain + 0x00 + canonical).
func ContentKey(domain string, fields KeyFields) (string, error) {
	obj := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			obj[k] = NormalizeText(val)
		case *string:
			obj[k] = NormalizeText(Deref(val))
		case Raw:
			obj[k] = string(val)
		case decimal.Decimal:
			obj[k] = val
		default:
			obj[k] = v
		}
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("content key %s: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CategoryKey identifies a category by (type, name).
func CategoryKey(c Category) (string, error) {
	return ContentKey(DomainCategory, KeyFields{
		"type": string(c.Type),
		"name": c.Name,
	})
}

// DebtKey identifies a debt by (direction, counterparty, principal,
// startDate, dueDate, currency).
func DebtKey(d Debt) (string, error) {
	return ContentKey(DomainDebt, KeyFields{
		"direction":    string(d.Direction),
		"counterparty": d.Counterparty,
		"principal":    d.Principal,
		"startDate":    d.StartDate,
		"dueDate":      d.DueDate,
		"currency":     NormalizeCurrency(d.Currency),
	})
}

// TransactionKey identifies a transaction by (date, type, amount,
// categoryId, note). CategoryID must already be remapped into the target.
func TransactionKey(t Transaction) (string, error) {
	return ContentKey(DomainTransaction, KeyFields{
		"date":       t.Date(),
		"type":       string(t.Direction),
		"amount":     t.Amount,
		"categoryId": Raw(Deref(t.CategoryID)),
		"note":       t.Note,
	})
}

// BudgetKey identifies a budget by (month, categoryId).
func BudgetKey(b Budget) (string, error) {
	return ContentKey(DomainBudget, KeyFields{
		"month":      b.Month,
		"categoryId": Raw(Deref(b.CategoryID)),
	})
}

// PaymentKey identifies a payment reminder by (dueDate, title, amount,
// status, categoryId).
func PaymentKey(p Payment) (string, error) {
	return ContentKey(DomainPayment, KeyFields{
		"dueDate":    p.DueDate,
		"title":      p.Title,
		"amount":     p.Amount,
		"status":     string(p.Status),
		"categoryId": Raw(Deref(p.CategoryID)),
	})
}

// DebtPaymentKey identifies a debt payment by (debtId, date, amount, note,
// transactionId).
func DebtPaymentKey(p DebtPayment) (string, error) {
	return ContentKey(DomainDebtPayment, KeyFields{
		"debtId":        Raw(Deref(p.DebtID)),
		"date":          p.Date,
		"amount":        p.Amount,
		"note":          p.Note,
		"transactionId": Raw(Deref(p.TransactionID)),
	})
}

package backup

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/ledgersync/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

// Issue is one problem found in a document.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError rejects a document. Warnings found before the rejection
// are kept so they can be shown alongside the errors.
type ValidationError struct {
	Errors   []Issue
	Warnings []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid backup: " + e.Errors[0].String()
	}
	parts := make([]string, len(e.Errors))
	for i, is := range e.Errors {
		parts[i] = is.String()
	}
	return fmt.Sprintf("invalid backup: %d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validated is a document that passed validation, with its import source
// resolved.
type Validated struct {
	Document          *Document
	SourceProfileID   string
	SourceProfileName string
	Warnings          []string
	IgnoredProfiles   []string
}

// Source returns the entities of the source profile.
func (v *Validated) Source() Entities {
	return v.Document.Entities.ForProfile(v.SourceProfileID)
}

// Validate checks a JSON document and resolves the profile it would import
// from. Records are normalized: currencies and statuses get their defaults
// and debt payments without a profile take their debt's.
func Validate(raw []byte) (*Validated, error) {
	if errs := checkStructure(raw); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if errs := checkShapes(raw); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Errors: []Issue{{Message: err.Error()}}}
	}
	normalize(&doc)

	var warnings []string
	if doc.Metadata.SchemaVersion == nil {
		warnings = append(warnings, "metadata.schemaVersion is missing; assuming the current format")
	}
	if doc.Metadata.DatasetVersion > ledger.DatasetVersion {
		warnings = append(warnings, fmt.Sprintf(
			"document dataset version %d is newer than the local version %d",
			doc.Metadata.DatasetVersion, ledger.DatasetVersion))
	}

	if errs := checkRecords(&doc.Entities); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs, Warnings: warnings}
	}

	v := &Validated{Document: &doc}
	if err := resolveSource(v); err != nil {
		return nil, &ValidationError{Errors: []Issue{*err}, Warnings: warnings}
	}

	if n := len(doc.Entities.Profiles); n > 1 {
		for _, p := range doc.Entities.Profiles {
			if p.ID != v.SourceProfileID {
				v.IgnoredProfiles = append(v.IgnoredProfiles, p.ID)
			}
		}
		warnings = append(warnings, fmt.Sprintf(
			"document holds %d profiles; only %q is imported, ignoring %s",
			n, v.SourceProfileID, strings.Join(v.IgnoredProfiles, ", ")))
	}
	v.Warnings = warnings
	return v, nil
}

// checkStructure verifies the top-level layout so later stages can report
// element errors by path.
func checkStructure(raw []byte) []Issue {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return []Issue{{Message: "document is not a JSON object: " + err.Error()}}
	}

	var errs []Issue
	if !isKind(top["metadata"], '{') {
		errs = append(errs, Issue{Path: "metadata", Message: "must be an object"})
	}
	if !isKind(top["entities"], '{') {
		return append(errs, Issue{Path: "entities", Message: "must be an object"})
	}

	var ents map[string]json.RawMessage
	if err := json.Unmarshal(top["entities"], &ents); err != nil {
		return append(errs, Issue{Path: "entities", Message: err.Error()})
	}
	for _, key := range entityKeys {
		if !isKind(ents[key], '[') {
			errs = append(errs, Issue{Path: "entities." + key, Message: "must be an array"})
		}
	}
	return errs
}

func isKind(raw json.RawMessage, open byte) bool {
	s := strings.TrimSpace(string(raw))
	return len(s) > 0 && s[0] == open
}

// checkShapes unifies the document with the embedded schema.
func checkShapes(raw []byte) []Issue {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []Issue{{Message: "backup schema: " + err.Error()}}
	}
	data := ctx.CompileBytes(raw, cue.Filename("document.json"))
	if err := data.Err(); err != nil {
		return []Issue{{Message: err.Error()}}
	}

	unified := schema.LookupPath(cue.ParsePath("#Document")).Unify(data)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var issues []Issue
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		issues = append(issues, Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Message: err.Error()})
	}
	return issues
}

func normalize(doc *Document) {
	e := &doc.Entities
	for i := range e.Transactions {
		e.Transactions[i].Currency = ledger.NormalizeCurrency(e.Transactions[i].Currency)
	}
	for i := range e.Budgets {
		e.Budgets[i].Currency = ledger.NormalizeCurrency(e.Budgets[i].Currency)
	}
	for i := range e.Payments {
		if e.Payments[i].Status == "" {
			e.Payments[i].Status = ledger.PaymentPlanned
		}
	}
	debtProfile := make(map[string]string, len(e.Debts))
	for i := range e.Debts {
		e.Debts[i].Currency = ledger.NormalizeCurrency(e.Debts[i].Currency)
		e.Debts[i].Status = ledger.NormalizeDebtStatus(e.Debts[i].Status)
		debtProfile[e.Debts[i].ID] = e.Debts[i].ProfileID
	}
	for i := range e.DebtPayments {
		p := &e.DebtPayments[i]
		if p.ProfileID == "" {
			p.ProfileID = debtProfile[ledger.Deref(p.DebtID)]
		}
	}
}

// checkRecords runs the per-entity field rules.
func checkRecords(e *Entities) []Issue {
	var issues []Issue
	add := func(key string, i int, err error) {
		if err == nil {
			return
		}
		path := fmt.Sprintf("entities.%s.%d", key, i)
		var ve *ledger.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				// orphaned debt payments are imported with a null debt
				if key == "debtPayments" && f.Field == "debtId" {
					continue
				}
				issues = append(issues, Issue{Path: path + "." + f.Field, Message: f.Message})
			}
			return
		}
		issues = append(issues, Issue{Path: path, Message: err.Error()})
	}

	for i, c := range e.Categories {
		add("categories", i, c.Validate())
	}
	for i, t := range e.Transactions {
		add("transactions", i, t.Validate())
	}
	for i, b := range e.Budgets {
		add("budgets", i, b.Validate())
	}
	for i, p := range e.Payments {
		add("payments", i, p.Validate())
	}
	for i, d := range e.Debts {
		add("debts", i, d.Validate())
	}
	for i, p := range e.DebtPayments {
		add("debtPayments", i, p.Validate())
	}
	return issues
}

// resolveSource picks the profile to import: the declared source for a
// single-profile export, else the first profile in the document.
func resolveSource(v *Validated) *Issue {
	md := v.Document.Metadata
	profiles := v.Document.Entities.Profiles

	id := ""
	if md.Scope == ScopeProfile {
		id = md.SourceProfileID
	}
	if id == "" && len(profiles) > 0 {
		id = profiles[0].ID
	}
	if id == "" {
		return &Issue{Path: "entities.profiles", Message: "cannot determine the source profile"}
	}

	v.SourceProfileID = id
	v.SourceProfileName = md.SourceProfileName
	for _, p := range profiles {
		if p.ID == id {
			v.SourceProfileName = p.Name
			break
		}
	}
	if v.SourceProfileName == "" {
		v.SourceProfileName = "Imported"
	}
	return nil
}

package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// AddCategory creates a category in an existing profile. A category with the
// same type and name (after trimming and case folding) is rejected.
func AddCategory(ctx context.Context, st Store, c Category, now time.Time) (Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = now.UTC()
	if err := c.Validate(); err != nil {
		return Category{}, err
	}
	key, err := CategoryKey(c)
	if err != nil {
		return Category{}, err
	}

	var out Category
	err = st.Atomic(ctx, func(sc Scope) error {
		if _, err := sc.Profiles().Get(ctx, c.ProfileID); err != nil {
			return err
		}
		existing, err := sc.Categories().ListByProfile(ctx, c.ProfileID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			k, err := CategoryKey(e)
			if err != nil {
				return err
			}
			if k == key {
				return &ValidationError{Entity: "category", Fields: []FieldError{
					{Field: "name", Message: fmt.Sprintf("%s category %q already exists (%s)", c.Type, e.Name, e.ID)},
				}}
			}
		}
		out, err = sc.Categories().Insert(ctx, c)
		return err
	})
	if err != nil {
		return Category{}, fmt.Errorf("add category: %w", err)
	}
	return out, nil
}

// ListCategories returns the profile's categories, expenses first, then by
// name.
func ListCategories(ctx context.Context, sc Scope, profileID string) ([]Category, error) {
	cats, err := sc.Categories().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(cats, func(a, b Category) int {
		if a.Type != b.Type {
			if a.Type == CategoryExpense {
				return -1
			}
			return 1
		}
		return cmp.Compare(NormalizeText(a.Name), NormalizeText(b.Name))
	})
	return cats, nil
}

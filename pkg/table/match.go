package table

import (
	"strings"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// ExtraPolicy decides what MatchColumns does with columns not in the
// desired list
type ExtraPolicy string

// MissingPolicy decides what MatchColumns does with desired columns the
// table lacks
type MissingPolicy string

const (
	ExtraRemove ExtraPolicy = "remove"
	ExtraFail   ExtraPolicy = "fail"
	ExtraIgnore ExtraPolicy = "ignore"

	MissingAdd    MissingPolicy = "add"
	MissingFail   MissingPolicy = "fail"
	MissingIgnore MissingPolicy = "ignore"
)

// MatchOptions configures MatchColumns. The zero value matches fuzzily,
// removes extra columns and adds missing ones.
type MatchOptions struct {
	// Exact compares names verbatim instead of through NormalizeColumnName
	Exact     bool
	IfExtra   ExtraPolicy
	IfMissing MissingPolicy
}

// MatchColumns reconciles the header with desired. Matched columns take the
// desired spelling and the table is reordered to desired; extra columns
// kept by ExtraIgnore follow in their original order.
func (t *Table) MatchColumns(desired []string, opts MatchOptions) error {
	if err := checkUnique(desired); err != nil {
		return err
	}
	ifExtra := opts.IfExtra
	if ifExtra == "" {
		ifExtra = ExtraRemove
	}
	ifMissing := opts.IfMissing
	if ifMissing == "" {
		ifMissing = MissingAdd
	}
	switch ifExtra {
	case ExtraRemove, ExtraFail, ExtraIgnore:
	default:
		return errors.Newf(errors.ErrorTypeValue, "unknown extra-column policy %q", ifExtra)
	}
	switch ifMissing {
	case MissingAdd, MissingFail, MissingIgnore:
	default:
		return errors.Newf(errors.ErrorTypeValue, "unknown missing-column policy %q", ifMissing)
	}

	header, err := t.Columns()
	if err != nil {
		return err
	}
	norm := NormalizeColumnName
	if opts.Exact {
		norm = func(s string) string { return s }
	}

	used := make([]bool, len(header))
	var outHeader []string
	var sources []int
	var missing []string
	for _, d := range desired {
		match := -1
		for i, h := range header {
			if !used[i] && norm(h) == norm(d) {
				match = i
				break
			}
		}
		if match < 0 {
			missing = append(missing, d)
			if ifMissing == MissingAdd {
				outHeader = append(outHeader, d)
				sources = append(sources, -1)
			}
			continue
		}
		used[match] = true
		outHeader = append(outHeader, d)
		sources = append(sources, match)
	}

	var extra []string
	for i, h := range header {
		if !used[i] {
			extra = append(extra, h)
		}
	}

	if len(missing) > 0 && ifMissing == MissingFail {
		return errors.New(errors.ErrorTypeValue, "table is missing columns").
			WithDetail("missing", strings.Join(missing, ","))
	}
	if len(extra) > 0 && ifExtra == ExtraFail {
		return errors.New(errors.ErrorTypeValue, "table has extra columns").
			WithDetail("extra", strings.Join(extra, ","))
	}
	if ifExtra == ExtraIgnore {
		for i, h := range header {
			if !used[i] {
				outHeader = append(outHeader, h)
				sources = append(sources, i)
			}
		}
	}
	if err := checkUnique(outHeader); err != nil {
		return err
	}

	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		if len(in) != len(header) {
			return nil, nil, errors.New(errors.ErrorTypeValue, "table header changed after matching")
		}
		return cloneStrings(outHeader), func(row []any) ([]any, bool, error) {
			out := make([]any, len(sources))
			for i, j := range sources {
				if j >= 0 {
					out[i] = row[j]
				}
			}
			return out, true, nil
		}, nil
	})
	return nil
}

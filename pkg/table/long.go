package table

// LongOptions configures LongTable
type LongOptions struct {
	// KeyRename renames key columns in the output
	KeyRename map[string]string
	// RetainOriginal keeps the pivoted column on the receiver
	RetainOriginal bool
	// NoPrepend names unpacked map keys without the column prefix
	NoPrepend bool
	// PrependValue overrides the column name as the prefix
	PrependValue string
	// KeepEmpty emits one row of keys for rows whose value is nil or empty
	KeepEmpty bool
}

// LongTable pivots a column of lists into a new table with one row per
// element, carrying the key columns forward. Map elements unpack into
// prefixed columns; other elements land in a column named after the pivoted
// column. Nil elements are skipped. Unless RetainOriginal is set, the
// column is removed from the receiver.
func (t *Table) LongTable(keys []string, column string, opts LongOptions) (*Table, error) {
	header, err := t.Columns()
	if err != nil {
		return nil, err
	}
	if _, err := indexesOf(header, keys); err != nil {
		return nil, err
	}
	if indexOf(header, column) < 0 {
		return nil, missingColumn(column)
	}

	outKeys := make([]string, len(keys))
	for i, k := range keys {
		outKeys[i] = k
		if r, ok := opts.KeyRename[k]; ok {
			outKeys[i] = r
		}
	}
	if err := checkUnique(outKeys); err != nil {
		return nil, err
	}
	prefix := column
	if opts.PrependValue != "" {
		prefix = opts.PrependValue
	}
	keyNames := cloneStrings(keys)

	long := buffered(t.src, func(in []string, rows [][]any) ([]string, [][]any, error) {
		kidx, err := indexesOf(in, keyNames)
		if err != nil {
			return nil, nil, err
		}
		cidx := indexOf(in, column)
		if cidx < 0 {
			return nil, nil, missingColumn(column)
		}

		type longRow struct {
			keys   []any
			scalar any
			fields map[string]any
		}
		var out []longRow
		var fieldOrder []string
		seenField := map[string]bool{}
		hasScalar := false

		for _, row := range rows {
			kv := make([]any, len(kidx))
			for i, j := range kidx {
				kv[i] = row[j]
			}
			value := row[cidx]
			if isEmptyValue(value) {
				if opts.KeepEmpty {
					out = append(out, longRow{keys: kv})
				}
				continue
			}
			elems, ok := asList(value)
			if !ok {
				elems = []any{value}
			}
			for _, e := range elems {
				if e == nil {
					continue
				}
				lr := longRow{keys: kv}
				if m, ok := asMap(e); ok {
					lr.fields = make(map[string]any, len(m))
					for _, k := range sortedKeys(m) {
						name := k
						if !opts.NoPrepend {
							name = prefix + "_" + k
						}
						lr.fields[name] = m[k]
						if !seenField[name] {
							seenField[name] = true
							fieldOrder = append(fieldOrder, name)
						}
					}
				} else {
					lr.scalar = e
					hasScalar = true
				}
				out = append(out, lr)
			}
		}

		outHeader := cloneStrings(outKeys)
		if hasScalar {
			outHeader = append(outHeader, column)
		}
		outHeader = append(outHeader, fieldOrder...)
		if err := checkUnique(outHeader); err != nil {
			return nil, nil, err
		}

		result := make([][]any, len(out))
		for i, lr := range out {
			r := make([]any, 0, len(outHeader))
			r = append(r, lr.keys...)
			if hasScalar {
				r = append(r, lr.scalar)
			}
			for _, f := range fieldOrder {
				r = append(r, lr.fields[f])
			}
			result[i] = r
		}
		return outHeader, result, nil
	})

	if !opts.RetainOriginal {
		if err := t.RemoveColumn(column); err != nil {
			return nil, err
		}
	}
	return &Table{src: long}, nil
}

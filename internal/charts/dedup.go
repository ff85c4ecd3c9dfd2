package charts

// Partition splits requested specs into those the library does not hold
// yet (fresh) and those whose key already exists (duplicate).
//
// The split is pure: it reads the inputs, mutates nothing, and preserves
// the relative order of requested within each output slice. A key that
// appears more than once in requested is processed once; later
// occurrences are dropped, not reported as duplicates.
func Partition(requested []ChartSpec, existing map[string]struct{}) (fresh, duplicate []ChartSpec) {
	if len(requested) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(requested))

	for _, spec := range requested {
		key := spec.Key()

		if _, dup := seen[key]; dup {
			// Repeated within this request, first occurrence wins
			continue
		}
		seen[key] = struct{}{}

		if _, ok := existing[key]; ok {
			duplicate = append(duplicate, spec)
		} else {
			fresh = append(fresh, spec)
		}
	}

	return fresh, duplicate
}

// KeySet builds the lookup set Partition expects from a list of spec keys.
func KeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

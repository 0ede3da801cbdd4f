// Package dedupe removes exact duplicate course records.
//
// Two records are duplicates when all five fields match after trimming
// leading/trailing whitespace and lower-casing. Whitespace inside a value is
// significant, so "14:00-15:00" and "14:00 - 15:00" are different records.
package dedupe

import (
	"strings"

	"github.com/coursesnap/coursesnap/internal/models"
)

// keySeparator is the ASCII unit separator; it does not occur in schedule text.
const keySeparator = "\x1f"

// Key returns the dedup key of a record.
func Key(r models.CourseRecord) string {
	fields := r.Fields()
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return strings.Join(fields, keySeparator)
}

// Dedupe returns the records with duplicates removed. The first occurrence of
// each key is kept with its original field values; order is preserved.
// The input slice is not modified.
func Dedupe(records []models.CourseRecord) []models.CourseRecord {
	if records == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]models.CourseRecord, 0, len(records))
	for _, r := range records {
		k := Key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

package convertservice

import "github.com/rohit/csv2jsonl/internal/domain/models"

// Normalize returns a record in which every field has a string value.
// Absent values become the empty string; present values are not changed.
func Normalize(record *models.Record) models.NormalizedRecord {
	values := make([]string, len(record.Values))
	for i, v := range record.Values {
		if v != nil {
			values[i] = *v
		}
	}
	return models.NormalizedRecord{
		Fields: record.Fields,
		Values: values,
	}
}

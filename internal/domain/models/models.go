package models

// Record is one data row keyed by header field name.
// Fields and Values are parallel; a nil value means the row had no field at that position.
type Record struct {
	Fields []string
	Values []*string
}

// NormalizedRecord is a Record in which every field has a string value
type NormalizedRecord struct {
	Fields []string
	Values []string
}

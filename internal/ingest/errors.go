package ingest

import "strings"

// MappingInvalidError means a required canonical field is unmapped or mapped
// to a column the remote catalog does not contain. Fatal for the sync run;
// zero records are created. Per-record validation cannot catch this class of
// problem: a bad mapping would produce hundreds of uniformly-wrong records.
type MappingInvalidError struct {
	Errors []string
}

func (e MappingInvalidError) Error() string {
	return "ingest: invalid column mapping: " + strings.Join(e.Errors, "; ")
}

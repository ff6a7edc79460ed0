// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot submits and tracks archive jobs: explain, analytics,
// extraction and update. All jobs share one lifecycle: submit, poll until
// done, collect results. Extraction and update results are files which
// this package also downloads.
package snapshot

import (
	"fmt"
	"strings"
)

// FileFormat is the delivery format of extraction files.
type FileFormat string

const (
	FormatAvro FileFormat = "avro"
	FormatCSV  FileFormat = "csv"
	FormatJSON FileFormat = "json"
)

// Frequency is the analytics bucketing period.
type Frequency string

const (
	FrequencyDay   Frequency = "DAY"
	FrequencyMonth Frequency = "MONTH"
	FrequencyYear  Frequency = "YEAR"
)

// Date fields accepted by analytics bucketing.
var validDateFields = map[string]bool{
	"publication_datetime":  true,
	"modification_datetime": true,
	"ingestion_datetime":    true,
}

// Query selects archive documents and configures how jobs process them.
// Where is the only required field.
type Query struct {
	// Where is the SQL-like selection clause, e.g.
	// "publication_datetime >= '2020-01-01 00:00:00' AND LOWER(language_code) = 'en'".
	Where string

	// Includes and Excludes hold taxonomy code filters keyed by dimension
	// (e.g. "source_codes" -> ["DJDN", "RTRS"]).
	Includes map[string][]string
	Excludes map[string][]string

	// SelectFields narrows the returned document fields on extraction.
	SelectFields []string

	// Limit caps the number of extracted documents. Zero means no cap.
	Limit int

	// Format is the extraction file format (default avro).
	Format FileFormat

	// Frequency, DateField, GroupBySourceCode and Top configure analytics.
	Frequency         Frequency
	DateField         string
	GroupBySourceCode bool
	Top               int
}

// NewQuery returns a Query with the analytics and extraction defaults the
// API assumes: avro format, monthly buckets over publication_datetime,
// top 10 groups.
func NewQuery(where string) Query {
	return Query{
		Where:     where,
		Format:    FormatAvro,
		Frequency: FrequencyMonth,
		DateField: "publication_datetime",
		Top:       10,
	}
}

// Validate checks the query fields against the values the API accepts.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Where) == "" {
		return fmt.Errorf("query has an empty where clause")
	}
	switch q.Format {
	case FormatAvro, FormatCSV, FormatJSON:
	default:
		return fmt.Errorf("unsupported file format %q (use avro, csv or json)", q.Format)
	}
	switch q.Frequency {
	case FrequencyDay, FrequencyMonth, FrequencyYear:
	default:
		return fmt.Errorf("unsupported frequency %q (use DAY, MONTH or YEAR)", q.Frequency)
	}
	if !validDateFields[q.DateField] {
		return fmt.Errorf("unsupported date field %q", q.DateField)
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if q.Top < 0 {
		return fmt.Errorf("top cannot be negative")
	}
	return nil
}

// baseQuery builds the selection part shared by every job payload.
func (q Query) baseQuery() map[string]any {
	base := map[string]any{"where": q.Where}
	if len(q.Includes) > 0 {
		base["includes"] = q.Includes
	}
	if len(q.Excludes) > 0 {
		base["excludes"] = q.Excludes
	}
	if len(q.SelectFields) > 0 {
		base["select"] = q.SelectFields
	}
	return base
}

// ExplainPayload builds the explain job request body.
func (q Query) ExplainPayload() map[string]any {
	return map[string]any{"query": q.baseQuery()}
}

// AnalyticsPayload builds the analytics job request body.
func (q Query) AnalyticsPayload() map[string]any {
	query := q.baseQuery()
	query["frequency"] = string(q.Frequency)
	query["date_field"] = q.DateField
	query["group_by_source_code"] = q.GroupBySourceCode
	query["top"] = q.Top
	return map[string]any{"query": query}
}

// ExtractionPayload builds the extraction job request body.
func (q Query) ExtractionPayload() map[string]any {
	query := q.baseQuery()
	query["format"] = string(q.Format)
	if q.Limit > 0 {
		query["limit"] = q.Limit
	}
	return map[string]any{"query": query}
}

// StreamPayload builds the stream-creation request body, which wraps the
// base query in the streams envelope.
func (q Query) StreamPayload() map[string]any {
	return map[string]any{
		"data": map[string]any{
			"attributes": q.baseQuery(),
			"type":       "stream",
		},
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Article is one news document delivered on a stream subscription.
// Field names follow the archive wire format.
type Article struct {
	// AN is the accession number, the document's unique archive id
	// (e.g. "DJDN000020210520eh5k0000l").
	AN string `json:"an" yaml:"an"`

	// Action is the delivery action: add, rep (replace) or del (delete).
	Action string `json:"action" yaml:"action"`

	DocumentType string `json:"document_type" yaml:"document_type"`
	SourceCode   string `json:"source_code" yaml:"source_code"`
	SourceName   string `json:"source_name" yaml:"source_name"`
	LanguageCode string `json:"language_code" yaml:"language_code"`

	Title   string `json:"title" yaml:"title"`
	Snippet string `json:"snippet" yaml:"snippet"`
	Body    string `json:"body" yaml:"body"`

	PublicationDatetime  string `json:"publication_datetime" yaml:"publication_datetime"`
	ModificationDatetime string `json:"modification_datetime" yaml:"modification_datetime"`
	IngestionDatetime    string `json:"ingestion_datetime" yaml:"ingestion_datetime"`

	// Taxonomy codes attached to the document, comma-separated on the wire.
	CompanyCodes  string `json:"company_codes,omitempty" yaml:"company_codes,omitempty"`
	IndustryCodes string `json:"industry_codes,omitempty" yaml:"industry_codes,omitempty"`
	RegionCodes   string `json:"region_codes,omitempty" yaml:"region_codes,omitempty"`
	SubjectCodes  string `json:"subject_codes,omitempty" yaml:"subject_codes,omitempty"`
}

// Package importer maps the records of an .eln archive to eLabFTW API
// calls: one create per record, followed by its attachment uploads, followed
// by the body patch. Records are processed strictly in manifest order.
package importer

import (
	"github.com/elabftw/rspace2elabftw/internal/rspace"
)

// ImportTag is added to every imported entity's tags.
const ImportTag = "imported from rspace"

// Record is one importable notebook entry extracted from the archive.
type Record struct {
	// DatasetID is the crate dataset ID, e.g. "doc_42".
	DatasetID string
	// Tags are the dataset keywords.
	Tags []string
	// XMLID is the crate-relative ID of the record's XML file.
	XMLID string
	// XMLPath is the absolute path of the extracted XML file.
	XMLPath string
	// Doc is the decoded RSpace document.
	Doc *rspace.Document
}

// Result summarizes an import run.
type Result struct {
	// RunID correlates log lines of one run.
	RunID string
	// Created counts entities created (or, in dry-run, that would be).
	Created int
	// Skipped counts records left out: an unknown document type, or a
	// dataset without any importable record XML.
	Skipped int
	// Failed counts records that errored.
	Failed int
	// Uploads counts attachment uploads, the record XML files included.
	Uploads int
	// DryRun reports whether no API calls were made.
	DryRun bool
	// Errors lists the per-record failures.
	Errors []RecordError
}

// RecordError records a failure to import a specific record.
type RecordError struct {
	DatasetID string
	Err       error
}

func (e RecordError) Error() string {
	return e.DatasetID + ": " + e.Err.Error()
}

func (e RecordError) Unwrap() error {
	return e.Err
}

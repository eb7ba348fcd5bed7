package repoingest

import "errors"

var (
	// ErrNotConfigured is returned when no ingest service URL is set.
	ErrNotConfigured = errors.New("REPOSITORY_INGEST_API_URL is not set")
	// ErrMissingFilesSection is returned when a bundle has no <files> section.
	ErrMissingFilesSection = errors.New("invalid bundle format: missing <files> section")
	// ErrNoFilesParsed is returned when no file section could be parsed.
	ErrNoFilesParsed = errors.New("no files could be parsed from the response")
)

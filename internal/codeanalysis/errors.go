package codeanalysis

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidID            = errors.New("invalid analysis id")
	ErrInvalidRepositoryURL = errors.New("invalid repository url")
	ErrPipelineUnavailable  = errors.New("analysis pipeline unavailable")
	ErrReportUnavailable    = errors.New("report not available")
	ErrUnknownReport        = errors.New("unknown report")
)

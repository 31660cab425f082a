package parser

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type ParseErrorCause string

const (
	ErrCauseNotHTML  ParseErrorCause = "not html"
	ErrCauseNoTarget ParseErrorCause = "no parseable target"
)

type ParseError struct {
	Message   string
	Retryable bool
	Cause     ParseErrorCause
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Cause)
}

func (e *ParseError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapParseErrorToMetadataCause maps parser-local error semantics to the
// canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used to derive
// control-flow decisions.
func mapParseErrorToMetadataCause(err *ParseError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNotHTML:
		return metadata.CauseContentInvalid
	case ErrCauseNoTarget:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

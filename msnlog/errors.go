package msnlog

import "errors"

var (
	// ErrMalformedArchive indicates an archive element is missing a required
	// child or attribute, or the file is not well-formed XML.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrExecutorRequired is returned when an importer is built without an executor.
	ErrExecutorRequired = errors.New("executor required")

	// ErrParserRequired is returned when an importer is built without a parser.
	ErrParserRequired = errors.New("parser required")
)

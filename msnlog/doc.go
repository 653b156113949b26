// Package msnlog reads MSN Messenger XML history archives and loads them
// into the msn_messages table.
//
// Parser turns one archive file into a lazy sequence of core.ArchiveEvent
// values, dropping every event that involves a participant outside the
// configured allow-list. Importer drives the parser over a directory and
// writes each event through a storage.Executor, committing once at the end.
//
// A malformed archive ends the sequence for that file with an error wrapping
// ErrMalformedArchive. The importer records the failure and moves on to the
// next file; the joined failures are returned once the directory is done.
package msnlog

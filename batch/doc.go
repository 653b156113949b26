// Package batch holds helpers shared by the sequential and concurrent
// ingestion paths: retry with exponential backoff and progress reporting
// for long record loops.
package batch

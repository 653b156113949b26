// Package ingestion classifies and records the picture archive.
//
// Pipeline walks a remote folder listing, downloads every JPEG on a bounded
// worker pool and sorts it into a topic by the keywords embedded in its EXIF
// block. One picture failing does not affect the others; failures are
// collected in the result.
//
// Persister writes classified pictures to dbx_pictures. Backfiller fills in
// missing capture times from the remote media info, FaceLinker registers
// people and links them to pictures, and LocalImporter adds pictures from a
// local folder. Every writer commits once at the end of its batch and
// collects per-item failures instead of aborting.
package ingestion

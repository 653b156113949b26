// Package mock provides an in-memory remote.Store and helpers that build
// small JPEG files carrying EXIF metadata, for tests.
package mock

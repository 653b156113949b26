// Package remote defines the boundary to the cloud file store holding the
// picture archive, and walks its paginated folder listings.
//
// Store is implemented over the Dropbox API in remote/dropbox and by an
// in-memory double in remote/mock.
package remote

// Package store defines the persistence interface for organizations,
// memberships, and resolved role mappings.
//
// The authoritative store for this product is a document database. Two
// implementations exist:
//
//   - store/mongostore: MongoDB-backed, used in production. Every call is
//     bounded by an explicit operation timeout.
//   - store/memstore: in-memory, used by unit tests and as a reference
//     implementation of the interface semantics.
//
// Role mappings are written whole-value: a writer always replaces the entire
// mapping document so concurrent readers never observe a partially updated
// mapping.
package store

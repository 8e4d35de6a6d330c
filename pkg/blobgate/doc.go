// Package blobgate is an object-storage gateway for business documents.
//
// Clients identify themselves with a (channel, operation) pair; blobgate
// resolves that pair to a physical bucket, classifies the uploaded bytes
// with its own probe chain (client-declared content types are never
// trusted for storage decisions), writes the object to an S3-compatible
// store and records addressable metadata in a relational store. The
// package also ships a resumable bulk migrator that moves legacy inline
// blob columns into the same object store.
//
// The package is library-first: construct a Service with New and the
// functional options, then mount the HTTP surface from the api
// subpackage or drive it directly. Storage backends and repositories are
// interfaces with in-memory implementations for tests and pgx/aws-sdk
// implementations for production.
package blobgate

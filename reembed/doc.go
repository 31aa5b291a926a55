// Package reembed replaces the embeddings of stored slices, usually after a
// change of embedding model left them with a different dimensionality than
// new query vectors.
//
// Slices are embedded in batches with retry and exponential backoff. Vectors
// are normalized to unit length before they are written back.
package reembed

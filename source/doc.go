// Package source reads bookmark exports and URL lists and selects the
// documents the ingestion pipeline still has to index.
package source

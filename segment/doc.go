// Package segment turns fetched documents into overlapping text chunks.
//
// ExtractText strips markup from an HTML document. Splitter (and the Segment
// shorthand) cuts the resulting text into windows that end on sentence
// boundaries where possible, so each chunk reads as a coherent passage when
// it is embedded or shown as search context.
package segment

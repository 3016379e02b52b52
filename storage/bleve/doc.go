// Package bleve keeps a full-text index of chunk content and titles.
//
// The index is a keyword prefilter for lexical search: it answers which chunks
// contain any of a set of words as a substring, so the lexical matcher only has
// to score those. It uses a lowercase-only analyzer (no stemming or stop words)
// so that its answers agree with the matcher's case-insensitive substring rules.
package bleve

// Package ingestion turns extracted text into searchable documents.
//
// The Chunker splits text into passages with a strategy per source type:
// speaker-aware for transcripts, section-aware for documents, paragraph-aware
// for web pages and sentence-based for everything else.
//
// The Pipeline stores a pending document, then chunks it, embeds the chunks,
// stores them, adds them to the keyword index and optionally tags the document
// with extracted keywords. Processing runs on a worker pool; IngestSync runs it
// inline. A document ends either completed or failed, with the failure reason
// in its metadata.
package ingestion

// Package reembed recomputes the vector of every stored chunk, typically after
// switching embedding models or dimensions.
//
// Chunks are visited in ID order in batches. Each batch is embedded with retry
// and exponential backoff, normalized to unit length and written back. When a
// checkpoint repository is configured, the last finished chunk is recorded
// after every batch so an interrupted run resumes where it stopped.
package reembed

package search

import (
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Hooks for the two signals may be called from different goroutines.
type SearchMonitor interface {
	Start(query string, filters *core.Filters, limit int)
	AfterTemporalResolution(dateRange *core.DateRange, mode TemporalMode)
	AfterSemanticSearch(hits []*storage.SimilarChunk)
	AfterLexicalSearch(tokens []string, matches []LexicalMatch)
	SignalFailed(signal Signal, err error)
	AfterFusion(fused []Fused)
	Finish(response *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ *core.Filters, _ int) {}
func (n *noopMonitor) AfterTemporalResolution(_ *core.DateRange, _ TemporalMode) {}
func (n *noopMonitor) AfterSemanticSearch(_ []*storage.SimilarChunk) {}
func (n *noopMonitor) AfterLexicalSearch(_ []string, _ []LexicalMatch) {}
func (n *noopMonitor) SignalFailed(_ Signal, _ error) {}
func (n *noopMonitor) AfterFusion(_ []Fused) {}
func (n *noopMonitor) Finish(_ *Response) {}

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/search"
	"github.com/poiesic/secondbrain/storage"
)

// explainMonitor prints each search stage. The two signals report from
// different goroutines, so writes are serialized.
type explainMonitor struct {
	mu sync.Mutex
	w  io.Writer
}

var _ search.SearchMonitor = (*explainMonitor)(nil)

func newExplainMonitor(w io.Writer) *explainMonitor {
	return &explainMonitor{w: w}
}

func (m *explainMonitor) printf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, format, args...)
}

func (m *explainMonitor) Start(query string, filters *core.Filters, limit int) {
	m.printf("query: %q (limit %d)\n", query, limit)
	if !filters.IsEmpty() {
		m.printf("filters: types=%v tags=%v range=%v\n", filters.SourceTypes, filters.Tags, filters.DateRange)
	}
}

func (m *explainMonitor) AfterTemporalResolution(dateRange *core.DateRange, mode search.TemporalMode) {
	if dateRange == nil {
		return
	}
	m.printf("temporal: %s to %s (%s)\n",
		dateRange.Start.Format(time.DateTime), dateRange.End.Format(time.DateTime), mode)
}

func (m *explainMonitor) AfterSemanticSearch(hits []*storage.SimilarChunk) {
	m.printf("semantic: %d hits\n", len(hits))
}

func (m *explainMonitor) AfterLexicalSearch(tokens []string, matches []search.LexicalMatch) {
	m.printf("lexical: tokens %v, %d matches\n", tokens, len(matches))
}

func (m *explainMonitor) SignalFailed(signal search.Signal, err error) {
	m.printf("%s signal failed: %v\n", signal, err)
}

func (m *explainMonitor) AfterFusion(fused []search.Fused) {
	consensus := 0
	for _, f := range fused {
		if f.InAll() {
			consensus++
		}
	}
	m.printf("fusion: %d candidates, %d in both lists\n", len(fused), consensus)
}

func (m *explainMonitor) Finish(resp *search.Response) {
	if resp == nil {
		return
	}
	t := resp.Timings
	m.printf("timings: embedding %v, semantic %v, lexical %v, fusion %v, total %v\n",
		t.Embedding, t.Semantic, t.Lexical, t.Fusion, t.Total)
}

// Package ingest coordinates a full repository ingestion: parse the
// source tree into a graph document, commit it wholesale, and rebuild the
// repository's search collection. Re-running ingestion replaces the
// previous state; readers keep seeing the old graph until the new one is
// committed.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/registry"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/sirupsen/logrus"
)

// Phase identifies one ingestion stage for progress reporting.
type Phase string

const (
	PhaseGraph  Phase = "graph"
	PhaseCommit Phase = "commit"
	PhaseIndex  Phase = "index"
)

// Progress is one reporting event. Count carries a phase-specific tally.
type Progress struct {
	Phase  Phase
	Detail string
	Count  int
}

// ProgressSink receives progress events; nil disables reporting.
type ProgressSink func(Progress)

// Summary describes a completed ingestion.
type Summary struct {
	Repository models.RepositoryHandle
	Entities   int
	Edges      int
	Failures   int
	Documents  int
	Duration   time.Duration
}

// Orchestrator runs ingestions. Safe for concurrent use across different
// repositories; the registry serializes graph commits per repository.
type Orchestrator struct {
	registry *registry.Registry
	builder  *graph.Builder
	search   *search.Client
	logger   *logrus.Logger
}

func NewOrchestrator(reg *registry.Registry, builder *graph.Builder, searchClient *search.Client, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		builder:  builder,
		search:   searchClient,
		logger:   logger,
	}
}

// Ingest rebuilds both the graph and the search collection for one
// repository. The graph swap is atomic; the search collection is dropped
// and recreated, so searches during reindexing may briefly see an empty
// collection but never a mix of old and new passages.
func (o *Orchestrator) Ingest(ctx context.Context, handle models.RepositoryHandle, opts graph.BuildOptions, sink ProgressSink) (*Summary, error) {
	started := time.Now()
	report := func(p Progress) {
		if sink != nil {
			sink(p)
		}
	}

	report(Progress{Phase: PhaseGraph, Detail: "parsing source tree"})
	doc, err := o.builder.Build(ctx, handle.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("build graph for %s: %w", handle.Name, err)
	}
	report(Progress{Phase: PhaseGraph, Detail: "graph built", Count: len(doc.Entities)})

	report(Progress{Phase: PhaseCommit, Detail: "committing graph"})
	if err := o.registry.CommitGraph(handle, doc); err != nil {
		return nil, fmt.Errorf("commit graph for %s: %w", handle.Name, err)
	}

	report(Progress{Phase: PhaseIndex, Detail: "collecting documents"})
	docs, err := collectDocuments(handle.Path)
	if err != nil {
		return nil, fmt.Errorf("collect documents for %s: %w", handle.Name, err)
	}

	// Drop and recreate rather than diffing: wholesale replacement keeps
	// the collection consistent with the tree that was just parsed.
	if err := o.search.DeleteCollection(ctx, handle.Collection); err != nil {
		return nil, fmt.Errorf("reset collection for %s: %w", handle.Name, err)
	}
	if err := o.search.CreateCollection(ctx, handle.Collection); err != nil {
		return nil, fmt.Errorf("recreate collection for %s: %w", handle.Name, err)
	}
	indexed, err := o.search.IndexDocuments(ctx, handle.Collection, docs)
	if err != nil {
		return nil, fmt.Errorf("index documents for %s: %w", handle.Name, err)
	}
	report(Progress{Phase: PhaseIndex, Detail: "documents indexed", Count: indexed})

	summary := &Summary{
		Repository: handle,
		Entities:   len(doc.Entities),
		Edges:      len(doc.Edges),
		Failures:   len(doc.Failures),
		Documents:  indexed,
		Duration:   time.Since(started),
	}
	o.logger.WithFields(logrus.Fields{
		"repo":      handle.Name,
		"entities":  summary.Entities,
		"edges":     summary.Edges,
		"failures":  summary.Failures,
		"documents": summary.Documents,
		"duration":  summary.Duration.Round(time.Millisecond),
	}).Info("ingestion complete")
	return summary, nil
}

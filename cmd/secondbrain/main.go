// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/secondbrain"
	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/assistant"
	"github.com/poiesic/secondbrain/config"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/ingestion"
	"github.com/poiesic/secondbrain/reembed"
	"github.com/poiesic/secondbrain/search"
	"github.com/poiesic/secondbrain/telemetry"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// env carries what commands share: the loaded config, output streams and
// how to open the knowledge base.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	open     func(ctx context.Context, cfg *config.Config) (*secondbrain.KnowledgeBase, error)
	cfg      *config.Config
	shutdown telemetry.ShutdownFunc
}

func main() {
	e := &env{
		stdout: os.Stdout,
		stderr: os.Stderr,
		open: func(ctx context.Context, cfg *config.Config) (*secondbrain.KnowledgeBase, error) {
			return secondbrain.Open(ctx, cfg)
		},
	}
	if err := newApp(e).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "type",
			Usage: "Only search these source types (text, pdf, audio, web, image)",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "Only search documents created on or after this date (2006-01-02 or RFC 3339)",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "Only search documents created on or before this date",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Only search documents carrying one of these tags",
		},
	}
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:      "secondbrain",
		Usage:     "Personal knowledge base with hybrid search",
		Version:   version,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override the configured data directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: e.setup,
		After:  e.teardown,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add text files to the knowledge base ('-' reads stdin)",
				ArgsUsage: "FILE...",
				Action:    e.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Document title (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Source type of the extracted text",
						Value: "text",
					},
					&cli.StringFlag{
						Name:  "author",
						Usage: "Document author",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag to attach, may be repeated",
					},
					&cli.StringFlag{
						Name:  "created",
						Usage: "Authoring date (2006-01-02 or RFC 3339), defaults to now",
					},
					&cli.BoolFlag{
						Name:  "async",
						Usage: "Process documents on the worker pool",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Add each non-blank line of FILE as a separate document",
				ArgsUsage: "FILE",
				Action:    e.importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Source type of the lines",
						Value: "text",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag to attach to every document, may be repeated",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the knowledge base",
				ArgsUsage: "QUERY",
				Action:    e.searchCommand,
				Flags: append(filterFlags(),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Lexical matching mode (strict, graded)",
					},
					&cli.StringFlag{
						Name:  "temporal-mode",
						Usage: "How dates in the query apply (filter, boost)",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print each search stage and result diagnostics to stderr",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question answered from the knowledge base",
				ArgsUsage: "QUESTION",
				Action:    e.askCommand,
				Flags: append(filterFlags(),
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Continue an earlier conversation",
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Print the answer as it is generated",
					},
				),
			},
			{
				Name:  "documents",
				Usage: "Inspect and remove documents",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List documents, newest first",
						Action: e.listDocumentsCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "offset", Usage: "Number of documents to skip"},
							&cli.IntFlag{Name: "limit", Usage: "Maximum number of documents", Value: 20},
						},
					},
					{
						Name:      "show",
						Usage:     "Show a document and its chunks",
						ArgsUsage: "ID",
						Action:    e.showDocumentCommand,
					},
					{
						Name:      "delete",
						Usage:     "Delete a document and its chunks",
						ArgsUsage: "ID",
						Action:    e.deleteDocumentCommand,
					},
				},
			},
			{
				Name:   "tags",
				Usage:  "List tags",
				Action: e.tagsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show knowledge base statistics",
				Action: e.statsCommand,
			},
			{
				Name:   "history",
				Usage:  "List answered questions, newest first",
				Action: e.historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of exchanges", Value: 20},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every chunk embedding with the configured model",
				Action: e.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for a failing batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: e.showConfigCommand,
					},
					{
						Name:      "init",
						Usage:     "Write the default configuration to PATH",
						ArgsUsage: "PATH",
						Action:    e.initConfigCommand,
					},
				},
			},
		},
	}
}

// setup loads the configuration, then installs the logger and tracer it describes.
func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = strings.ToLower(c.String("log-level"))
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	e.shutdown, err = telemetry.Init(c.Context, cfg.Tracing,
		telemetry.WithLogger(logger),
		telemetry.WithVersion(version))
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

func (e *env) teardown(c *cli.Context) error {
	if e.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.shutdown(ctx)
}

func (e *env) withKB(c *cli.Context, fn func(ctx context.Context, kb *secondbrain.KnowledgeBase) error) error {
	kb, err := e.open(c.Context, e.cfg)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()
	return fn(c.Context, kb)
}

func (e *env) ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	sourceType, err := core.ParseSourceType(c.String("type"))
	if err != nil {
		return err
	}
	var created time.Time
	if s := c.String("created"); s != "" {
		rng, err := core.ParseDateRange(s, "")
		if err != nil {
			return fmt.Errorf("invalid --created: %w", err)
		}
		created = rng.Start
	}
	if c.NArg() > 1 && c.String("title") != "" {
		return errors.New("--title applies to a single file")
	}

	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		ingest := kb.IngestSync
		if c.Bool("async") {
			ingest = kb.Ingest
		}

		for _, path := range c.Args().Slice() {
			req, err := readRequest(path)
			if err != nil {
				return err
			}
			req.SourceType = sourceType
			req.Author = c.String("author")
			req.Tags = c.StringSlice("tag")
			req.CreatedAt = created
			if title := c.String("title"); title != "" {
				req.Title = title
			}

			doc, err := ingest(ctx, req)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			fmt.Fprintf(e.stdout, "Ingested %s as document %d (%s)\n", path, doc.Id, doc.Status)
		}
		kb.Wait()
		return nil
	})
}

func readRequest(path string) (*ingestion.Request, error) {
	if path == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return &ingestion.Request{Title: "stdin", Content: string(content)}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(path)
	return &ingestion.Request{
		SourcePath: abs,
		Title:      strings.TrimSuffix(base, filepath.Ext(base)),
		Content:    string(content),
	}, nil
}

func parseFilters(c *cli.Context) (*core.Filters, error) {
	return search.ParseFilters(c.StringSlice("type"), c.String("from"), c.String("to"), c.StringSlice("tag"))
}

func (e *env) searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	filters, err := parseFilters(c)
	if err != nil {
		return err
	}
	if mode := c.String("mode"); mode != "" {
		e.cfg.Search.Mode = mode
	}
	if mode := c.String("temporal-mode"); mode != "" {
		e.cfg.Search.TemporalMode = mode
	}

	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		var monitor search.SearchMonitor
		if c.Bool("explain") {
			monitor = newExplainMonitor(e.stderr)
		}
		resp, err := kb.SearchWithMonitor(ctx, query, filters, c.Int("limit"), monitor)
		if err != nil {
			return err
		}
		printResults(e.stdout, resp, c.Bool("explain"))
		return nil
	})
}

func printResults(w io.Writer, resp *search.Response, diagnostics bool) {
	if resp.Degraded != nil {
		fmt.Fprintf(w, "Warning: %s search unavailable (%s)\n", resp.Degraded.Signal, resp.Degraded.Reason)
	}
	if resp.DateRange != nil {
		fmt.Fprintf(w, "Date range: %s to %s\n", resp.DateRange.Start.Format(time.DateOnly), resp.DateRange.End.Format(time.DateOnly))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}

	fmt.Fprintf(w, "Found %d results in %v\n", len(resp.Results), resp.Timings.Total.Round(time.Millisecond))
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. [%.3f] %s (%s, %s, document %d)\n", i+1, r.Score, r.Title, r.SourceType,
			r.CreatedAt.Format(time.DateOnly), r.DocumentId)
		fmt.Fprintf(w, "   %s\n", ai.Truncate(strings.Join(strings.Fields(r.Content), " "), 160))
		if diagnostics {
			d := r.Diagnostics
			fmt.Fprintf(w, "   %s rrf=%.5f semantic=#%d (%.3f) lexical=#%d (%.3f, %d/%d tokens, phrase=%t) temporal=%.2f\n",
				r.SearchType, r.FusionScore, d.SemanticRank, d.SemanticSimilarity, d.LexicalRank, d.LexicalScore,
				d.MatchedTokens, d.MeaningfulTokens, d.ExactPhrase, d.TemporalFactor)
		}
	}
}

func (e *env) askCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	filters, err := parseFilters(c)
	if err != nil {
		return err
	}
	req := &assistant.Request{
		Query:          query,
		ConversationID: c.String("conversation"),
		Filters:        filters,
	}

	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		var answer *assistant.Answer
		if c.Bool("stream") {
			answer, err = kb.AskStream(ctx, req, func(chunk string) error {
				_, err := io.WriteString(e.stdout, chunk)
				return err
			})
			fmt.Fprintln(e.stdout)
		} else {
			answer, err = kb.Ask(ctx, req)
			if err == nil {
				fmt.Fprintln(e.stdout, answer.Response)
			}
		}
		if err != nil {
			return err
		}

		if answer.Degraded != nil {
			fmt.Fprintf(e.stdout, "\nWarning: %s search unavailable (%s)\n", answer.Degraded.Signal, answer.Degraded.Reason)
		}
		if len(answer.Sources) > 0 {
			fmt.Fprintln(e.stdout, "\nSources:")
			for i, s := range answer.Sources {
				fmt.Fprintf(e.stdout, "%d. %s (document %d, %.3f)\n", i+1, s.Title, s.DocumentId, s.Score)
			}
		}
		if answer.ConversationID != "" {
			fmt.Fprintf(e.stderr, "Conversation: %s\n", answer.ConversationID)
		}
		return nil
	})
}

func documentID(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, errors.New("exactly one document ID is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document ID %q", c.Args().First())
	}
	return core.ID(id), nil
}

func (e *env) listDocumentsCommand(c *cli.Context) error {
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		docs, err := kb.Documents(ctx, c.Int("offset"), c.Int("limit"))
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(e.stdout, "No documents")
			return nil
		}
		for _, doc := range docs {
			fmt.Fprintf(e.stdout, "%d\t%s\t%s\t%s\t%s\n", doc.Id, doc.CreatedAt.Format(time.DateOnly),
				doc.SourceType, doc.Status, doc.Title)
		}
		return nil
	})
}

func (e *env) showDocumentCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		doc, chunks, err := kb.Document(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Document %d: %s\n", doc.Id, doc.Title)
		fmt.Fprintf(e.stdout, "Type: %s\nStatus: %s\nCreated: %s\nSize: %d bytes\n",
			doc.SourceType, doc.Status, doc.CreatedAt.Format(time.RFC3339), doc.Size)
		if doc.Author != "" {
			fmt.Fprintf(e.stdout, "Author: %s\n", doc.Author)
		}
		if doc.SourcePath != "" {
			fmt.Fprintf(e.stdout, "Source: %s\n", doc.SourcePath)
		}
		if msg := doc.Metadata[core.MetadataError]; msg != "" {
			fmt.Fprintf(e.stdout, "Error: %s\n", msg)
		}
		fmt.Fprintf(e.stdout, "Chunks: %d\n", len(chunks))
		for _, chunk := range chunks {
			fmt.Fprintf(e.stdout, "  [%d] %s\n", chunk.Index, ai.Truncate(strings.Join(strings.Fields(chunk.Content), " "), 100))
		}
		return nil
	})
}

func (e *env) deleteDocumentCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		if err := kb.DeleteDocument(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Deleted document %d\n", id)
		return nil
	})
}

func (e *env) tagsCommand(c *cli.Context) error {
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		tags, err := kb.Tags(ctx)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			origin := "user"
			if tag.AutoGenerated {
				origin = "auto"
			}
			fmt.Fprintf(e.stdout, "%s\t%s\n", tag.Name, origin)
		}
		return nil
	})
}

func (e *env) statsCommand(c *cli.Context) error {
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		stats, err := kb.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Documents: %d (%d bytes)\n", stats.Documents, stats.TotalBytes)
		fmt.Fprintf(e.stdout, "Chunks: %d (%d indexed)\n", stats.Chunks, stats.IndexedChunks)
		fmt.Fprintf(e.stdout, "Queries: %d (average %v)\n", stats.Queries, stats.AvgResponseTime.Round(time.Millisecond))
		fmt.Fprintf(e.stdout, "Disk: %d bytes\n", stats.DiskSize)
		if len(stats.PopularTags) > 0 {
			fmt.Fprintln(e.stdout, "Popular tags:")
			for _, tc := range stats.PopularTags {
				fmt.Fprintf(e.stdout, "  %s (%d)\n", tc.Tag.Name, tc.Documents)
			}
		}
		return nil
	})
}

func (e *env) historyCommand(c *cli.Context) error {
	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		exchanges, err := kb.History(ctx, 0, c.Int("limit"))
		if err != nil {
			return err
		}
		for _, ex := range exchanges {
			fmt.Fprintf(e.stdout, "%s\t%s\t%s\n", ex.CreatedAt.Local().Format(time.DateTime), ex.ConversationId, ex.Query)
		}
		return nil
	})
}

func (e *env) reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		MaxRetryDelay:  reembed.DefaultConfig().MaxRetryDelay,
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	fmt.Fprintf(e.stderr, "Data directory: %s\n", e.cfg.DataDir)
	fmt.Fprintf(e.stderr, "Embedding host: %s\n", e.cfg.AI.EmbeddingHost)
	fmt.Fprintf(e.stderr, "Embedding model: %s\n", e.cfg.AI.EmbeddingModel)
	fmt.Fprintln(e.stderr)

	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		if _, err := kb.Reembed(ctx, reembedConfig, e.stderr); err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		return nil
	})
}

func (e *env) showConfigCommand(c *cli.Context) error {
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(data)
	return err
}

func (e *env) initConfigCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("a config path is required")
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Wrote %s\n", path)
	return nil
}

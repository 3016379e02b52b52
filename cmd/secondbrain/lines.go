package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/secondbrain"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/ingestion"
	"github.com/urfave/cli/v2"
)

// linesFromFile returns an iterator over the non-blank lines of a file and a
// func reporting any read error once iteration ends.
func linesFromFile(filename string) (iter.Seq[string], func() error, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}

	var scanErr error
	seq := func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
		scanErr = scanner.Err()
	}
	return seq, func() error { return scanErr }, nil
}

// importLines ingests each line as its own document on the worker pool.
// Titles are the file's base title and the line number.
func importLines(ctx context.Context, kb *secondbrain.KnowledgeBase, source iter.Seq[string], template ingestion.Request) (int, error) {
	n := 0
	for line := range source {
		n++
		req := template
		req.Title = fmt.Sprintf("%s #%d", template.Title, n)
		req.Content = line
		req.Metadata = map[string]string{"line": fmt.Sprint(n)}
		if _, err := kb.Ingest(ctx, &req); err != nil {
			return n - 1, fmt.Errorf("line %d: %w", n, err)
		}
	}
	kb.Wait()
	return n, nil
}

func (e *env) importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one file is required")
	}
	sourceType, err := core.ParseSourceType(c.String("type"))
	if err != nil {
		return err
	}
	path := c.Args().First()
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(path)

	return e.withKB(c, func(ctx context.Context, kb *secondbrain.KnowledgeBase) error {
		source, scanErr, err := linesFromFile(path)
		if err != nil {
			return err
		}
		n, err := importLines(ctx, kb, source, ingestion.Request{
			SourceType: sourceType,
			SourcePath: abs,
			Title:      strings.TrimSuffix(base, filepath.Ext(base)),
			Tags:       c.StringSlice("tag"),
		})
		if err != nil {
			return err
		}
		if err := scanErr(); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Imported %d documents from %s\n", n, path)
		return nil
	})
}

package lifecycle

import (
	"context"
	"io/fs"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
)

// SweepOptions configures a sweep of the diagram folder.
type SweepOptions struct {
	// Patterns select candidate files by base name. Empty means every
	// diagram extension.
	Patterns []string

	// DryRun reports what would be trashed without moving anything.
	DryRun bool
}

// SweepResult lists what a sweep found.
type SweepResult struct {
	Scanned int
	Trashed []string // Paths (before trashing) of empty, unreferenced diagrams
	Skipped []string // Empty diagrams kept because a document embeds them
}

// Sweep trashes diagrams in the configured folder that are empty by
// IsEmptyDiagram and that no markdown document in the vault mentions.
// These are left behind when a session ends without a clean close.
func (p *Policy) Sweep(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	matchers, err := compilePatterns(opts.Patterns)
	if err != nil {
		return SweepResult{}, err
	}

	var candidates []string
	var documents []string
	err = p.vault.Walk("", func(rel string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case strings.EqualFold(path.Ext(rel), ".md"):
			documents = append(documents, rel)
		case inFolder(rel, p.config.Folder) && matchAny(matchers, path.Base(rel)):
			candidates = append(candidates, rel)
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	contents := make([]string, 0, len(documents))
	for _, doc := range documents {
		data, err := p.vault.ReadFile(doc)
		if err != nil {
			p.logger.Debug("sweep skipping unreadable document", "document", doc, "error", err)
			continue
		}
		contents = append(contents, string(data))
	}

	type verdict struct {
		path       string
		empty      bool
		referenced bool
	}
	workers := pool.NewWithResults[verdict]().
		WithContext(ctx).
		WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, candidate := range candidates {
		workers.Go(func(ctx context.Context) (verdict, error) {
			v := verdict{path: candidate}
			data, err := p.vault.ReadFile(candidate)
			if err != nil {
				p.logger.Debug("sweep skipping unreadable diagram", "target", candidate, "error", err)
				return v, nil
			}
			if !codec.IsEmptyDiagram(data) {
				return v, nil
			}
			v.empty = true
			for _, content := range contents {
				if Mentions(content, candidate) {
					v.referenced = true
					break
				}
			}
			return v, ctx.Err()
		})
	}
	verdicts, err := workers.Wait()
	if err != nil {
		return SweepResult{}, err
	}
	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].path < verdicts[j].path })

	result := SweepResult{Scanned: len(candidates)}
	for _, v := range verdicts {
		if !v.empty {
			continue
		}
		if v.referenced {
			result.Skipped = append(result.Skipped, v.path)
			continue
		}
		if opts.DryRun {
			result.Trashed = append(result.Trashed, v.path)
			continue
		}
		trashPath, err := p.vault.Trash(v.path)
		if err != nil {
			p.logger.Warn("sweep failed to trash diagram", "target", v.path, "error", err)
			continue
		}
		result.Trashed = append(result.Trashed, v.path)
		p.bus.Publish(event.NewDiagramDiscardedEvent("", v.path, trashPath, 0))
	}

	p.logger.Info("sweep finished",
		"scanned", result.Scanned,
		"trashed", len(result.Trashed),
		"skipped", len(result.Skipped),
		"dry_run", opts.DryRun)
	return result, nil
}

// DefaultPatterns match every diagram extension.
func DefaultPatterns() []string {
	return []string{"*" + codec.ExtSVG, "*" + codec.ExtXML, "*" + codec.ExtOpaque}
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewValidationError("invalid pattern").
				WithField("patterns").
				WithValue(pattern).
				WithCause(err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func matchAny(matchers []glob.Glob, name string) bool {
	for _, g := range matchers {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func inFolder(rel, folder string) bool {
	folder = strings.Trim(folder, "/")
	if folder == "" || folder == "." {
		return true
	}
	return strings.HasPrefix(rel, folder+"/")
}

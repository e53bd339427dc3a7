package wiki

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avern/wikiscribe/internal/config"
)

// ErrAllFailed indicates every file in a publish batch failed.
var ErrAllFailed = errors.New("all pages failed to publish")

// PageStore is the slice of the wiki client the publisher needs.
type PageStore interface {
	CreatePage(ctx context.Context, p Page) error
	UpdatePage(ctx context.Context, id int, p Page) error
	FetchPageID(ctx context.Context, path, locale string) (int, error)
}

// LanguageDetector resolves a page locale from its content.
type LanguageDetector interface {
	DetectOr(text, fallback string) string
}

// Publisher pushes generated Markdown files to the wiki, one page per file.
type Publisher struct {
	store    PageStore
	detector LanguageDetector

	dirs     config.Dirs
	basePath string
	locale   string
	delay    time.Duration

	log *logrus.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublishDelay sets the pause between page requests.
func WithPublishDelay(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.delay = d
	}
}

// NewPublisher wires the wiki publishing stage.
// detector may be nil; the configured locale is then used for every page.
func NewPublisher(store PageStore, detector LanguageDetector, cfg config.Config, log *logrus.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:    store,
		detector: detector,
		dirs:     cfg.Dirs,
		basePath: strings.Trim(cfg.WikiBasePath, "/"),
		locale:   cfg.WikiLocale,
		delay:    cfg.CallDelay,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result tallies a publish batch.
type Result struct {
	Successful int
	Failed     int
	Errors     []string
}

// Run publishes every Markdown file in markdown/. Per-file failures are
// tallied without aborting the batch; the batch itself fails only when
// zero files succeeded and at least one failed.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	entries, err := os.ReadDir(p.dirs.Markdown)
	if err != nil {
		return Result{}, fmt.Errorf("cannot read markdown directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var res Result
	for i, name := range names {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if i > 0 && p.delay > 0 {
			timer := time.NewTimer(p.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return res, ctx.Err()
			case <-timer.C:
			}
		}

		if err := p.publishFile(ctx, name); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))
			p.log.WithField("file", name).Errorf("publish failed: %v", err)
			continue
		}
		res.Successful++
	}

	if res.Successful == 0 && res.Failed > 0 {
		return res, fmt.Errorf("%w: %d failures", ErrAllFailed, res.Failed)
	}
	return res, nil
}

// publishFile upserts one Markdown file as a wiki page.
func (p *Publisher) publishFile(ctx context.Context, name string) error {
	data, err := os.ReadFile(filepath.Join(p.dirs.Markdown, name)) // #nosec G304 -- path from our own directory scan
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	page := p.buildPage(name, string(data))
	return p.upsert(ctx, page)
}

// buildPage assembles the page payload from a document's front-matter,
// body, and file name.
func (p *Publisher) buildPage(name, content string) Page {
	meta, body := ParseFrontMatter(content)
	title := TitleFor(meta, body, name)

	locale := p.locale
	if p.detector != nil {
		locale = p.detector.DetectOr(body, p.locale)
	}

	path := Slugify(title)
	if p.basePath != "" {
		path = p.basePath + "/" + path
	}

	return Page{
		Title:       title,
		Path:        path,
		Content:     body,
		Description: meta.Description,
		Tags:        meta.Tags,
		Locale:      locale,
		IsPublished: true,
		IsPrivate:   false,
	}
}

// upsert attempts a create and, on path conflict, fetches the existing page
// id and updates it instead.
func (p *Publisher) upsert(ctx context.Context, page Page) error {
	err := p.store.CreatePage(ctx, page)
	if err == nil {
		p.log.WithField("path", page.Path).Info("page created")
		return nil
	}
	if !errors.Is(err, ErrPageExists) {
		return err
	}

	id, err := p.store.FetchPageID(ctx, page.Path, page.Locale)
	if err != nil {
		return fmt.Errorf("conflict on %s but lookup failed: %w", page.Path, err)
	}
	if err := p.store.UpdatePage(ctx, id, page); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"path": page.Path, "id": id}).Info("page updated")
	return nil
}

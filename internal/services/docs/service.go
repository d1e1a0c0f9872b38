package docs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Service serves the markdown reference pages shipped with the application
type Service struct {
	dir        string
	extensions []string
	md         goldmark.Markdown
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.DocsService = (*Service)(nil)

// NewService creates a new docs service
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	dir := config.Docs.Dir
	if dir == "" {
		dir = "./docs"
	}
	extensions := config.Docs.Extensions
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)

	return &Service{
		dir:        dir,
		extensions: extensions,
		md:         md,
		logger:     logger,
	}
}

// ListPages returns all available pages, sorted by name
func (s *Service) ListPages() ([]*interfaces.DocPage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*interfaces.DocPage{}, nil
		}
		return nil, fmt.Errorf("failed to read docs directory: %w", err)
	}

	pages := make([]*interfaces.DocPage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.hasDocExtension(entry.Name()) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		page, err := s.renderPage(name, filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable doc page")
			continue
		}
		pages = append(pages, page)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages, nil
}

// GetPage returns one rendered page by its name
func (s *Service) GetPage(name string) (*interfaces.DocPage, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid page name: %s", name)
	}

	for _, ext := range s.extensions {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return s.renderPage(name, path)
		}
	}

	return nil, fmt.Errorf("page not found: %s", name)
}

func (s *Service) hasDocExtension(filename string) bool {
	ext := filepath.Ext(filename)
	for _, allowed := range s.extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (s *Service) renderPage(name, path string) (*interfaces.DocPage, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := s.md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("failed to render page %s: %w", name, err)
	}

	rendered := buf.String()
	return &interfaces.DocPage{
		Name:  name,
		Title: pageTitle(rendered, name),
		HTML:  rendered,
	}, nil
}

// pageTitle pulls the first H1 heading from the rendered HTML, falling
// back to the file stem. Parsing the output rather than the markdown
// source means setext headings and inline formatting resolve correctly.
func pageTitle(rendered, fallback string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return fallback
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return fallback
}

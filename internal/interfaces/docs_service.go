package interfaces

// DocPage is one rendered documentation page.
type DocPage struct {
	Name  string `json:"name"`  // File stem, e.g. "log-format"
	Title string `json:"title"` // First heading, or the name when absent
	HTML  string `json:"html"`  // Rendered markdown body
}

// DocsService serves the markdown reference pages bundled with the
// application (log format description, usage notes).
type DocsService interface {
	// ListPages returns all available pages, sorted by name.
	ListPages() ([]*DocPage, error)

	// GetPage returns one rendered page by its name.
	GetPage(name string) (*DocPage, error)
}

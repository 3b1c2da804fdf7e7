package document

// Source is a read-only view of a paginated document. Page indices are 0-based.
type Source interface {
	PageCount() int
	PageSize(index int) (Size, error)
	Tokens(index int) ([]Token, error)
}

// Fill is a destructive background fill over a page region
type Fill struct {
	Rect  Rect  `json:"rect"`
	Color Color `json:"color"`
}

// Backend is the document-editing collaborator used by the reconstructor.
//
// Fills staged on a page only become visible to CopyPage after Commit, which
// persists them and reopens the page. Implementations are not safe for
// concurrent use; one backend serves one document.
type Backend interface {
	Source

	// Commit persists fills for the source page at index and makes them
	// visible to subsequent reads and copies.
	Commit(index int, fills []Fill) error

	// CopyPage appends the committed source page to the output document and
	// returns its output index.
	CopyPage(index int) (int, error)

	// InsertText draws a text box on an output page
	InsertText(outIndex int, box TextBox) error

	// Save writes the assembled output document
	Save(path string) error

	// Close releases temporary resources
	Close() error
}

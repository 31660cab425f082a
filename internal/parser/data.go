package parser

// ParseResult holds the fields extracted from a fetched HTML document for
// indexing. Unlike mdconvert.ConversionResult, there is no markdown body:
// textContent is flattened, whitespace-collapsed visible text.
type ParseResult struct {
	title           string
	metaDescription string
	textContent     string
	links           []string
}

func NewParseResult(
	title string,
	metaDescription string,
	textContent string,
	links []string,
) ParseResult {
	return ParseResult{
		title:           title,
		metaDescription: metaDescription,
		textContent:     textContent,
		links:           links,
	}
}

func (p *ParseResult) GetTitle() string {
	return p.title
}

func (p *ParseResult) GetMetaDescription() string {
	return p.metaDescription
}

func (p *ParseResult) GetTextContent() string {
	return p.textContent
}

func (p *ParseResult) GetLinks() []string {
	return p.links
}

package parser

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"golang.org/x/net/html"
)

/*
Responsibilities
- Parse HTML into title, meta description, visible text, outbound links
- Resolve discovered links against the page's own URL
- Tolerate malformed HTML; never panic

This stage feeds the search index, not Markdown rendering: the output
shape is flat fields, not a document tree.
*/

var skippedLinkSchemes = map[string]bool{
	"javascript": true,
	"mailto":     true,
	"tel":        true,
}

// Parser extracts title/description/text/links out of a fetched HTML page.
type Parser struct {
	metadataSink  metadata.MetadataSink
	contentFinder extractor.Extractor
}

// NewParser builds a Parser. contentFinder locates the content root used for
// textContent; passing the same extractor.DomExtractor instance used by the
// Markdown pipeline lets both stages agree on what counts as "content".
func NewParser(metadataSink metadata.MetadataSink, contentFinder extractor.Extractor) Parser {
	return Parser{
		metadataSink:  metadataSink,
		contentFinder: contentFinder,
	}
}

// Parse is the exported entry point. sourceUrl is used to resolve relative
// hrefs found in the document.
func (p *Parser) Parse(sourceUrl url.URL, htmlByte []byte) (ParseResult, failure.ClassifiedError) {
	result, err := parse(sourceUrl, htmlByte, p.contentFinder)
	if err != nil {
		p.metadataSink.RecordError(
			time.Now(),
			"parser",
			"Parser.Parse",
			mapParseErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceUrl.String()),
			},
		)
		return ParseResult{}, err
	}
	return result, nil
}

// parse is a stateless function so it can be exercised without a sink.
func parse(sourceUrl url.URL, htmlByte []byte, contentFinder extractor.Extractor) (ParseResult, *ParseError) {
	doc, parseErr := html.Parse(bytes.NewReader(htmlByte))
	if parseErr != nil {
		return ParseResult{}, &ParseError{
			Message:   "failed to parse HTML: " + parseErr.Error(),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	docQuery := goquery.NewDocumentFromNode(doc)

	title := collapseWhitespace(docQuery.Find("title").First().Text())

	metaDescription := ""
	if content, exists := docQuery.Find(`meta[name="description"]`).First().Attr("content"); exists {
		metaDescription = collapseWhitespace(content)
	}

	textContent := extractTextContent(doc, sourceUrl, contentFinder)
	links := extractLinks(docQuery, sourceUrl)

	return NewParseResult(title, metaDescription, textContent, links), nil
}

// extractTextContent finds the content root via contentFinder (falling back
// to the whole document when extraction can't find one - a malformed or
// chrome-only page still yields whatever text is present) and flattens it
// into whitespace-collapsed visible text with script/style/noscript/comment
// nodes removed.
func extractTextContent(doc *html.Node, sourceUrl url.URL, contentFinder extractor.Extractor) string {
	root := doc
	if contentFinder != nil {
		result, err := contentFinder.Extract(sourceUrl, renderNode(doc))
		if err == nil && result.ContentNode != nil {
			root = result.ContentNode
		}
	}

	stripNoiseNodes(root)
	text := goquery.NewDocumentFromNode(root).Text()
	return collapseWhitespace(text)
}

// renderNode serializes a node back to bytes so it can be re-fed through
// contentFinder.Extract, which takes raw HTML rather than a *html.Node.
func renderNode(node *html.Node) []byte {
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return nil
	}
	return buf.Bytes()
}

// stripNoiseNodes removes <script>, <style>, <noscript>, and comment nodes
// from root in place, bottom-up so nested noise is fully cleared.
func stripNoiseNodes(root *html.Node) {
	if root == nil {
		return
	}

	var children []*html.Node
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	for _, child := range children {
		stripNoiseNodes(child)
	}

	if shouldStripNode(root) && root.Parent != nil {
		root.Parent.RemoveChild(root)
	}
}

func shouldStripNode(node *html.Node) bool {
	if node.Type == html.CommentNode {
		return true
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "script", "style", "noscript":
			return true
		}
	}
	return false
}

// extractLinks walks the page for <a href> targets, resolves each against
// baseUrl, skips non-navigable schemes and fragment-only/empty hrefs, and
// deduplicates within the page.
func extractLinks(docQuery *goquery.Document, baseUrl url.URL) []string {
	seen := make(map[string]bool)
	var links []string

	docQuery.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		if skippedLinkSchemes[strings.ToLower(parsed.Scheme)] {
			return
		}

		resolved := baseUrl.ResolveReference(parsed).String()
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

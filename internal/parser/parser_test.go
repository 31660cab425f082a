package parser_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMetadataSink is a test spy that captures recorded errors.
type mockMetadataSink struct {
	metadata.NoopSink
	errors []recordedError
}

type recordedError struct {
	PackageName string
	Cause       metadata.ErrorCause
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	errorString string,
	attrs []metadata.Attribute,
) {
	m.errors = append(m.errors, recordedError{PackageName: packageName, Cause: cause})
}

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func setupParser() (*parser.Parser, *mockMetadataSink) {
	sink := &mockMetadataSink{}
	ext := extractor.NewDomExtractor(sink)
	p := parser.NewParser(sink, &ext)
	return &p, sink
}

func TestParse_TitleAndDescription(t *testing.T) {
	p, _ := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/docs")
	htmlBytes := []byte(`<html><head>
		<title>  Getting   Started  </title>
		<meta name="description" content="  A guide to get started.  ">
	</head><body><main><p>Some meaningful paragraph content goes here for testing.</p></main></body></html>`)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err)
	assert.Equal(t, "Getting Started", result.GetTitle())
	assert.Equal(t, "A guide to get started.", result.GetMetaDescription())
}

func TestParse_MissingDescriptionIsEmpty(t *testing.T) {
	p, _ := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/docs")
	htmlBytes := []byte(`<html><head><title>No Desc</title></head><body><main><p>Content block with enough text to be meaningful.</p></main></body></html>`)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err)
	assert.Empty(t, result.GetMetaDescription())
}

func TestParse_TextContentStripsScriptStyleAndComments(t *testing.T) {
	p, _ := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/docs")
	htmlBytes := []byte(`<html><body><main>
		<p>Visible paragraph text that should remain in the output.</p>
		<script>var shouldNotAppear = true;</script>
		<style>.hidden { display: none; }</style>
		<noscript>Enable JavaScript please</noscript>
		<!-- an internal comment that must not leak into textContent -->
	</main></body></html>`)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err)
	assert.Contains(t, result.GetTextContent(), "Visible paragraph text")
	assert.NotContains(t, result.GetTextContent(), "shouldNotAppear")
	assert.NotContains(t, result.GetTextContent(), "display: none")
	assert.NotContains(t, result.GetTextContent(), "Enable JavaScript")
	assert.NotContains(t, result.GetTextContent(), "internal comment")
}

func TestParse_LinksResolvedAgainstBaseAndDeduplicated(t *testing.T) {
	p, _ := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/docs/guide")
	htmlBytes := []byte(`<html><body><main>
		<p>Some content to satisfy the extractor's meaningful-node threshold here.</p>
		<a href="/docs/other">Other</a>
		<a href="/docs/other">Other again</a>
		<a href="https://elsewhere.example.com/page">Elsewhere</a>
		<a href="#section-two">Anchor only</a>
		<a href="">Empty</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:hi@example.com">Mail</a>
	</main></body></html>`)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://example.com/docs/other",
		"https://elsewhere.example.com/page",
	}, result.GetLinks())
}

func TestParse_MalformedHTMLDoesNotError(t *testing.T) {
	p, _ := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/broken")
	htmlBytes := []byte(`<html><body><main><p>Unclosed paragraph <div>stray div`)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err, "parser must tolerate malformed HTML")
	assert.Contains(t, result.GetTextContent(), "Unclosed paragraph")
}

func TestParse_EmptyInputYieldsEmptyResultNotError(t *testing.T) {
	p, sink := setupParser()
	sourceURL := mustParseURL(t, "https://example.com/feed.xml")
	htmlBytes := []byte(``)

	result, err := p.Parse(sourceURL, htmlBytes)

	require.NoError(t, err, "golang.org/x/net/html.Parse treats empty input as an empty document, not an error")
	assert.Empty(t, result.GetTitle())
	assert.Empty(t, result.GetLinks())
	assert.Len(t, sink.errors, 0)
}

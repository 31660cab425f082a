package mdconvert_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// convertTestCase represents a test case for the Convert method.
type convertTestCase struct {
	name    string
	fixture string
	desc    string
}

// TestConvert_TableDriven runs all conversion tests using a table-driven approach.
func TestConvert_TableDriven(t *testing.T) {
	tests := []convertTestCase{
		{
			name:    "HeadingSingleH1Clean",
			fixture: "mdconvert_heading_single_h1_clean",
			desc:    "M2 (order), M4 (mapping), M7 (no validation)",
		},
		{
			name:    "HeadingMultipleH1Passthrough",
			fixture: "mdconvert_heading_multiple_h1_passthrough",
			desc:    "M7 (no heading repair), M10 (must not reject)",
		},
		{
			name:    "HeadingSkippedLevelsPreserved",
			fixture: "mdconvert_heading_skipped_levels_preserved",
			desc:    "M7, M8",
		},
		{
			name:    "NoInferBoldHeading",
			fixture: "mdconvert_no_infer_bold_heading",
			desc:    "M1 (non-inference)",
		},
		{
			name:    "NoCSSSemantics",
			fixture: "mdconvert_no_css_semantics",
			desc:    "CSS styling is ignored for semantics",
		},
		{
			name:    "DOMOrderPreserved",
			fixture: "mdconvert_dom_order_preserved",
			desc:    "M2",
		},
		{
			name:    "InlineCodeVerbatim",
			fixture: "mdconvert_inline_code_verbatim",
			desc:    "M5",
		},
		{
			name:    "CodeblockLanguagePreserved",
			fixture: "mdconvert_codeblock_language_preserved",
			desc:    "M5",
		},
		{
			name:    "CodeblockNoLanguageGuess",
			fixture: "mdconvert_codeblock_no_language_guess",
			desc:    "M5",
		},
		{
			name:    "TableBasic",
			fixture: "mdconvert_table_basic",
			desc:    "M6",
		},
		{
			name:    "TableIrregularStructure",
			fixture: "mdconvert_table_irregular_structure",
			desc:    "M6",
		},
		{
			name:    "LinkRelativePassthrough",
			fixture: "mdconvert_link_relative_passthrough",
			desc:    "M9",
		},
		{
			name:    "ImagePassthrough",
			fixture: "mdconvert_image_passthrough",
			desc:    "M9",
		},
		{
			name:    "UnknownTagTextOnly",
			fixture: "mdconvert_unknown_tag_text_only",
			desc:    "M4",
		},
		{
			name:    "WhitespaceDeterministic",
			fixture: "mdconvert_whitespace_deterministic",
			desc:    "M3",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			htmlContent := loadHtmlFixture(t, tc.fixture+".html")
			doc := createSanitizedDoc(t, string(htmlContent))
			rule := createTestRule()

			result, err := rule.Convert(doc)
			require.NoError(t, err)

			expected := loadExpectedMarkdown(t, tc.fixture)
			assert.Equal(t, string(expected), string(result.GetMarkdownContent()), "Description: %s", tc.desc)
		})
	}
}

// TestConvert_Determinism verifies that identical input produces identical output.
// Covers: M3
func TestConvert_Determinism(t *testing.T) {
	htmlContent := loadHtmlFixture(t, "mdconvert_heading_single_h1_clean.html")
	rule := createTestRule()

	// Convert multiple times
	doc1 := createSanitizedDoc(t, string(htmlContent))
	result1, err1 := rule.Convert(doc1)
	require.NoError(t, err1)

	doc2 := createSanitizedDoc(t, string(htmlContent))
	result2, err2 := rule.Convert(doc2)
	require.NoError(t, err2)

	// Results should be byte-for-byte identical
	assert.Equal(t, result1.GetMarkdownContent(), result2.GetMarkdownContent())
}

// TestConvert_ExtractsLinkRefs verifies that LinkRefs are properly extracted from links.
func TestConvert_ExtractsLinkRefs(t *testing.T) {
	htmlContent := loadHtmlFixture(t, "mdconvert_link_relative_passthrough.html")
	doc := createSanitizedDoc(t, string(htmlContent))
	rule := createTestRule()

	result, err := rule.Convert(doc)
	require.NoError(t, err)

	// Should have exactly 1 LinkRef
	linkRefs := result.GetLinkRefs()
	require.Len(t, linkRefs, 1)

	// Verify the LinkRef properties
	linkRef := linkRefs[0]
	assert.Equal(t, "../api", linkRef.GetRaw())
	assert.Equal(t, mdconvert.KindNavigation, linkRef.GetKind())
}

// TestConvert_ExtractsImageRefs verifies that LinkRefs are properly extracted from images.
func TestConvert_ExtractsImageRefs(t *testing.T) {
	htmlContent := loadHtmlFixture(t, "mdconvert_image_passthrough.html")
	doc := createSanitizedDoc(t, string(htmlContent))
	rule := createTestRule()

	result, err := rule.Convert(doc)
	require.NoError(t, err)

	// Should have exactly 1 LinkRef
	linkRefs := result.GetLinkRefs()
	require.Len(t, linkRefs, 1)

	// Verify the LinkRef properties
	linkRef := linkRefs[0]
	assert.Equal(t, "/img/logo.png", linkRef.GetRaw())
	assert.Equal(t, mdconvert.KindImage, linkRef.GetKind())
}

// TestConvert_LinkRefCombinations verifies LinkRef extraction from the combinations fixture.
// This fixture contains multiple link types: navigation, anchor, and image.
func TestConvert_LinkRefCombinations(t *testing.T) {
	htmlContent := loadHtmlFixture(t, "mdconvert_linkref_combinations.html")
	doc := createSanitizedDoc(t, string(htmlContent))
	rule := createTestRule()

	result, err := rule.Convert(doc)
	require.NoError(t, err)

	// Should have exactly 5 LinkRefs in document order:
	// 1. ../guide/getting-started.html (navigation link)
	// 2. #installation (anchor link)
	// 3. https://example.com (navigation link - external decision deferred)
	// 4. images/architecture.png (image)
	// 5. ../api/reference.html (navigation link)
	linkRefs := result.GetLinkRefs()
	require.Len(t, linkRefs, 5, "Expected 5 LinkRefs from the combinations fixture")

	// Verify each LinkRef
	expectedLinkRefs := []struct {
		raw  string
		kind mdconvert.LinkKind
	}{
		{"../guide/getting-started.html", mdconvert.KindNavigation},
		{"#installation", mdconvert.KindAnchor},
		{"https://example.com", mdconvert.KindNavigation},
		{"images/architecture.png", mdconvert.KindImage},
		{"../api/reference.html", mdconvert.KindNavigation},
	}

	for i, expected := range expectedLinkRefs {
		actual := linkRefs[i]
		assert.Equal(t, expected.raw, actual.GetRaw(), "LinkRef %d raw mismatch", i+1)
		assert.Equal(t, expected.kind, actual.GetKind(), "LinkRef %d kind mismatch", i+1)
	}
}

// TestConvert_LinkRefCombinations_MarkdownContent verifies the markdown output
// for the combinations fixture.
func TestConvert_LinkRefCombinations_MarkdownContent(t *testing.T) {
	htmlContent := loadHtmlFixture(t, "mdconvert_linkref_combinations.html")
	doc := createSanitizedDoc(t, string(htmlContent))
	rule := createTestRule()

	result, err := rule.Convert(doc)
	require.NoError(t, err)

	expected := loadExpectedMarkdown(t, "mdconvert_linkref_combinations")
	assert.Equal(t, string(expected), string(result.GetMarkdownContent()))
}

// mockMetadataSink is a test helper that captures recorded errors
type mockMetadataSink struct {
	errors []recordedError
}

type recordedError struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	errorString string,
	attrs []metadata.Attribute,
) {
	m.errors = append(m.errors, recordedError{
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     errorString,
	})
}

func (m *mockMetadataSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
}

func (m *mockMetadataSink) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
}

// TestConvert_NoErrorMetadataForValidConversion verifies that a conversion that
// succeeds records nothing on the metadata sink.
func TestConvert_NoErrorMetadataForValidConversion(t *testing.T) {
	// Create a mock sink to capture errors
	mockSink := &mockMetadataSink{}
	rule := mdconvert.NewRule(mockSink)

	// An empty but well-formed document converts without error
	emptyDoc := createSanitizedDoc(t, "<html><body></body></html>")

	_, err := rule.Convert(emptyDoc)
	require.NoError(t, err)
	assert.Empty(t, mockSink.errors, "No errors should be recorded for valid conversion")
}

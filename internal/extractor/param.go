package extractor

// ExtractParam tunes the heuristic-fallback layer (Layer 3) of content
// isolation: how candidate containers are scored and what counts as
// "meaningful" enough to return.
type ExtractParam struct {
	// BodySpecificityBias controls how readily a child container is
	// preferred over <body> when their scores are close.
	BodySpecificityBias float64
	// LinkDensityThreshold is the link-text/total-text ratio above which a
	// candidate's score is penalized.
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// ContentScoreMultiplier weights the signals calculateContentScore sums.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a candidate node is accepted as content.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// DefaultExtractParam mirrors the constants the extraction heuristics used
// before they became configurable.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50.0,
			Paragraphs:           5.0,
			Headings:             10.0,
			CodeBlocks:           15.0,
			ListItems:            2.0,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}

package httpapi

/*
Request/response DTOs for the §6.1 HTTP API. Validated with
github.com/go-playground/validator/v10, grounded on
ternarybob-quaero/internal/workers/processing/signal_analysis_schema.go's
struct-tag validation style (validate:"required,min=...,max=..."), adapted
from a single validator.New() call per request rather than a package-level
schema object.
*/

import "time"

// addSiteRequest is POST /api/crawl/add-site's body. Pointer fields
// distinguish "absent" (apply the documented default) from an explicit
// false/zero value.
type addSiteRequest struct {
	URL                  string `json:"url" validate:"required,url"`
	MaxPages             int    `json:"maxPages" validate:"omitempty,min=1,max=10000"`
	MaxDepth             int    `json:"maxDepth" validate:"omitempty,min=1,max=10"`
	RestrictToSeedDomain *bool  `json:"restrictToSeedDomain"`
	FollowRedirects      *bool  `json:"followRedirects"`
	MaxRedirects         *int   `json:"maxRedirects" validate:"omitempty,min=0,max=20"`
	Force                bool   `json:"force"`
	SpaRenderingEnabled  *bool  `json:"spaRenderingEnabled"`
	IncludeFullContent   bool   `json:"includeFullContent"`
	BrowserlessUrl       string `json:"browserlessUrl"`
}

func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOrDefault(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// addSiteResponseData is the "data" payload of a successful add-site reply.
type addSiteResponseData struct {
	URL                  string `json:"url"`
	SessionId            string `json:"sessionId"`
	Status               string `json:"status"`
	MaxPages             int    `json:"maxPages"`
	MaxDepth             int    `json:"maxDepth"`
	RestrictToSeedDomain bool   `json:"restrictToSeedDomain"`
	FollowRedirects      bool   `json:"followRedirects"`
	MaxRedirects         int    `json:"maxRedirects"`
	Force                bool   `json:"force"`
	SpaRenderingEnabled  bool   `json:"spaRenderingEnabled"`
	IncludeFullContent   bool   `json:"includeFullContent"`
}

// statusStatistics summarizes a session's result set for GET /api/crawl/status.
type statusStatistics struct {
	SuccessfulCrawls int     `json:"successfulCrawls"`
	FailedCrawls     int     `json:"failedCrawls"`
	TotalLinksFound  int     `json:"totalLinksFound"`
	SuccessRate      float64 `json:"successRate"`
}

type statusResponseData struct {
	SessionId    string             `json:"sessionId"`
	IsRunning    bool               `json:"isRunning"`
	TotalCrawled int                `json:"totalCrawled"`
	LastUpdate   time.Time          `json:"lastUpdate"`
	Statistics   statusStatistics   `json:"statistics"`
	Results      interface{}        `json:"results,omitempty"`
}

type spaDetectRequest struct {
	URL       string `json:"url" validate:"required,url"`
	Timeout   int    `json:"timeout,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type spaDetectionData struct {
	IsSpa      bool     `json:"isSpa"`
	Indicators []string `json:"indicators"`
	Confidence int      `json:"confidence"`
}

type spaDetectResponseData struct {
	Success         bool             `json:"success"`
	HTTPStatusCode  int              `json:"httpStatusCode"`
	ContentType     string           `json:"contentType"`
	ContentSize     int              `json:"contentSize"`
	SpaDetection    spaDetectionData `json:"spaDetection"`
	ContentPreview  string           `json:"contentPreview"`
}

type spaRenderRequest struct {
	URL                string `json:"url" validate:"required,url"`
	Timeout            int    `json:"timeout,omitempty"`
	IncludeFullContent bool   `json:"includeFullContent,omitempty"`
}

type spaRenderResponseData struct {
	Content         string `json:"content,omitempty"`
	ContentPreview  string `json:"contentPreview,omitempty"`
	IsSpa           bool   `json:"isSpa"`
	RenderingMethod string `json:"renderingMethod"`
}

type searchResultItem struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type searchMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type searchResponseData struct {
	Meta    searchMeta         `json:"meta"`
	Results []searchResultItem `json:"results"`
}

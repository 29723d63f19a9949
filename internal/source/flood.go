package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/link"
	"github.com/altgovph/procurement-cli/internal/resilience"
)

// DefaultFloodPageSize is the number of documents requested per page.
const DefaultFloodPageSize = 1000

// FloodOptions configures a FloodClient.
type FloodOptions struct {
	BaseURL  string
	Index    string
	APIKey   string
	PageSize int
	// RatePerSecond caps requests per second. Default: 5.
	RatePerSecond float64
	Timeout       time.Duration
	Retry         resilience.RetryConfig
	Breaker       resilience.BreakerConfig
	HTTPClient    *http.Client
}

// FloodClient pages through the flood-control project index of a search
// engine exposing GET /indexes/{index}/documents.
type FloodClient struct {
	opts    FloodOptions
	http    *http.Client
	limiter *AdaptiveLimiter
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
}

// NewFloodClient creates a FloodClient.
func NewFloodClient(opts FloodOptions) (*FloodClient, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("source: flood: base url is required")
	}
	if opts.Index == "" {
		return nil, eris.New("source: flood: index is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultFloodPageSize
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	log := zap.L().With(zap.String("component", "source.flood"))
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = func(from, to resilience.CircuitState) {
			log.Warn("circuit state change", zap.Stringer("from", from), zap.Stringer("to", to))
		}
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetry("source.flood", "page")
	}
	return &FloodClient{
		opts:    opts,
		http:    client,
		limiter: NewAdaptiveLimiter(opts.RatePerSecond, 1),
		breaker: resilience.NewCircuitBreaker(opts.Breaker),
		log:     log,
	}, nil
}

// FloodProject is one document of the flood-control index.
type FloodProject struct {
	GlobalID     string     `json:"GlobalID"`
	Description  string     `json:"ProjectDescription"`
	InfraYear    flexString `json:"InfraYear"`
	Region       string     `json:"Region"`
	Province     string     `json:"Province"`
	Municipality string     `json:"Municipality"`
	Contractor   string     `json:"Contractor"`
	ContractCost flexString `json:"ContractCost"`
	ContractID   string     `json:"ContractID"`
}

// Cost parses ContractCost, tolerating currency signs and thousands
// separators. Unparseable costs are 0.
func (p FloodProject) Cost() float64 {
	return parseAmount(string(p.ContractCost))
}

// Project converts the document for the linker.
func (p FloodProject) Project() link.Project {
	return link.Project{
		ID:         p.GlobalID,
		Cost:       p.Cost(),
		Province:   p.Province,
		Region:     p.Region,
		Contractor: p.Contractor,
	}
}

type documentsPage struct {
	Results []FloodProject `json:"results"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
}

var floodFields = []string{"GlobalID", "ProjectDescription", "InfraYear", "Region", "Province", "Municipality", "Contractor", "ContractCost", "ContractID"}

// Documents fetches every document of the index in page order.
func (c *FloodClient) Documents(ctx context.Context) ([]FloodProject, error) {
	var out []FloodProject
	for offset := 0; ; {
		page, err := resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) (*documentsPage, error) {
			return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*documentsPage, error) {
				return c.fetchPage(ctx, offset)
			})
		})
		if err != nil {
			return out, eris.Wrapf(err, "source: flood: fetch page at offset %d", offset)
		}
		out = append(out, page.Results...)
		offset += len(page.Results)

		c.log.Debug("fetched page", zap.Int("offset", offset), zap.Int("total", page.Total))
		if len(page.Results) < c.opts.PageSize || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}
	c.log.Info("loaded flood-control documents", zap.Int("count", len(out)))
	return out, nil
}

// Projects returns the documents as linker projects.
func (c *FloodClient) Projects(ctx context.Context) ([]link.Project, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]link.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Project())
	}
	return out, nil
}

// ContractorNames returns the raw contractor string of every document that
// has one, in document order.
func (c *FloodClient) ContractorNames(ctx context.Context) ([]string, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Contractor) != "" {
			out = append(out, d.Contractor)
		}
	}
	return out, nil
}

func (c *FloodClient) fetchPage(ctx context.Context, offset int) (*documentsPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: flood: rate limiter wait")
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(c.opts.PageSize))
	q.Set("fields", strings.Join(floodFields, ","))
	endpoint := c.opts.BaseURL + "/indexes/" + url.PathEscape(c.opts.Index) + "/documents?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: flood: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "source: flood: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.OnRateLimit()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("source: flood: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var page documentsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, eris.Wrap(err, "source: flood: decode page")
	}
	c.limiter.OnSuccess()
	return &page, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

var amountReplacer = strings.NewReplacer(",", "", "₱", "", "PHP", "", "Php", "", " ", "")

func parseAmount(s string) float64 {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

package tools

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

// Article is one normalized news item from any source.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Sentiment   string `json:"sentiment,omitempty"`
	Category    string `json:"category,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// NewsSource fetches articles from one upstream provider.
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context, entity, sentiment, category string) ([]Article, error)
}

// NewsTool queries every configured source concurrently and merges the
// results. A failing source degrades the list instead of failing the call.
type NewsTool struct {
	sources []NewsSource
}

func NewNewsTool(sources ...NewsSource) *NewsTool {
	return &NewsTool{sources: sources}
}

func (t *NewsTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{
		Name: "get_economic_news",
		Description: "Fetch recent economic and financial news articles, optionally " +
			"filtered by entity (company, country, ticker), sentiment or category.",
		Parameters: map[string]core.ToolParam{
			"entity":    {Type: "string", Description: "Optional entity filter, e.g. a ticker or country"},
			"sentiment": {Type: "string", Description: "Optional sentiment filter: positive, negative or neutral"},
			"category":  {Type: "string", Description: "Optional category filter, e.g. monetary-policy, markets"},
		},
	}
}

func (t *NewsTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	if len(t.sources) == 0 {
		return Failure(apperr.KindConfig, "no news sources are configured", nil)
	}

	entity := stringArg(args, "entity")
	sentiment := strings.ToLower(stringArg(args, "sentiment"))
	category := strings.ToLower(stringArg(args, "category"))

	var (
		mu       sync.Mutex
		articles []Article
		failures int
	)
	var wg sync.WaitGroup
	for _, src := range t.sources {
		wg.Add(1)
		go func(src NewsSource) {
			defer wg.Done()
			got, err := src.Fetch(ctx, entity, sentiment, category)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				log.Warn().Str("source", src.Name()).Err(err).Msg("news source failed")
				return
			}
			articles = append(articles, got...)
		}(src)
	}
	wg.Wait()

	if failures == len(t.sources) {
		return Failure(apperr.KindFetch, "all news sources failed", nil)
	}
	if len(articles) == 0 {
		return Failure(apperr.KindNoData, "no articles matched the filters", nil)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt > articles[j].PublishedAt
	})

	items := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		items = append(items, map[string]any{
			"title":        a.Title,
			"url":          a.URL,
			"source":       a.Source,
			"sentiment":    a.Sentiment,
			"category":     a.Category,
			"published_at": a.PublishedAt,
		})
	}
	return Success(map[string]any{"articles": items})
}

// HTTPNewsSource is a resty-backed source hitting a single provider endpoint.
type HTTPNewsSource struct {
	name    string
	client  *resty.Client
	baseURL string
	apiKey  string
}

func NewHTTPNewsSource(name, baseURL, apiKey string) *HTTPNewsSource {
	return &HTTPNewsSource{
		name: name,
		client: resty.New().
			SetHeader("User-Agent", "EconLens/1.0").
			SetTimeout(10 * time.Second),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (s *HTTPNewsSource) Name() string { return s.name }

type newsResponse struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Sentiment   string `json:"sentiment"`
		Category    string `json:"category"`
		PublishedAt string `json:"published_at"`
	} `json:"data"`
}

func (s *HTTPNewsSource) Fetch(ctx context.Context, entity, sentiment, category string) ([]Article, error) {
	if s.baseURL == "" {
		return nil, apperr.New(apperr.KindConfig, "news source has no base URL")
	}

	req := s.client.R().SetContext(ctx)
	if s.apiKey != "" {
		req.SetQueryParam("api_token", s.apiKey)
	}
	if entity != "" {
		req.SetQueryParam("symbols", entity)
	}
	if sentiment != "" {
		req.SetQueryParam("sentiment", sentiment)
	}
	if category != "" {
		req.SetQueryParam("categories", category)
	}

	var parsed newsResponse
	resp, err := req.SetResult(&parsed).Get(s.baseURL + "/news/all")
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindFetch, "news source unreachable")
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, apperr.New(apperr.KindRateLimit, "news source throttled the request")
	}
	if resp.IsError() {
		return nil, apperr.Newf(apperr.KindFetch, "news source returned status %d", resp.StatusCode())
	}

	out := make([]Article, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, Article{
			Title:       d.Title,
			URL:         d.URL,
			Source:      s.name,
			Sentiment:   d.Sentiment,
			Category:    d.Category,
			PublishedAt: d.PublishedAt,
		})
	}
	return out, nil
}

var (
	_ Tool       = (*NewsTool)(nil)
	_ NewsSource = (*HTTPNewsSource)(nil)
)

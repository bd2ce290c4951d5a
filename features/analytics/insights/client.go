// Package insights implements the HTTP client for the insights analytics
// service, which feeds the FAQ report: one info-cards call for the frequency
// denominators plus page streams for categories, sub-categories and top
// questions.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics"
	"github.com/sifthub/exporter/httpclient"
	"github.com/sifthub/exporter/telemetry"
)

const (
	infoCardsEndpoint     = "/api/v1/insights-service/generate-answer/overview/info-cards"
	categoriesEndpoint    = "/api/v1/insights-service/generate-answer/overview/category-distribution"
	subCategoriesEndpoint = "/api/v1/insights-service/generate-answer/overview/category/%s/subcategory-distribution"
	topQuestionsEndpoint  = "/api/v1/insights-service/generate-answer/overview/top-questions/list"
)

type (
	// Client exposes the insights service reads used by the FAQ builder.
	Client interface {
		// InfoCards fetches the aggregate question counters.
		InfoCards(ctx context.Context, pageFilter *export.Filter) (*InfoCards, error)
		// Categories streams the category distribution pages.
		Categories(filter, pageFilter *export.Filter) *analytics.Stream[Category]
		// SubCategories streams the sub-category distribution pages of one category.
		SubCategories(categoryID string, filter, pageFilter *export.Filter) *analytics.Stream[SubCategory]
		// TopQuestions streams the top question pages.
		TopQuestions(filter, pageFilter *export.Filter) *analytics.Stream[TopQuestion]
	}

	// Count is a single info-card counter.
	Count struct {
		Count float64 `json:"count"`
	}

	// InfoCards carries the aggregate counters used as frequency denominators.
	InfoCards struct {
		TotalQuestions         Count `json:"totalQuestions"`
		TotalQuestionsAnswered Count `json:"totalQuestionsAnswered"`
	}

	// Category is one row of the category distribution.
	Category struct {
		ID           string  `json:"id"`
		Category     string  `json:"category"`
		Distribution float64 `json:"distribution"`
		Trend        float64 `json:"trend"`
		Direction    string  `json:"direction"`
	}

	// SubCategory is one row of a category's sub-category distribution.
	SubCategory struct {
		ID           string  `json:"id"`
		SubCategory  string  `json:"subCategory"`
		Distribution float64 `json:"distribution"`
		Trend        float64 `json:"trend"`
		Direction    string  `json:"direction"`
	}

	// TopQuestion is one row of the top-questions list.
	TopQuestion struct {
		ID        string `json:"id"`
		Question  string `json:"question"`
		Frequency int    `json:"frequency"`
	}

	// Options configures the insights client.
	Options struct {
		// HTTP is the shared HTTP client. Required.
		HTTP httpclient.Doer
		// BaseURL is the service origin, e.g. "https://analytics.internal". Required.
		BaseURL string
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
	}

	client struct {
		http    httpclient.Doer
		baseURL string
		logger  telemetry.Logger
	}

	categoriesPage struct {
		Category []Category `json:"category"`
	}

	subCategoriesPage struct {
		SubCategory []SubCategory `json:"subCategory"`
	}

	topQuestionsPage struct {
		TopQuestions []TopQuestion `json:"topQuestions"`
	}
)

// New validates the options and returns a client.
func New(opts Options) (Client, error) {
	if opts.HTTP == nil {
		return nil, errors.New("http client is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &client{http: opts.HTTP, baseURL: opts.BaseURL, logger: logger}, nil
}

func (c *client) InfoCards(ctx context.Context, pageFilter *export.Filter) (*InfoCards, error) {
	data, err := c.post(ctx, infoCardsEndpoint, analytics.Request{PageFilter: pageFilter})
	if err != nil {
		return nil, err
	}
	var cards InfoCards
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, export.Upstream("decode info cards", err)
	}
	return &cards, nil
}

func (c *client) Categories(filter, pageFilter *export.Filter) *analytics.Stream[Category] {
	return analytics.NewStream(func(ctx context.Context, page, pageSize int) ([]Category, error) {
		data, err := c.post(ctx, categoriesEndpoint, analytics.Request{
			Filter: filter, PageFilter: pageFilter, Page: page, PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		var p categoriesPage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, export.Upstream("decode category page", err)
		}
		return p.Category, nil
	}, analytics.BatchSize, c.logger)
}

func (c *client) SubCategories(categoryID string, filter, pageFilter *export.Filter) *analytics.Stream[SubCategory] {
	endpoint := fmt.Sprintf(subCategoriesEndpoint, categoryID)
	return analytics.NewStream(func(ctx context.Context, page, pageSize int) ([]SubCategory, error) {
		data, err := c.post(ctx, endpoint, analytics.Request{
			Filter: filter, PageFilter: pageFilter, Page: page, PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		var p subCategoriesPage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, export.Upstream("decode sub-category page", err)
		}
		return p.SubCategory, nil
	}, analytics.BatchSize, c.logger)
}

func (c *client) TopQuestions(filter, pageFilter *export.Filter) *analytics.Stream[TopQuestion] {
	return analytics.NewStream(func(ctx context.Context, page, pageSize int) ([]TopQuestion, error) {
		data, err := c.post(ctx, topQuestionsEndpoint, analytics.Request{
			Filter: filter, PageFilter: pageFilter, Page: page, PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		var p topQuestionsPage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, export.Upstream("decode top questions page", err)
		}
		return p.TopQuestions, nil
	}, analytics.BatchSize, c.logger)
}

// post issues one envelope-wrapped call and returns the data payload.
func (c *client) post(ctx context.Context, endpoint string, req analytics.Request) (json.RawMessage, error) {
	var env analytics.Envelope
	if err := httpclient.PostJSON(ctx, c.http, c.baseURL+endpoint, nil, req, &env); err != nil {
		return nil, export.Upstream(endpoint, err)
	}
	return env.Unwrap(endpoint)
}

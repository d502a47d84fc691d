package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

// indicatorCodes maps friendly indicator names to provider series codes.
var indicatorCodes = map[string]string{
	"gdp":              "NY.GDP.MKTP.CD",
	"gdp_growth":       "NY.GDP.MKTP.KD.ZG",
	"inflation":        "FP.CPI.TOTL.ZG",
	"unemployment":     "SL.UEM.TOTL.ZS",
	"interest_rate":    "FR.INR.RINR",
	"government_debt":  "GC.DOD.TOTL.GD.ZS",
	"current_account":  "BN.CAB.XOKA.GD.ZS",
	"population":       "SP.POP.TOTL",
	"exports":          "NE.EXP.GNFS.ZS",
	"imports":          "NE.IMP.GNFS.ZS",
	"fdi":              "BX.KLT.DINV.WD.GD.ZS",
	"gini":             "SI.POV.GINI",
	"gdp_per_capita":   "NY.GDP.PCAP.CD",
	"money_supply":     "FM.LBL.BMNY.GD.ZS",
	"exchange_rate":    "PA.NUS.FCRF",
	"savings_rate":     "NY.GNS.ICTR.ZS",
}

// IndicatorTool looks up historical economic indicator series from the
// configured data provider.
type IndicatorTool struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func NewIndicatorTool(baseURL, apiKey string) *IndicatorTool {
	return &IndicatorTool{
		client: resty.New().
			SetHeader("User-Agent", "EconLens/1.0").
			SetTimeout(10 * time.Second),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (t *IndicatorTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{
		Name: "get_economic_indicator",
		Description: "Look up a historical economic indicator series for a country. " +
			"Supported indicators include gdp, gdp_growth, inflation, unemployment, " +
			"interest_rate, government_debt, population, exports, imports.",
		Parameters: map[string]core.ToolParam{
			"indicator":    {Type: "string", Description: "Indicator name, e.g. gdp or inflation"},
			"country_code": {Type: "string", Description: "ISO-3166 alpha-2 or alpha-3 country code, e.g. US or USA"},
			"year":         {Type: "integer", Description: "Optional single year to fetch; omit for the full recent series"},
		},
		Required: []string{"indicator", "country_code"},
	}
}

type wbSeriesPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		Value string `json:"value"`
	} `json:"country"`
}

func (t *IndicatorTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	if t.baseURL == "" {
		return Failure(apperr.KindConfig, "indicator provider is not configured", nil)
	}

	name := strings.ToLower(strings.TrimSpace(stringArg(args, "indicator")))
	code, ok := indicatorCodes[name]
	if !ok {
		return Failure(apperr.KindNotFound, "unknown indicator: "+name, map[string]any{
			"supported": supportedIndicators(),
		})
	}

	country := strings.ToUpper(strings.TrimSpace(stringArg(args, "country_code")))
	if country == "" {
		return Failure(apperr.KindValidation, "country_code is required", nil)
	}

	req := t.client.R().
		SetContext(ctx).
		SetQueryParam("format", "json").
		SetQueryParam("per_page", "100")
	if t.apiKey != "" {
		req.SetQueryParam("api_key", t.apiKey)
	}
	if year := intArg(args, "year"); year > 0 {
		req.SetQueryParam("date", fmt.Sprintf("%d", year))
	}

	resp, err := req.Get(fmt.Sprintf("%s/country/%s/indicator/%s", t.baseURL, country, code))
	if err != nil {
		return Failure(apperr.KindFetch, "indicator provider unreachable", nil)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Failure(apperr.KindAuth, "indicator provider rejected the credential", nil)
	case http.StatusNotFound:
		return Failure(apperr.KindNotFound, "no such indicator or country", nil)
	case http.StatusTooManyRequests:
		return Failure(apperr.KindRateLimit, "indicator provider throttled the request", nil)
	default:
		return Failure(apperr.KindFetch, fmt.Sprintf("indicator provider returned status %d", resp.StatusCode()), nil)
	}

	series, perr := parseIndicatorResponse(resp.Body())
	if perr != nil {
		return Failure(apperr.KindFetch, "could not parse indicator response", nil)
	}
	if len(series) == 0 {
		return Failure(apperr.KindNoData, "no observations for this indicator and country", nil)
	}

	points := make([]map[string]any, 0, len(series))
	for _, p := range series {
		if p.Value == nil {
			continue
		}
		points = append(points, map[string]any{
			"year":  p.Date,
			"value": *p.Value,
		})
	}
	if len(points) == 0 {
		return Failure(apperr.KindNoData, "indicator series contains no usable values", nil)
	}

	return Success(map[string]any{
		"indicator": name,
		"country":   country,
		"series":    points,
	})
}

// parseIndicatorResponse decodes the provider's two-element envelope:
// [metadata, [observations]].
func parseIndicatorResponse(body []byte) ([]wbSeriesPoint, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope) < 2 {
		return nil, nil
	}
	var series []wbSeriesPoint
	if err := json.Unmarshal(envelope[1], &series); err != nil {
		return nil, err
	}
	return series, nil
}

func supportedIndicators() []string {
	names := make([]string, 0, len(indicatorCodes))
	for n := range indicatorCodes {
		names = append(names, n)
	}
	return names
}

var _ Tool = (*IndicatorTool)(nil)

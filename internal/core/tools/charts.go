package tools

import (
	"context"
	"encoding/json"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

var validChartTypes = map[string]bool{
	"line":    true,
	"bar":     true,
	"area":    true,
	"pie":     true,
	"scatter": true,
}

// ChartTool validates model-supplied data points and produces a renderable
// chart payload.
type ChartTool struct{}

func NewChartTool() *ChartTool { return &ChartTool{} }

func (t *ChartTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{
		Name: "generate_chart",
		Description: "Generate a chart from economic data points. Use it whenever the user " +
			"asks to visualize a series or a comparison.",
		Parameters: map[string]core.ToolParam{
			"chart_type": {Type: "string", Description: "One of: line, bar, area, pie, scatter"},
			"data":       {Type: "string", Description: "JSON-encoded array of data point objects"},
			"x_key":      {Type: "string", Description: "Field of each data point used for the x axis"},
			"y_key":      {Type: "string", Description: "Field of each data point used for the y axis"},
			"title":      {Type: "string", Description: "Chart title"},
		},
		Required: []string{"chart_type", "data", "x_key", "y_key"},
	}
}

func (t *ChartTool) Execute(_ context.Context, args map[string]any) map[string]any {
	chartType := stringArg(args, "chart_type")
	if !validChartTypes[chartType] {
		return Failure(apperr.KindValidation, "unsupported chart type: "+chartType, nil)
	}

	rawData := stringArg(args, "data")
	if rawData == "" {
		return Failure(apperr.KindValidation, "data is required", nil)
	}

	var points []map[string]any
	if err := json.Unmarshal([]byte(rawData), &points); err != nil {
		return Failure(apperr.KindValidation, "data must be a JSON array of objects", nil)
	}
	if len(points) == 0 {
		return Failure(apperr.KindValidation, "data must contain at least one point", nil)
	}

	xKey := stringArg(args, "x_key")
	yKey := stringArg(args, "y_key")
	if xKey == "" || yKey == "" {
		return Failure(apperr.KindValidation, "x_key and y_key are required", nil)
	}
	for i, p := range points {
		if _, ok := p[xKey]; !ok {
			return Failure(apperr.KindValidation, "data point missing x_key field", map[string]any{"index": i, "key": xKey})
		}
		if _, ok := p[yKey]; !ok {
			return Failure(apperr.KindValidation, "data point missing y_key field", map[string]any{"index": i, "key": yKey})
		}
	}

	return Success(map[string]any{
		"chart": map[string]any{
			"type":  chartType,
			"data":  points,
			"x_key": xKey,
			"y_key": yKey,
			"title": stringArg(args, "title"),
		},
	})
}

var _ Tool = (*ChartTool)(nil)

// Package tools defines and executes the ambient data lookups the model can
// request before answering: the dataset CSV, the instruction text, and the
// hosted chart-image reference. All three are pure reads with no arguments;
// the session's study parameters supply the context.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"chartchat/model"
)

// Tool names recognized by the executor.
const (
	ToolGetDatasetCSV       = "get_dataset_csv"
	ToolGetInstructions     = "get_instructions"
	ToolGetChartImageFileID = "get_chart_image_file_id"
)

// Definitions returns the tool set offered to the model on every call.
func Definitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolGetDatasetCSV,
			mcp.WithDescription("Returns the raw CSV data backing the chart the participant is studying. "+
				"Call this when the question concerns specific values, rows, columns, or statistics."),
		),
		mcp.NewTool(ToolGetInstructions,
			mcp.WithDescription("Returns the exploration instructions shown to the participant. "+
				"Call this when the question refers to the instructions or exploration steps."),
		),
		mcp.NewTool(ToolGetChartImageFileID,
			mcp.WithDescription("Returns a file reference for the chart image so it can be inspected visually. "+
				"Call this when the question concerns the chart's visual appearance or layout."),
		),
	}
}

type imageKey struct {
	chart   model.ChartType
	dataset model.Dataset
}

// Hosted image references, uploaded once per chart/dataset pairing as part of
// study setup.
var chartImageFileIDs = map[imageKey]string{
	{model.ChartViolinPlot, model.DatasetSimple}:        "file-violinplot-simple-001",
	{model.ChartViolinPlot, model.DatasetComplex}:       "file-violinplot-complex-001",
	{model.ChartClusteredHeatmap, model.DatasetSimple}:  "file-heatmap-simple-001",
	{model.ChartClusteredHeatmap, model.DatasetComplex}: "file-heatmap-complex-001",
}

// ChartImageFileID looks up the hosted image reference for the session's
// chart. Pure lookup, never fails for validated study params.
func ChartImageFileID(params model.StudyParams) string {
	return chartImageFileIDs[imageKey{params.ChartType, params.Dataset}]
}

package model

import "fmt"

// ChartType identifies which chart the participant is studying.
type ChartType string

const (
	ChartViolinPlot       ChartType = "violin-plot"
	ChartClusteredHeatmap ChartType = "clustered-heatmap"
)

// Dataset selects the data variant backing the chart.
type Dataset string

const (
	DatasetSimple  Dataset = "simple"
	DatasetComplex Dataset = "complex"
)

// Modality distinguishes tactile chart sessions from text-based ones.
type Modality string

const (
	ModalityTactile Modality = "tactile"
	ModalityText    Modality = "text"
)

// ContentType selects what the companion viewer shows.
type ContentType string

const (
	ContentInstructions ContentType = "instructions"
	ContentAltText      ContentType = "alt-text"
)

// StudyParams is the immutable per-session context. It is passed explicitly
// to everything that needs it (tool execution, background resolution, asset
// paths) instead of being captured ambiently.
type StudyParams struct {
	ChartType   ChartType
	Dataset     Dataset
	Modality    Modality
	ContentType ContentType
}

// Validate reports the first unknown enum value, if any.
func (p StudyParams) Validate() error {
	switch p.ChartType {
	case ChartViolinPlot, ChartClusteredHeatmap:
	default:
		return fmt.Errorf("unknown chart type: %q", p.ChartType)
	}
	switch p.Dataset {
	case DatasetSimple, DatasetComplex:
	default:
		return fmt.Errorf("unknown dataset: %q", p.Dataset)
	}
	switch p.Modality {
	case ModalityTactile, ModalityText:
	default:
		return fmt.Errorf("unknown modality: %q", p.Modality)
	}
	switch p.ContentType {
	case ContentInstructions, ContentAltText:
	default:
		return fmt.Errorf("unknown content type: %q", p.ContentType)
	}
	return nil
}

// ChartLabel returns the chart type with the hyphen replaced for prose use,
// e.g. "violin plot".
func (p StudyParams) ChartLabel() string {
	switch p.ChartType {
	case ChartViolinPlot:
		return "violin plot"
	case ChartClusteredHeatmap:
		return "clustered heatmap"
	default:
		return string(p.ChartType)
	}
}

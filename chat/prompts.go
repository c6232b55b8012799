package chat

import (
	"fmt"
	"strings"

	"chartchat/model"
)

// StudyPrompt assembles the assistant persona for a session. A non-empty
// override from config replaces it entirely (used for prompt experiments).
func StudyPrompt(params model.StudyParams, strategy string, multimodal bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an AI assistant helping a participant learn about %s charts in an accessibility study.\n\n", params.ChartLabel())

	b.WriteString("Your role is to:\n")
	b.WriteString("- Help the participant understand the chart type and its purpose\n")
	b.WriteString("- Answer questions about data visualization concepts\n")
	b.WriteString("- Provide clear, accessible explanations\n")
	b.WriteString("- Be patient and supportive of learning\n")
	b.WriteString("- Keep responses concise but informative\n")

	if strategy == StrategyToolDriven {
		b.WriteString("\nTools give you the chart's background context: ")
		b.WriteString("get_dataset_csv returns the chart's underlying CSV data, ")
		b.WriteString("get_instructions returns the participant's exploration instructions")
		if multimodal {
			b.WriteString(", and get_chart_image_file_id returns a reference to the chart image")
		}
		b.WriteString(". Call them when a question needs the actual data or image; ")
		b.WriteString("answer general questions directly without tools.\n")
	}

	if multimodal {
		b.WriteString("\nWhen you receive both the CSV data and the chart image, ")
		b.WriteString("analyze the data for structure and statistics, interpret the image ")
		b.WriteString("for how the data is represented, and combine both to give ")
		b.WriteString("comprehensive, accurate answers. Help the participant connect the ")
		b.WriteString("raw data to the visual representation.\n")
	}

	fmt.Fprintf(&b, "\nThe participant is working with %s charts. Be helpful and encouraging in your responses.", params.ChartLabel())

	return b.String()
}

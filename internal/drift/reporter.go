package drift

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatCLI formats drift report for terminal output.
func FormatCLI(report DriftReport) string {
	if !report.HasDrift {
		return "No variable changes.\n"
	}

	var sb strings.Builder
	for _, step := range report.Steps {
		label := fmt.Sprintf("step %d", step.Step)
		if step.Example > 0 {
			label = fmt.Sprintf("state %d.%d", step.Example, step.Step)
		}
		if step.Loop {
			label += " (loop)"
		}
		sb.WriteString(label + ":\n")

		for _, change := range step.Changes {
			switch change.Type {
			case DriftAdded:
				sb.WriteString(fmt.Sprintf("  + %s: (new) → %s\n", change.Key, change.CurrentValue))
			case DriftRemoved:
				sb.WriteString(fmt.Sprintf("  - %s: %s → (removed)\n", change.Key, change.PreviousValue))
			case DriftChanged:
				sb.WriteString(fmt.Sprintf("  ~ %s: %s → %s\n", change.Key, change.PreviousValue, change.CurrentValue))
			}
		}
	}
	return sb.String()
}

// FormatJSON formats drift report as JSON.
func FormatJSON(report DriftReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults renders the batch manifest as json, csv or text.
func formatBatchResults(images []ImageResult, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(images)
	case "csv":
		return formatCSV(images)
	case "text", "":
		return formatText(images), nil
	default:
		return "", fmt.Errorf("unsupported manifest format: %s", format)
	}
}

func formatJSON(images []ImageResult) (string, error) {
	manifest := struct {
		Images []ImageResult `json:"images"`
	}{Images: images}

	bts, err := json.MarshalIndent(manifest, "", "  ")
	return string(bts), err
}

// formatCSV writes one row per variant; failed images get a single row with
// the error and an empty variant.
func formatCSV(images []ImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"source", "variant", "output", "width", "height", "boxes", "steps", "error"}}
	for _, img := range images {
		if img.Failed() {
			rows = append(rows, []string{img.Source, "", "", "", "", "", "", img.Error})
			continue
		}
		for _, v := range img.Variants {
			rows = append(rows, []string{
				img.Source,
				strconv.Itoa(v.Index),
				v.Path,
				strconv.Itoa(v.Width),
				strconv.Itoa(v.Height),
				strconv.Itoa(len(v.Boxes)),
				strings.Join(v.Steps, "|"),
				"",
			})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatText(images []ImageResult) string {
	var sb strings.Builder
	for i, img := range images {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# %s\n", img.Source)
		if img.Failed() {
			fmt.Fprintf(&sb, "error: %s\n", img.Error)
			continue
		}
		for _, v := range img.Variants {
			fmt.Fprintf(&sb, "%s %dx%d boxes=%d steps=%s\n",
				v.Path, v.Width, v.Height, len(v.Boxes), strings.Join(v.Steps, ","))
		}
	}
	return sb.String()
}

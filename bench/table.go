package bench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteTable prints one row per swept value.
func WriteTable(w io.Writer, res *Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{res.ParamName, labelOr(res.ComplexityLabel, "complexity"), labelOr(res.ErrorLabel, "error"), "latency (µs)", "fit (ms)"})
	for i := 0; i < res.Len(); i++ {
		table.Append([]string{
			fmt.Sprint(res.ParamValues[i]),
			strconv.FormatFloat(res.Complexity[i], 'g', 6, 64),
			strconv.FormatFloat(res.Error[i], 'g', 6, 64),
			strconv.FormatFloat(res.Latency[i]*1e6, 'f', 1, 64),
			strconv.FormatFloat(res.FitTime[i]*1e3, 'f', 1, 64),
		})
	}
	table.Render()
}

// WriteOOBTable prints the OOB error of every ensemble at every step-th size
// and at the last size. Rows follow the longest series; a series without a
// point at that position gets an empty cell.
func WriteOOBTable(w io.Writer, res *OOBResult, step int) {
	if len(res.Series) == 0 {
		return
	}
	step = max(step, 1)

	header := []string{"n_estimators"}
	for _, s := range res.Series {
		header = append(header, s.Label)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)

	points := res.Series[0].Points
	for _, s := range res.Series[1:] {
		if len(s.Points) > len(points) {
			points = s.Points
		}
	}
	for k := range points {
		if k%step != 0 && k != len(points)-1 {
			continue
		}
		row := []string{strconv.Itoa(points[k].NEstimators)}
		for _, s := range res.Series {
			if k >= len(s.Points) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(s.Points[k].Error, 'f', 4, 64))
		}
		table.Append(row)
	}
	table.Render()
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

package chart

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/YuminosukeSato/modelbench/bench"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// ComplexityFigure draws a sweep result as two panels sharing the complexity
// axis: prediction error on top and prediction latency below. Each point is
// labelled with the hyperparameter value that produced it.
func ComplexityFigure(res *bench.Result) (*Figure, error) {
	if res == nil {
		return nil, errors.NewValidationError("result", "must not be nil", nil)
	}
	n := res.Len()
	if n == 0 {
		return nil, errors.NewValidationError("result", "has no points", res.Name)
	}
	if len(res.Complexity) != n || len(res.Error) != n || len(res.Latency) != n {
		return nil, errors.NewValidationError("result",
			fmt.Sprintf("misaligned series: %d values, %d complexity, %d error, %d latency",
				n, len(res.Complexity), len(res.Error), len(res.Latency)), res.Name)
	}

	errPts := make([]DataPoint, n)
	latPts := make([]DataPoint, n)
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("%s=%v", res.ParamName, res.ParamValues[i])
		errPts[i] = DataPoint{X: res.Complexity[i], Y: res.Error[i], Label: label}
		latPts[i] = DataPoint{X: res.Complexity[i], Y: res.Latency[i] * 1e6}
	}

	xLabel := labelOr(res.ComplexityLabel, "model complexity")
	return New(FigureData{
		Title:   res.Name,
		SharedX: true,
		Panels: []PanelData{
			{
				XLabel: xLabel,
				YLabel: labelOr(res.ErrorLabel, "prediction error"),
				Series: []SeriesData{{Name: "prediction error", Points: errPts}},
			},
			{
				XLabel: xLabel,
				YLabel: "latency (µs)",
				Series: []SeriesData{{Name: "prediction latency", Points: latPts}},
			},
		},
	})
}

// OOBFigure draws one OOB error line per ensemble against the number of
// trees.
func OOBFigure(res *bench.OOBResult) (*Figure, error) {
	if res == nil || len(res.Series) == 0 {
		return nil, errors.NewValidationError("result", "has no series", nil)
	}

	series := make([]SeriesData, 0, len(res.Series))
	for _, s := range res.Series {
		pts := make([]DataPoint, len(s.Points))
		for i, p := range s.Points {
			pts[i] = DataPoint{X: float64(p.NEstimators), Y: p.Error}
		}
		series = append(series, SeriesData{Name: s.Label, Points: pts})
	}
	return New(FigureData{
		Title: "OOB error rate",
		Panels: []PanelData{{
			XLabel: "n_estimators",
			YLabel: "OOB error rate",
			Series: series,
		}},
	})
}

// WriteJSON dumps the figure data as indented JSON.
func (f *Figure) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.Data); err != nil {
		return errors.Wrapf(err, "chart: encoding %q", f.Data.Title)
	}
	return nil
}

// ReadJSON loads figure data written by WriteJSON.
func ReadJSON(r io.Reader) (FigureData, error) {
	var data FigureData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return FigureData{}, errors.Wrapf(err, "chart: decoding figure data")
	}
	return data, nil
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

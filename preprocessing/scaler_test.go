package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

var _ model.InverseTransformer = (*StandardScaler)(nil)

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	wantMean := []float64{2.5, 10}
	wantScale := []float64{math.Sqrt(1.25), 1} // constant column keeps scale 1
	for j := range wantMean {
		if math.Abs(scaler.Mean[j]-wantMean[j]) > 1e-12 {
			t.Errorf("Mean[%d] = %v, want %v", j, scaler.Mean[j], wantMean[j])
		}
		if math.Abs(scaler.Scale[j]-wantScale[j]) > 1e-12 {
			t.Errorf("Scale[%d] = %v, want %v", j, scaler.Scale[j], wantScale[j])
		}
	}

	col := mat.Col(nil, 0, Xs)
	var sum, sq float64
	for _, v := range col {
		sum += v
		sq += v * v
	}
	if math.Abs(sum) > 1e-12 || math.Abs(sq/4-1) > 1e-12 {
		t.Errorf("standardized column has mean %v, var %v", sum/4, sq/4)
	}
	if Xs.At(0, 1) != 0 {
		t.Errorf("constant column should map to 0, got %v", Xs.At(0, 1))
	}

	back, err := scaler.InverseTransform(Xs)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("InverseTransform did not round-trip:\n%v", mat.Formatted(back))
	}
}

func TestStandardScalerWithoutMean(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})
	scaler := NewStandardScaler(false, true)
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	// std = 1, mean not removed
	if Xs.At(0, 0) != 2 || Xs.At(1, 0) != 4 {
		t.Errorf("unexpected output:\n%v", mat.Formatted(Xs))
	}
}

func TestStandardScalerErrors(t *testing.T) {
	scaler := NewStandardScalerDefault()

	_, err := scaler.Transform(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("Transform before Fit = %v, want NotFittedError", err)
	}

	if err := scaler.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatal(err)
	}
	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("Transform with wrong width = %v, want DimensionError", err)
	}
}

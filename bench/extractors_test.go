package bench

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/sklearn/ensemble"
	"github.com/YuminosukeSato/modelbench/sklearn/svm"
)

func TestNonZeroCoefficients(t *testing.T) {
	stub := newStub()
	if _, err := NonZeroCoefficients(stub); err == nil {
		t.Error("unfitted estimator should be rejected")
	}

	stub.coef = mat.NewDense(2, 3, []float64{0, 1.5, 0, -2, 0, 1e-9})
	got, err := NonZeroCoefficients(stub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("NonZeroCoefficients = %v, want 3", got)
	}
}

func TestExtractorsRejectWrongEstimator(t *testing.T) {
	tests := []struct {
		name string
		fn   ComplexityFunc
	}{
		{"SupportVectors", SupportVectors},
		{"EstimatorCount", EstimatorCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(newStub())
			var valueErr *errors.ValueError
			if !errors.As(err, &valueErr) {
				t.Errorf("expected ValueError, got %v", err)
			}
		})
	}
	if _, err := NonZeroCoefficients(ensemble.NewGradientBoostingRegressor()); err == nil {
		t.Error("NonZeroCoefficients should reject a model without coefficients")
	}
}

func TestSupportVectorsAndEstimatorCount(t *testing.T) {
	s := regressionSplit(t)

	svr := svm.NewNuSVR(svm.WithKernel("linear"), svm.WithNu(0.5))
	if err := svr.Fit(s.XTrain, s.YTrain); err != nil {
		t.Fatal(err)
	}
	n, err := SupportVectors(svr)
	if err != nil {
		t.Fatal(err)
	}
	if n != float64(svr.NSupport()) || n == 0 {
		t.Errorf("SupportVectors = %v, NSupport = %d", n, svr.NSupport())
	}

	gbr := ensemble.NewGradientBoostingRegressor(ensemble.WithGBNEstimators(4))
	if err := gbr.Fit(s.XTrain, s.YTrain); err != nil {
		t.Fatal(err)
	}
	if c, err := EstimatorCount(gbr); err != nil || c != 4 {
		t.Errorf("EstimatorCount = %v, %v; want 4", c, err)
	}
}

func TestErrorExtractors(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{0, 1, 2, 1})
	yPred := mat.NewDense(4, 1, []float64{0, 2, 2, 0})

	tests := []struct {
		name string
		fn   ErrorFunc
		want float64
	}{
		{"HammingLoss", HammingLoss, 0.5},
		{"ClassificationError", ClassificationError, 0.5},
		{"MeanSquaredError", MeanSquaredError, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(yTrue, yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if _, err := MeanSquaredError(yTrue, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("mismatched rows should fail")
	}
}

package svm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

func sineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x)+0.1*math.Cos(7*x))
	}
	return X, y
}

func TestNuSVR_SupportVectorsGrowWithNu(t *testing.T) {
	X, y := sineData(80)

	prev := 0
	for _, nu := range []float64{0.1, 0.3, 0.5, 0.9} {
		svr := NewNuSVR(WithNu(nu), WithC(1), WithGamma(1.0))
		if err := svr.Fit(X, y); err != nil {
			t.Fatalf("nu=%v: Fit failed: %v", nu, err)
		}
		nSV := svr.NSupport()
		if float64(nSV) < nu*80-1 {
			t.Errorf("nu=%v: %d support vectors, want at least %v", nu, nSV, nu*80)
		}
		if nSV < prev {
			t.Errorf("nu=%v: support vectors decreased from %d to %d", nu, prev, nSV)
		}
		prev = nSV

		if sum := floats.Sum(svr.DualCoef()); math.Abs(sum) > 1e-8 {
			t.Errorf("nu=%v: dual coefficients sum to %v, want 0", nu, sum)
		}
		if len(svr.SupportIndices()) != nSV {
			t.Errorf("nu=%v: SupportIndices length mismatch", nu)
		}
	}
}

func TestNuSVR_Kernels(t *testing.T) {
	X := mat.NewDense(40, 1, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		x := float64(i)/10 - 2
		X.Set(i, 0, x)
		y.Set(i, 0, 2*x+1)
	}

	tests := []struct {
		name     string
		opts     []NuSVROption
		minScore float64
	}{
		{"linear", []NuSVROption{WithKernel("linear"), WithC(100)}, 0.99},
		{"rbf", []NuSVROption{WithKernel("rbf"), WithC(100), WithGamma("scale")}, 0.95},
		{"poly", []NuSVROption{WithKernel("poly"), WithDegree(1), WithCoef0(1), WithC(100), WithGamma("auto")}, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svr := NewNuSVR(tt.opts...)
			if err := svr.Fit(X, y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			score, err := svr.Score(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if score < tt.minScore {
				t.Errorf("R² = %.4f, want >= %.2f", score, tt.minScore)
			}
		})
	}
}

func TestNuSVR_Gamma(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3})
	y := mat.NewDense(4, 1, []float64{0, 1, 2, 3})

	tests := []struct {
		gamma interface{}
		want  float64
	}{
		{"auto", 0.5},
		{"scale", 1 / (2 * 1.25)},
		{0.25, 0.25},
	}
	for _, tt := range tests {
		svr := NewNuSVR(WithGamma(tt.gamma))
		if err := svr.Fit(X, y); err != nil {
			t.Fatalf("gamma=%v: %v", tt.gamma, err)
		}
		if got := svr.Gamma(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("gamma=%v resolved to %v, want %v", tt.gamma, got, tt.want)
		}
	}

	var ve *errors.ValidationError
	if err := NewNuSVR(WithGamma("wide")).Fit(X, y); !errors.As(err, &ve) {
		t.Errorf("invalid gamma: got %v, want ValidationError", err)
	}
}

func TestNuSVR_Errors(t *testing.T) {
	svr := NewNuSVR()
	var nf *errors.NotFittedError
	if _, err := svr.Predict(mat.NewDense(1, 1, nil)); !errors.As(err, &nf) {
		t.Errorf("Predict before Fit: got %v", err)
	}

	X, y := sineData(10)
	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"nu zero", map[string]interface{}{"nu": 0.0}},
		{"nu above one", map[string]interface{}{"nu": 1.5}},
		{"negative C", map[string]interface{}{"C": -1.0}},
		{"unknown kernel", map[string]interface{}{"kernel": "laplacian"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svr := NewNuSVR()
			if err := svr.SetParams(tt.params); err != nil {
				t.Fatalf("SetParams: %v", err)
			}
			var ve *errors.ValidationError
			if err := svr.Fit(X, y); !errors.As(err, &ve) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}

	if err := svr.SetParams(map[string]interface{}{"epsilon": 0.1}); err == nil {
		t.Error("NuSVR has no epsilon parameter")
	}

	if err := svr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var de *errors.DimensionError
	if _, err := svr.Predict(mat.NewDense(1, 3, nil)); !errors.As(err, &de) {
		t.Errorf("feature mismatch: got %v, want DimensionError", err)
	}
}

func TestNuSVR_SetParamsRoundTrip(t *testing.T) {
	svr := NewNuSVR()
	if err := svr.SetParams(map[string]interface{}{"nu": 0.35, "C": 1000, "gamma": math.Pow(2, -15)}); err != nil {
		t.Fatal(err)
	}
	p := svr.GetParams()
	if p["nu"] != 0.35 || p["C"] != 1000.0 || p["gamma"] != math.Pow(2, -15) {
		t.Errorf("GetParams() = %v", p)
	}
}

func BenchmarkNuSVR_Fit(b *testing.B) {
	X, y := sineData(200)
	for i := 0; i < b.N; i++ {
		svr := NewNuSVR(WithNu(0.5))
		if err := svr.Fit(X, y); err != nil {
			b.Fatal(err)
		}
	}
}

package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/datasets"
)

// noisyTarget は MakeRegression の目的変数と、ノイズを除いた真の値を返す
func noisyTarget(t testing.TB, n int, noise float64, seed uint64) (y, clean *mat.VecDense) {
	t.Helper()
	X, yd, coef, err := datasets.MakeRegression(datasets.RegressionConfig{
		NSamples:     n,
		NFeatures:    8,
		NInformative: 5,
		Bias:         3,
		Noise:        noise,
		Seed:         seed,
	})
	if err != nil {
		t.Fatal(err)
	}
	clean = mat.NewVecDense(n, nil)
	clean.MulVec(X, mat.NewVecDense(len(coef), coef))
	for i := 0; i < n; i++ {
		clean.SetVec(i, clean.AtVec(i)+3)
	}
	return mat.NewVecDense(n, mat.Col(nil, 0, yd)), clean
}

func TestRegressionMetricsOnGeneratedNoise(t *testing.T) {
	tests := []struct {
		name  string
		noise float64
		seed  uint64
	}{
		{"unit noise", 1, 1},
		{"benchmark noise", 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, clean := noisyTarget(t, 4000, tt.noise, tt.seed)

			// 真の値で予測すると誤差はガウスノイズそのもの
			mse, err := MSE(y, clean)
			if err != nil {
				t.Fatal(err)
			}
			if want := tt.noise * tt.noise; math.Abs(mse-want) > 0.1*want {
				t.Errorf("MSE = %v, want ≈ %v", mse, want)
			}

			rmse, err := RMSE(y, clean)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(rmse-tt.noise) > 0.05*tt.noise {
				t.Errorf("RMSE = %v, want ≈ %v", rmse, tt.noise)
			}

			mae, err := MAE(y, clean)
			if err != nil {
				t.Fatal(err)
			}
			if want := tt.noise * math.Sqrt(2/math.Pi); math.Abs(mae-want) > 0.05*want {
				t.Errorf("MAE = %v, want ≈ %v", mae, want)
			}

			r2, err := R2Score(y, clean)
			if err != nil {
				t.Fatal(err)
			}
			if r2 < 0.9 || r2 > 1 {
				t.Errorf("R2Score = %v, want within [0.9, 1]", r2)
			}
		})
	}
}

func TestRMSEIsSqrtMSE(t *testing.T) {
	y, clean := noisyTarget(t, 200, 5, 3)
	mse, err := MSE(y, clean)
	if err != nil {
		t.Fatal(err)
	}
	rmse, err := RMSE(y, clean)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rmse*rmse-mse) > 1e-9*mse {
		t.Errorf("RMSE² = %v, MSE = %v", rmse*rmse, mse)
	}
}

func TestMSEMatrix(t *testing.T) {
	y1, p1 := noisyTarget(t, 300, 2, 4)
	y2, p2 := noisyTarget(t, 300, 7, 5)

	mse1, err := MSE(y1, p1)
	if err != nil {
		t.Fatal(err)
	}
	mse2, err := MSE(y2, p2)
	if err != nil {
		t.Fatal(err)
	}

	stack := func(a, b *mat.VecDense) *mat.Dense {
		m := mat.NewDense(300, 2, nil)
		m.SetCol(0, a.RawVector().Data)
		m.SetCol(1, b.RawVector().Data)
		return m
	}

	tests := []struct {
		name  string
		yTrue mat.Matrix
		yPred mat.Matrix
		want  float64
	}{
		{
			name:  "single column equals vector MSE",
			yTrue: mat.NewDense(300, 1, y1.RawVector().Data),
			yPred: mat.NewDense(300, 1, p1.RawVector().Data),
			want:  mse1,
		},
		{
			name:  "multi-output is the uniform average",
			yTrue: stack(y1, y2),
			yPred: stack(p1, p2),
			want:  (mse1 + mse2) / 2,
		},
		{
			name:  "hand computed",
			yTrue: mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
			yPred: mat.NewDense(2, 2, []float64{1, 4, 3, 4}),
			want:  1, // (0 + 4 + 0 + 0) / 4
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSEMatrix(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9*math.Max(1, tt.want) {
				t.Errorf("MSEMatrix() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestR2ScoreBaselines(t *testing.T) {
	y, clean := noisyTarget(t, 100, 1, 6)
	mean := mat.Sum(y) / float64(y.Len())
	constant := mat.NewVecDense(y.Len(), nil)
	for i := 0; i < y.Len(); i++ {
		constant.SetVec(i, mean)
	}

	tests := []struct {
		name  string
		yPred *mat.VecDense
		want  float64
	}{
		{"perfect", y, 1},
		{"mean baseline", constant, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(y, tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("R2Score() = %v, want %v", got, tt.want)
			}
		})
	}

	// 平均より悪い予測は負になる
	reversed := mat.NewVecDense(4, []float64{4, 3, 2, 1})
	got, err := R2Score(mat.NewVecDense(4, []float64{1, 2, 3, 4}), reversed)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got+3) > 1e-10 {
		t.Errorf("reversed R2Score = %v, want -3", got)
	}

	if _, err := R2Score(mat.NewVecDense(3, []float64{2, 2, 2}), clean.SliceVec(0, 3).(*mat.VecDense)); err == nil {
		t.Error("R2Score should reject a target without variance")
	}
}

func TestRegressionMetricErrors(t *testing.T) {
	vecMetrics := map[string]func(yTrue, yPred *mat.VecDense) (float64, error){
		"MSE":     MSE,
		"RMSE":    RMSE,
		"MAE":     MAE,
		"R2Score": R2Score,
	}
	inputs := []struct {
		name         string
		yTrue, yPred *mat.VecDense
	}{
		{"length mismatch", mat.NewVecDense(3, []float64{1, 2, 3}), mat.NewVecDense(2, []float64{1, 2})},
		{"empty", &mat.VecDense{}, &mat.VecDense{}},
		{"nil", nil, mat.NewVecDense(1, []float64{1})},
	}
	for name, fn := range vecMetrics {
		for _, in := range inputs {
			if _, err := fn(in.yTrue, in.yPred); err == nil {
				t.Errorf("%s(%s) should fail", name, in.name)
			}
		}
	}

	matInputs := []struct {
		name         string
		yTrue, yPred mat.Matrix
	}{
		{"column mismatch", mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 1, []float64{1, 3})},
		{"row mismatch", mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(3, 1, []float64{1, 2, 3})},
		{"nil", nil, mat.NewDense(2, 1, []float64{1, 3})},
	}
	for _, in := range matInputs {
		if _, err := MSEMatrix(in.yTrue, in.yPred); err == nil {
			t.Errorf("MSEMatrix(%s) should fail", in.name)
		}
	}
}

func BenchmarkMSEMatrix(b *testing.B) {
	y, clean := noisyTarget(b, 10000, 10, 7)
	yTrue := mat.NewDense(10000, 1, y.RawVector().Data)
	yPred := mat.NewDense(10000, 1, clean.RawVector().Data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSEMatrix(yTrue, yPred)
	}
}

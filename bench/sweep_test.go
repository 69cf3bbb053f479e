package bench

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/datasets"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/sklearn/ensemble"
	"github.com/YuminosukeSato/modelbench/sklearn/linear_model"
)

// stubEstimator は param "fail" に一致する値で Fit を失敗させる推定器
type stubEstimator struct {
	params map[string]interface{}
	coef   *mat.Dense
	fitted bool
}

func newStub() *stubEstimator {
	return &stubEstimator{params: map[string]interface{}{}}
}

func (s *stubEstimator) Fit(X, y mat.Matrix) error {
	if v, ok := s.params["value"]; ok && v == s.params["fail"] {
		return errors.NewValueError("stub.Fit", "forced failure")
	}
	_, d := X.Dims()
	s.coef = mat.NewDense(1, d, nil)
	s.coef.Set(0, 0, 1)
	s.fitted = true
	return nil
}

func (s *stubEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError("stub", "Predict")
	}
	n, _ := X.Dims()
	return mat.NewDense(n, 1, nil), nil
}

func (s *stubEstimator) GetParams() map[string]interface{} { return s.params }

func (s *stubEstimator) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		s.params[k] = v
	}
	return nil
}

func (s *stubEstimator) IsFitted() bool { return s.fitted }

func (s *stubEstimator) Coef() *mat.Dense { return s.coef }

func classificationSplit(t testing.TB) *datasets.Split {
	t.Helper()
	X, y, err := datasets.MakeClassification(datasets.ClassificationConfig{
		NSamples:     200,
		NFeatures:    10,
		NInformative: 4,
		NClasses:     3,
		ClassSep:     2,
		Seed:         3,
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := datasets.TrainTestSplit(X, y, 0.25, 3)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func regressionSplit(t testing.TB) *datasets.Split {
	t.Helper()
	X, y, _, err := datasets.MakeRegression(datasets.RegressionConfig{
		NSamples:     150,
		NFeatures:    5,
		NInformative: 3,
		Noise:        1,
		Seed:         4,
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := datasets.TrainTestSplit(X, y, 0.2, 4)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sgdConfig(t testing.TB) Config {
	return Config{
		Name: "SGDClassifier",
		Estimator: func() model.Estimator {
			return linear_model.NewSGDClassifier()
		},
		FixedParams: map[string]interface{}{
			"loss":         "modified_huber",
			"penalty":      "elasticnet",
			"alpha":        1e-3,
			"random_state": 7,
		},
		ParamName:      "l1_ratio",
		ParamValues:    []interface{}{0.25, 0.5, 0.75, 0.9},
		Complexity:     NonZeroCoefficients,
		Error:          HammingLoss,
		Data:           classificationSplit(t),
		PredictRepeats: 3,
	}
}

func TestSweep_SequenceLengths(t *testing.T) {
	gbr := Config{
		Name: "GradientBoostingRegressor",
		Estimator: func() model.Estimator {
			return ensemble.NewGradientBoostingRegressor()
		},
		FixedParams:    map[string]interface{}{"max_depth": 2},
		ParamName:      "n_estimators",
		ParamValues:    []interface{}{5, 10, 20},
		Complexity:     EstimatorCount,
		Error:          MeanSquaredError,
		Data:           regressionSplit(t),
		PredictRepeats: 2,
	}

	for _, cfg := range []Config{sgdConfig(t), gbr} {
		t.Run(cfg.Name, func(t *testing.T) {
			res, err := Sweep(cfg)
			if err != nil {
				t.Fatal(err)
			}
			n := len(cfg.ParamValues)
			if res.Len() != n || len(res.Complexity) != n || len(res.Error) != n ||
				len(res.Latency) != n || len(res.FitTime) != n {
				t.Fatalf("lengths: values=%d complexity=%d error=%d latency=%d fit=%d",
					res.Len(), len(res.Complexity), len(res.Error), len(res.Latency), len(res.FitTime))
			}
			for i := 0; i < n; i++ {
				if res.Latency[i] < 0 || res.FitTime[i] < 0 {
					t.Errorf("negative timing at %d", i)
				}
				if res.Error[i] < 0 {
					t.Errorf("negative error at %d: %v", i, res.Error[i])
				}
			}
		})
	}
}

func TestSweep_EstimatorCountFollowsParam(t *testing.T) {
	cfg := Config{
		Name: "GradientBoostingRegressor",
		Estimator: func() model.Estimator {
			return ensemble.NewGradientBoostingRegressor()
		},
		ParamName:      "n_estimators",
		ParamValues:    []interface{}{3, 6, 9},
		Complexity:     EstimatorCount,
		Error:          MeanSquaredError,
		Data:           regressionSplit(t),
		PredictRepeats: 1,
	}
	res, err := Sweep(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{3, 6, 9} {
		if res.Complexity[i] != want {
			t.Errorf("Complexity[%d] = %v, want %v", i, res.Complexity[i], want)
		}
	}
	// 学習データへの当てはまりが良くなるので、テスト誤差も概ね減る
	if res.Error[2] > res.Error[0] {
		t.Errorf("MSE with 9 trees (%v) should not exceed 3 trees (%v)", res.Error[2], res.Error[0])
	}
}

func TestSweep_Deterministic(t *testing.T) {
	cfg := sgdConfig(t)
	first, err := Sweep(cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Sweep(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Complexity {
		if first.Complexity[i] != second.Complexity[i] {
			t.Errorf("complexity[%d]: %v vs %v", i, first.Complexity[i], second.Complexity[i])
		}
		if first.Error[i] != second.Error[i] {
			t.Errorf("error[%d]: %v vs %v", i, first.Error[i], second.Error[i])
		}
	}
}

func TestSweep_DoesNotMutateFixedParams(t *testing.T) {
	cfg := sgdConfig(t)
	if _, err := Sweep(cfg); err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.FixedParams["l1_ratio"]; ok {
		t.Error("Sweep leaked the varying parameter into FixedParams")
	}
	if len(cfg.FixedParams) != 4 {
		t.Errorf("FixedParams has %d entries, want 4", len(cfg.FixedParams))
	}
}

func TestSweep_FailFastWrapsContext(t *testing.T) {
	cfg := Config{
		Name:           "stub",
		Estimator:      func() model.Estimator { return newStub() },
		FixedParams:    map[string]interface{}{"fail": 2},
		ParamName:      "value",
		ParamValues:    []interface{}{1, 2, 3},
		Complexity:     NonZeroCoefficients,
		Error:          ClassificationError,
		Data:           classificationSplit(t),
		PredictRepeats: 1,
	}
	_, err := Sweep(cfg)
	if err == nil {
		t.Fatal("expected the forced failure to abort the sweep")
	}
	msg := err.Error()
	if !strings.Contains(msg, "stub") || !strings.Contains(msg, "value=2") {
		t.Errorf("error should name the configuration and value: %q", msg)
	}
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("cause should stay reachable, got %T", err)
	}
}

func TestSweep_Validation(t *testing.T) {
	valid := func() Config {
		return Config{
			Name:           "stub",
			Estimator:      func() model.Estimator { return newStub() },
			ParamName:      "value",
			ParamValues:    []interface{}{1},
			Complexity:     NonZeroCoefficients,
			Error:          ClassificationError,
			Data:           &datasets.Split{},
			PredictRepeats: 1,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"nil factory", func(c *Config) { c.Estimator = nil }},
		{"nil complexity", func(c *Config) { c.Complexity = nil }},
		{"nil error", func(c *Config) { c.Error = nil }},
		{"nil data", func(c *Config) { c.Data = nil }},
		{"empty param name", func(c *Config) { c.ParamName = "" }},
		{"empty values", func(c *Config) { c.ParamValues = nil }},
		{"zero repeats", func(c *Config) { c.PredictRepeats = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := Sweep(cfg)
			var valErr *errors.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

package bench

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestGenerateComplexityData(t *testing.T) {
	data, err := GenerateComplexityData(DataConfig{Samples: 200, Features: 10, TrainFraction: 0.75, Seed: 2})
	if err != nil {
		t.Fatal(err)
	}

	for name, s := range map[string]struct{ train, test *mat.Dense }{
		"classification": {data.Classification.XTrain, data.Classification.XTest},
		"multilabel":     {data.Multilabel.XTrain, data.Multilabel.XTest},
		"regression":     {data.Regression.XTrain, data.Regression.XTest},
	} {
		if r, c := s.train.Dims(); r != 150 || c != 10 {
			t.Errorf("%s train dims = %d×%d, want 150×10", name, r, c)
		}
		if r, _ := s.test.Dims(); r != 50 {
			t.Errorf("%s test rows = %d, want 50", name, r)
		}
	}

	// 回帰の訓練データは列ごとに平均0、分散1
	for j := 0; j < 10; j++ {
		col := mat.Col(nil, j, data.Regression.XTrain)
		mean, std := stat.PopMeanStdDev(col, nil)
		if math.Abs(mean) > 1e-9 || math.Abs(std-1) > 1e-9 {
			t.Errorf("feature %d: mean=%v std=%v", j, mean, std)
		}
	}
	// マルチラベルの目的変数は0/1のまま
	if _, c := data.Multilabel.YTrain.Dims(); c != multilabelOutputs {
		t.Errorf("multilabel outputs = %d, want %d", c, multilabelOutputs)
	}
	for _, v := range data.Multilabel.YTrain.RawMatrix().Data {
		if v != 0 && v != 1 {
			t.Fatalf("multilabel target %v is not an indicator", v)
		}
	}

	y := mat.Col(nil, 0, data.Regression.YTrain)
	if mean, std := stat.PopMeanStdDev(y, nil); math.Abs(mean) > 1e-9 || math.Abs(std-1) > 1e-9 {
		t.Errorf("target: mean=%v std=%v", mean, std)
	}
}

func TestGenerateComplexityData_Invalid(t *testing.T) {
	tests := []DataConfig{
		{Samples: 100, Features: 10, TrainFraction: 0},
		{Samples: 100, Features: 10, TrainFraction: 1},
		{Samples: 100, Features: 2, TrainFraction: 0.8},
	}
	for _, cfg := range tests {
		if _, err := GenerateComplexityData(cfg); err == nil {
			t.Errorf("GenerateComplexityData(%+v) should fail", cfg)
		}
	}
}

func TestDefaultConfigs(t *testing.T) {
	data, err := GenerateComplexityData(DataConfig{Samples: 120, Features: 8, TrainFraction: 0.8, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	configs := DefaultConfigs(data, 2, 1)

	want := map[string]string{
		"SGDClassifier":             "l1_ratio",
		"NuSVR":                     "nu",
		"GradientBoostingRegressor": "n_estimators",
		"SGDClassifier multilabel":  "l1_ratio",
	}
	if len(configs) != len(want) {
		t.Fatalf("got %d configs, want %d", len(configs), len(want))
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: %v", cfg.Name, err)
		}
		if want[cfg.Name] != cfg.ParamName {
			t.Errorf("%s varies %q, want %q", cfg.Name, cfg.ParamName, want[cfg.Name])
		}
		if cfg.ComplexityLabel == cfg.ParamName {
			t.Errorf("%s: complexity label duplicates the parameter column %q", cfg.Name, cfg.ParamName)
		}
		// 固定パラメータと全ての値が推定器に受け入れられる
		for _, v := range cfg.ParamValues {
			params := map[string]interface{}{cfg.ParamName: v}
			for k, fv := range cfg.FixedParams {
				params[k] = fv
			}
			if err := cfg.Estimator().SetParams(params); err != nil {
				t.Errorf("%s: SetParams(%v): %v", cfg.Name, params, err)
			}
		}
	}

	// 高速な3つは実際に回して確かめる
	for _, cfg := range []Config{configs[0], configs[2], configs[3]} {
		res, err := Sweep(cfg)
		if err != nil {
			t.Fatalf("%s: %v", cfg.Name, err)
		}
		if res.Len() != len(cfg.ParamValues) {
			t.Errorf("%s: %d points", cfg.Name, res.Len())
		}
	}

	// マルチラベルは出力ごとに1行の係数を持ち、誤差は要素単位のハミング損失
	res, err := Sweep(configs[3])
	if err != nil {
		t.Fatal(err)
	}
	_, d := data.Multilabel.XTrain.Dims()
	for i, c := range res.Complexity {
		if c < 1 || c > float64(multilabelOutputs*d) {
			t.Errorf("point %d: %v non-zero coefficients, want within [1, %d]", i, c, multilabelOutputs*d)
		}
		if e := res.Error[i]; e < 0 || e > 1 {
			t.Errorf("point %d: Hamming loss %v out of range", i, e)
		}
	}
}

func TestDefaultOOBConfig(t *testing.T) {
	cfg, err := DefaultOOBConfig(DefaultOOBDataConfig(), 15, 150, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Ensembles) != 3 {
		t.Fatalf("got %d ensembles, want 3", len(cfg.Ensembles))
	}
	if r, c := cfg.X.Dims(); r != 500 || c != 25 {
		t.Errorf("X dims = %d×%d, want 500×25", r, c)
	}
	classes := map[float64]bool{}
	for _, v := range mat.Col(nil, 0, cfg.Y) {
		classes[v] = true
	}
	if len(classes) != 3 {
		t.Errorf("got %d classes, want 3", len(classes))
	}
}

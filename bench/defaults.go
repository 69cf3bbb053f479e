package bench

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/datasets"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/sklearn/ensemble"
	"github.com/YuminosukeSato/modelbench/sklearn/linear_model"
	"github.com/YuminosukeSato/modelbench/sklearn/multioutput"
	"github.com/YuminosukeSato/modelbench/sklearn/svm"
)

// DataConfig は複雑さベンチマーク用データの生成設定
type DataConfig struct {
	Samples       int
	Features      int
	TrainFraction float64
	Seed          uint64
}

// DefaultDataConfig はCLIのデフォルトと同じ設定を返す
func DefaultDataConfig() DataConfig {
	return DataConfig{Samples: 1000, Features: 50, TrainFraction: 0.8, Seed: 0}
}

// multilabelOutputs はマルチラベル問題のラベル数
const multilabelOutputs = 5

// ComplexityData は分類、マルチラベル分類、回帰のデータ分割
type ComplexityData struct {
	Classification *datasets.Split
	Multilabel     *datasets.Split // 特徴量のみ標準化済み、Yは n × 5 の 0/1 行列
	Regression     *datasets.Split // 特徴量と目的変数を標準化済み
}

// GenerateComplexityData は多クラス分類、マルチラベル分類、回帰の3問題を生成して分割する。
// マルチラベルと回帰のデータは訓練部分で学習したスケーラーで標準化する。
func GenerateComplexityData(cfg DataConfig) (*ComplexityData, error) {
	if cfg.TrainFraction <= 0 || cfg.TrainFraction >= 1 {
		return nil, errors.NewValidationError("train_fraction", "must be in (0, 1)", cfg.TrainFraction)
	}
	if cfg.Features < 4 {
		return nil, errors.NewValidationError("features", "must be at least 4", cfg.Features)
	}
	test := 1 - cfg.TrainFraction

	Xc, yc, err := datasets.MakeClassification(datasets.ClassificationConfig{
		NSamples:     cfg.Samples,
		NFeatures:    cfg.Features,
		NInformative: max(2, cfg.Features/5),
		NRedundant:   cfg.Features / 10,
		NClasses:     4,
		FlipY:        0.01,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "classification data")
	}
	cls, err := datasets.TrainTestSplit(Xc, yc, test, cfg.Seed)
	if err != nil {
		return nil, errors.Wrapf(err, "classification split")
	}

	Xm, Ym, err := datasets.MakeMultilabelClassification(datasets.MultilabelConfig{
		NSamples:  cfg.Samples,
		NFeatures: cfg.Features,
		NClasses:  multilabelOutputs,
		NLabels:   2,
		Length:    50,
		Seed:      cfg.Seed + 2,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "multilabel data")
	}
	ml, err := datasets.TrainTestSplit(Xm, Ym, test, cfg.Seed)
	if err != nil {
		return nil, errors.Wrapf(err, "multilabel split")
	}
	if err := standardize(ml, false); err != nil {
		return nil, errors.Wrapf(err, "multilabel scaling")
	}

	Xr, yr, _, err := datasets.MakeRegression(datasets.RegressionConfig{
		NSamples:     cfg.Samples,
		NFeatures:    cfg.Features,
		NInformative: max(1, cfg.Features/5),
		Noise:        10,
		Seed:         cfg.Seed + 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "regression data")
	}
	reg, err := datasets.TrainTestSplit(Xr, yr, test, cfg.Seed)
	if err != nil {
		return nil, errors.Wrapf(err, "regression split")
	}
	if err := standardize(reg, true); err != nil {
		return nil, errors.Wrapf(err, "regression scaling")
	}
	return &ComplexityData{Classification: cls, Multilabel: ml, Regression: reg}, nil
}

type scaledPair struct {
	scaler       model.Transformer
	train, other **mat.Dense
}

// standardize は X を、target が true なら y も、訓練部分の統計量で標準化する
func standardize(s *datasets.Split, target bool) error {
	pairs := []scaledPair{{preprocessing.NewStandardScalerDefault(), &s.XTrain, &s.XTest}}
	if target {
		pairs = append(pairs, scaledPair{preprocessing.NewStandardScalerDefault(), &s.YTrain, &s.YTest})
	}
	for _, p := range pairs {
		train, err := p.scaler.FitTransform(*p.train)
		if err != nil {
			return err
		}
		other, err := p.scaler.Transform(*p.other)
		if err != nil {
			return err
		}
		*p.train, *p.other = mat.DenseCopyOf(train), mat.DenseCopyOf(other)
	}
	return nil
}

// DefaultConfigs は SGDClassifier、NuSVR、GradientBoostingRegressor、
// マルチラベルのSGDClassifierの4つのスイープ設定を返す
func DefaultConfigs(data *ComplexityData, repeats int, seed uint64) []Config {
	sgdParams := func() map[string]interface{} {
		return map[string]interface{}{
			"loss":          "modified_huber",
			"penalty":       "elasticnet",
			"alpha":         1e-3,
			"fit_intercept": true,
			"tol":           1e-3,
			"random_state":  seed,
		}
	}
	return []Config{
		{
			Name: "SGDClassifier",
			Estimator: func() model.Estimator {
				return linear_model.NewSGDClassifier()
			},
			FixedParams:     sgdParams(),
			ParamName:       "l1_ratio",
			ParamValues:     []interface{}{0.25, 0.5, 0.75, 0.9},
			Complexity:      NonZeroCoefficients,
			Error:           HammingLoss,
			Data:            data.Classification,
			PredictRepeats:  repeats,
			ComplexityLabel: "non-zero coefficients",
			ErrorLabel:      "Hamming loss",
		},
		{
			Name: "NuSVR",
			Estimator: func() model.Estimator {
				return svm.NewNuSVR()
			},
			FixedParams: map[string]interface{}{
				"C":     1e3,
				"gamma": math.Pow(2, -15),
			},
			ParamName:       "nu",
			ParamValues:     []interface{}{0.05, 0.1, 0.35, 0.5, 0.9},
			Complexity:      SupportVectors,
			Error:           MeanSquaredError,
			Data:            data.Regression,
			PredictRepeats:  repeats,
			ComplexityLabel: "support vectors",
			ErrorLabel:      "mean squared error",
		},
		{
			Name: "GradientBoostingRegressor",
			Estimator: func() model.Estimator {
				return ensemble.NewGradientBoostingRegressor()
			},
			FixedParams: map[string]interface{}{
				"loss":         "squared_error",
				"random_state": seed,
			},
			ParamName:       "n_estimators",
			ParamValues:     []interface{}{10, 50, 100},
			Complexity:      EstimatorCount,
			Error:           MeanSquaredError,
			Data:            data.Regression,
			PredictRepeats:  repeats,
			ComplexityLabel: "number of trees",
			ErrorLabel:      "mean squared error",
		},
		{
			Name: "SGDClassifier multilabel",
			Estimator: func() model.Estimator {
				return multioutput.NewMultiOutputClassifier(func() model.Estimator {
					return linear_model.NewSGDClassifier()
				})
			},
			FixedParams:     sgdParams(),
			ParamName:       "l1_ratio",
			ParamValues:     []interface{}{0.25, 0.5, 0.75, 0.9},
			Complexity:      NonZeroCoefficients,
			Error:           HammingLoss,
			Data:            data.Multilabel,
			PredictRepeats:  repeats,
			ComplexityLabel: "non-zero coefficients",
			ErrorLabel:      "Hamming loss",
		},
	}
}

// OOBDataConfig はOOBベンチマーク用データの生成設定
type OOBDataConfig struct {
	Samples  int
	Features int
	Classes  int
	Seed     uint64
}

// DefaultOOBDataConfig は500サンプル、25特徴量、3クラスの設定を返す
func DefaultOOBDataConfig() OOBDataConfig {
	return OOBDataConfig{Samples: 500, Features: 25, Classes: 3, Seed: 0}
}

// DefaultOOBConfig はmax_featuresの異なる3つのランダムフォレストでOOB追跡の設定を作る
func DefaultOOBConfig(data OOBDataConfig, minEstimators, maxEstimators, nJobs int) (OOBConfig, error) {
	X, y, err := datasets.MakeClassification(datasets.ClassificationConfig{
		NSamples:     data.Samples,
		NFeatures:    data.Features,
		NInformative: max(2, data.Features*3/5),
		NRedundant:   0,
		NClasses:     data.Classes,
		ClassSep:     1,
		Seed:         data.Seed,
	})
	if err != nil {
		return OOBConfig{}, errors.Wrapf(err, "oob data")
	}

	forest := func(maxFeatures interface{}) OOBFactory {
		return func() model.OOBEstimator {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithForestWarmStart(true),
				ensemble.WithOOBScore(true),
				ensemble.WithForestMaxFeatures(maxFeatures),
				ensemble.WithForestRandomState(data.Seed),
				ensemble.WithNJobs(nJobs),
			)
		}
	}

	var ensembles []Ensemble
	for _, mf := range []interface{}{"sqrt", "log2", nil} {
		label := "RandomForestClassifier, max_features=None"
		if mf != nil {
			label = fmt.Sprintf("RandomForestClassifier, max_features='%s'", mf)
		}
		ensembles = append(ensembles, Ensemble{Label: label, New: forest(mf)})
	}

	return OOBConfig{
		Ensembles:     ensembles,
		MinEstimators: minEstimators,
		MaxEstimators: maxEstimators,
		X:             X,
		Y:             y,
	}, nil
}

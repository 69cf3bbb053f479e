// Package bench は2つのベンチマークを実装します。
//
//   - Sweep: ハイパーパラメータを1つ変えながら推定器を学習し、
//     モデルの複雑さ・汎化誤差・予測レイテンシの組を集める
//   - TrackOOB: warm start したアンサンブルに木を1本ずつ追加し、
//     各サイズでのout-of-bag誤差を記録する
//
// どちらも逐次実行で、最初のエラーでそのまま失敗します。
package bench

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/datasets"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// Factory は未学習の推定器を新しく作る
type Factory func() model.Estimator

// ComplexityFunc は学習済み推定器からモデルの複雑さを取り出す
type ComplexityFunc func(est model.Estimator) (float64, error)

// ErrorFunc はテストラベルと予測から誤差を計算する
type ErrorFunc func(yTrue, yPred mat.Matrix) (float64, error)

// Config は1つのスイープ設定。Sweep は FixedParams を変更しない。
type Config struct {
	Name            string
	Estimator       Factory
	FixedParams     map[string]interface{}
	ParamName       string        // 変化させるハイパーパラメータ
	ParamValues     []interface{} // その値のリスト
	Complexity      ComplexityFunc
	Error           ErrorFunc
	Data            *datasets.Split
	PredictRepeats  int // レイテンシ計測のための予測回数
	ComplexityLabel string
	ErrorLabel      string
}

// Validate は設定を検証する
func (c *Config) Validate() error {
	switch {
	case c.Name == "":
		return errors.NewValidationError("name", "must not be empty", c.Name)
	case c.Estimator == nil:
		return errors.NewValidationError("estimator", "factory must not be nil", c.Name)
	case c.Complexity == nil:
		return errors.NewValidationError("complexity", "extractor must not be nil", c.Name)
	case c.Error == nil:
		return errors.NewValidationError("error", "extractor must not be nil", c.Name)
	case c.Data == nil:
		return errors.NewValidationError("data", "split must not be nil", c.Name)
	case c.ParamName == "":
		return errors.NewValidationError("param_name", "must not be empty", c.Name)
	case len(c.ParamValues) == 0:
		return errors.NewValidationError("param_values", "must not be empty", c.Name)
	case c.PredictRepeats < 1:
		return errors.NewValidationError("predict_repeats", "must be at least 1", c.PredictRepeats)
	}
	return nil
}

// Result はスイープ結果。全てのスライスは ParamValues と同じ長さで、同じ位置が対応する。
type Result struct {
	Name            string        `json:"name"`
	ParamName       string        `json:"param_name"`
	ParamValues     []interface{} `json:"param_values"`
	Complexity      []float64     `json:"complexity"`
	Error           []float64     `json:"error"`
	Latency         []float64     `json:"latency_seconds"`  // 予測1回あたりの平均時間
	FitTime         []float64     `json:"fit_time_seconds"` // 学習時間
	ComplexityLabel string        `json:"complexity_label"`
	ErrorLabel      string        `json:"error_label"`
}

// Len はスイープした点の数を返す
func (r *Result) Len() int {
	return len(r.ParamValues)
}

// Sweep は ParamValues の各値について推定器を学習し、
// 複雑さ・誤差・予測レイテンシを記録する。
func Sweep(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("bench.sweep").With(
		log.ConfigKey, cfg.Name,
		log.ParamNameKey, cfg.ParamName,
	)
	nTrain, nFeatures := cfg.Data.XTrain.Dims()
	logger.Info("Benchmarking",
		log.SamplesKey, nTrain,
		log.FeaturesKey, nFeatures,
		"values", len(cfg.ParamValues),
	)

	n := len(cfg.ParamValues)
	res := &Result{
		Name:            cfg.Name,
		ParamName:       cfg.ParamName,
		ParamValues:     append([]interface{}(nil), cfg.ParamValues...),
		Complexity:      make([]float64, 0, n),
		Error:           make([]float64, 0, n),
		Latency:         make([]float64, 0, n),
		FitTime:         make([]float64, 0, n),
		ComplexityLabel: cfg.ComplexityLabel,
		ErrorLabel:      cfg.ErrorLabel,
	}

	for _, value := range cfg.ParamValues {
		point, err := runPoint(&cfg, value)
		if err != nil {
			return nil, errors.Wrapf(err, "bench.Sweep %s: %s=%v", cfg.Name, cfg.ParamName, value)
		}
		res.Complexity = append(res.Complexity, point.complexity)
		res.Error = append(res.Error, point.err)
		res.Latency = append(res.Latency, point.latency)
		res.FitTime = append(res.FitTime, point.fitTime)

		logger.Info("Sweep point done",
			log.ParamValueKey, value,
			log.ComplexityKey, point.complexity,
			log.ErrorMetricKey, point.err,
			log.LatencyKey, point.latency,
			log.DurationMsKey, point.fitTime*1000,
		)
	}
	return res, nil
}

type sweepPoint struct {
	complexity float64
	err        float64
	latency    float64
	fitTime    float64
}

func runPoint(cfg *Config, value interface{}) (sweepPoint, error) {
	params := make(map[string]interface{}, len(cfg.FixedParams)+1)
	for k, v := range cfg.FixedParams {
		params[k] = v
	}
	params[cfg.ParamName] = value

	est := cfg.Estimator()
	if err := est.SetParams(params); err != nil {
		return sweepPoint{}, err
	}

	start := time.Now()
	if err := est.Fit(cfg.Data.XTrain, cfg.Data.YTrain); err != nil {
		return sweepPoint{}, err
	}
	fitTime := time.Since(start).Seconds()

	var pred mat.Matrix
	start = time.Now()
	for r := 0; r < cfg.PredictRepeats; r++ {
		var err error
		if pred, err = est.Predict(cfg.Data.XTest); err != nil {
			return sweepPoint{}, err
		}
	}
	latency := time.Since(start).Seconds() / float64(cfg.PredictRepeats)

	complexity, err := cfg.Complexity(est)
	if err != nil {
		return sweepPoint{}, err
	}
	predErr, err := cfg.Error(cfg.Data.YTest, pred)
	if err != nil {
		return sweepPoint{}, err
	}
	return sweepPoint{complexity: complexity, err: predErr, latency: latency, fitTime: fitTime}, nil
}

package linear_model

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// SGDRegressor は確率的勾配降下法で学習する線形回帰モデル。
// 損失は squared_error、huber、epsilon_insensitive をサポートする。
type SGDRegressor struct {
	sgdParams
	state *model.StateManager
	mu    sync.RWMutex

	coef_      []float64
	intercept_ float64
	nIter_     int
}

// NewSGDRegressor は新しいSGDRegressorを作成する。
// デフォルトは squared_error 損失、L2 正則化、invscaling 学習率（eta0=0.01, power_t=0.25）。
func NewSGDRegressor(options ...SGDOption) *SGDRegressor {
	reg := &SGDRegressor{
		sgdParams: sgdParams{
			loss:          "squared_error",
			penalty:       "l2",
			alpha:         1e-4,
			l1Ratio:       0.15,
			fitIntercept:  true,
			maxIter:       1000,
			tol:           1e-3,
			nIterNoChange: 5,
			shuffle:       true,
			learningRate:  "invscaling",
			eta0:          0.01,
			powerT:        0.25,
			epsilon:       0.1,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range options {
		opt(&reg.sgdParams)
	}
	return reg
}

// Fit はSGDでモデルを学習する
func (r *SGDRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SGDRegressor.Fit")

	r.mu.Lock()
	defer r.mu.Unlock()

	lf, err := r.validate(regressionLosses)
	if err != nil {
		return err
	}
	n, d, err := checkFitInput("SGDRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	if !r.warmStart || len(r.coef_) != d {
		r.coef_ = make([]float64, d)
		r.intercept_ = 0
	}

	nIter, converged, err := r.plainSGD(mat.DenseCopyOf(X), mat.Col(nil, 0, y), r.coef_, &r.intercept_, lf)
	if err != nil {
		r.state.Reset()
		return errors.Wrap(err, "SGDRegressor.Fit")
	}
	r.nIter_ = nIter
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SGDRegressor", nIter, "Maximum number of iterations reached"))
	}

	r.state.SetDimensions(d, n)
	r.state.SetFitted()

	log.GetLoggerWithName("linear_model.sgd").Debug("SGDRegressor fitted",
		log.ModelNameKey, "SGDRegressor",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.IterationKey, nIter,
	)
	return nil
}

// Predict は X·w + b を返す（n × 1）
func (r *SGDRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, d := X.Dims()
	if err := r.state.CheckPredictInput("SGDRegressor", "Predict", d); err != nil {
		return nil, err
	}
	coef := mat.NewDense(1, d, r.coef_)
	return decision(X, coef, []float64{r.intercept_}), nil
}

// Score は決定係数R²を返す
func (r *SGDRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	return metrics.R2Score(mat.NewVecDense(n, mat.Col(nil, 0, y)), mat.NewVecDense(n, mat.Col(nil, 0, pred)))
}

// Coef は学習済み係数のコピーを返す（1 × nFeatures）
func (r *SGDRegressor) Coef() *mat.Dense {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.coef_ == nil {
		return nil
	}
	return mat.NewDense(1, len(r.coef_), append([]float64(nil), r.coef_...))
}

// Intercept は学習済み切片を返す
func (r *SGDRegressor) Intercept() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.intercept_
}

// NIter は直近のFitで実行したエポック数を返す
func (r *SGDRegressor) NIter() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nIter_
}

// IsFitted は学習済みかどうかを返す
func (r *SGDRegressor) IsFitted() bool {
	return r.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (r *SGDRegressor) GetParams() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getParams()
}

// SetParams はハイパーパラメータを設定する
func (r *SGDRegressor) SetParams(params map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setParams("SGDRegressor", params)
}

// Package multioutput は単一出力の推定器を出力ごとに複製して多出力問題を扱うラッパーを提供します。
package multioutput

import (
	"maps"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// MultiOutputClassifier は Y の列ごとに1つの分類器を学習する。
// scikit-learnのMultiOutputClassifierと互換性を持つ。
// n_jobs 以外のパラメータは全ての内部推定器にそのまま渡す。
type MultiOutputClassifier struct {
	newEstimator func() model.Estimator
	params       map[string]interface{}
	nJobs        int

	state *model.StateManager
	mu    sync.RWMutex

	estimators_ []model.Estimator
}

// NewMultiOutputClassifier は newEstimator で作る分類器を出力ごとに学習するラッパーを作成する。
//
// 使用例:
//
//	clf := multioutput.NewMultiOutputClassifier(func() model.Estimator {
//	    return linear_model.NewSGDClassifier()
//	})
//	err := clf.SetParams(map[string]interface{}{"l1_ratio": 0.5})
//	err = clf.Fit(X, Y) // Y は n × nOutputs の 0/1 行列
func NewMultiOutputClassifier(newEstimator func() model.Estimator) *MultiOutputClassifier {
	return &MultiOutputClassifier{
		newEstimator: newEstimator,
		params:       map[string]interface{}{},
		nJobs:        1,
		state:        model.NewStateManager(),
	}
}

// Fit は各出力列に対して新しい推定器を学習する
func (m *MultiOutputClassifier) Fit(X, Y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MultiOutputClassifier.Fit")

	m.mu.Lock()
	defer m.mu.Unlock()

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("MultiOutputClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	ny, k := Y.Dims()
	if ny != n {
		return errors.NewDimensionError("MultiOutputClassifier.Fit", n, ny, 0)
	}
	if k < 2 {
		return errors.NewValueError("MultiOutputClassifier.Fit", "Y must have at least two outputs")
	}

	estimators := make([]model.Estimator, k)
	err = parallel.ForEach(k, parallel.Workers(m.nJobs), func(j int) error {
		est := m.newEstimator()
		if err := est.SetParams(m.params); err != nil {
			return err
		}
		y := mat.NewDense(n, 1, mat.Col(nil, j, Y))
		if err := est.Fit(X, y); err != nil {
			return errors.Wrapf(err, "MultiOutputClassifier.Fit: output %d", j)
		}
		estimators[j] = est
		return nil
	})
	if err != nil {
		m.state.Reset()
		return err
	}

	m.estimators_ = estimators
	m.state.SetDimensions(d, n)
	m.state.SetFitted()

	log.GetLoggerWithName("multioutput").Debug("MultiOutputClassifier fitted",
		log.ModelNameKey, "MultiOutputClassifier",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"outputs", k,
	)
	return nil
}

// Predict は n × nOutputs の予測行列を返す
func (m *MultiOutputClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, d := X.Dims()
	if err := m.state.CheckPredictInput("MultiOutputClassifier", "Predict", d); err != nil {
		return nil, err
	}
	pred := mat.NewDense(n, len(m.estimators_), nil)
	for j, est := range m.estimators_ {
		col, err := est.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "MultiOutputClassifier.Predict: output %d", j)
		}
		pred.SetCol(j, mat.Col(nil, 0, col))
	}
	return pred, nil
}

// Score はサンプル単位の完全一致率（subset accuracy）を返す
func (m *MultiOutputClassifier) Score(X, Y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(Y, pred)
}

// Coef は内部推定器の係数を縦に連結して返す。
// 内部推定器が係数を持たない場合や未学習の場合は nil。
func (m *MultiOutputClassifier) Coef() *mat.Dense {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out *mat.Dense
	for _, est := range m.estimators_ {
		c, ok := est.(interface{ Coef() *mat.Dense })
		if !ok {
			return nil
		}
		coef := c.Coef()
		if coef == nil {
			return nil
		}
		if out == nil {
			out = coef
			continue
		}
		var stacked mat.Dense
		stacked.Stack(out, coef)
		out = &stacked
	}
	return out
}

// Estimators は学習済みの内部推定器を出力順に返す
func (m *MultiOutputClassifier) Estimators() []model.Estimator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Estimator(nil), m.estimators_...)
}

// IsFitted は学習済みかどうかを返す
func (m *MultiOutputClassifier) IsFitted() bool {
	return m.state.IsFitted()
}

// GetParams は内部推定器のデフォルトに設定済みパラメータを重ねて返す
func (m *MultiOutputClassifier) GetParams() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	params := m.newEstimator().GetParams()
	maps.Copy(params, m.params)
	params["n_jobs"] = m.nJobs
	return params
}

// SetParams は n_jobs を自身に、それ以外を内部推定器に設定する。
// 内部推定器が受け付けないキーがあれば何も変更しない。
func (m *MultiOutputClassifier) SetParams(params map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := maps.Clone(m.params)
	nJobs := m.nJobs
	for key, value := range params {
		if key == "n_jobs" {
			v, err := model.ParamInt(key, value)
			if err != nil {
				return err
			}
			nJobs = v
			continue
		}
		next[key] = value
	}
	if err := m.newEstimator().SetParams(next); err != nil {
		return err
	}
	m.params, m.nJobs = next, nJobs
	return nil
}

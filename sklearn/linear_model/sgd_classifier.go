package linear_model

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// SGDClassifier は確率的勾配降下法で学習する線形分類器。
// scikit-learnのSGDClassifierと互換性を持ち、多クラスはone-vs-restで扱う。
// 2クラスの場合は重みベクトルを1本だけ持つ。
type SGDClassifier struct {
	sgdParams
	state *model.StateManager
	mu    sync.RWMutex

	coef_      *mat.Dense // nModels × nFeatures
	intercept_ []float64
	classes_   []float64
	nIter_     int
}

// NewSGDClassifier は新しいSGDClassifierを作成する。
// デフォルトは scikit-learn と同じく hinge 損失、L2 正則化、alpha=1e-4、
// optimal 学習率。
//
// 使用例:
//
//	clf := linear_model.NewSGDClassifier(
//	    linear_model.WithLoss("modified_huber"),
//	    linear_model.WithPenalty("elasticnet"),
//	    linear_model.WithL1Ratio(0.5),
//	)
//	err := clf.Fit(X, y)
func NewSGDClassifier(options ...SGDOption) *SGDClassifier {
	clf := &SGDClassifier{
		sgdParams: sgdParams{
			loss:          "hinge",
			penalty:       "l2",
			alpha:         1e-4,
			l1Ratio:       0.15,
			fitIntercept:  true,
			maxIter:       1000,
			tol:           1e-3,
			nIterNoChange: 5,
			shuffle:       true,
			learningRate:  "optimal",
			eta0:          0,
			powerT:        0.5,
			epsilon:       0.1,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range options {
		opt(&clf.sgdParams)
	}
	return clf
}

// Fit はone-vs-restでクラスごとの線形モデルを学習する
func (c *SGDClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SGDClassifier.Fit")

	c.mu.Lock()
	defer c.mu.Unlock()

	lf, err := c.validate(classificationLosses)
	if err != nil {
		return err
	}
	n, d, err := checkFitInput("SGDClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	labels := mat.Col(nil, 0, y)
	classes := uniqueSorted(labels)
	if len(classes) < 2 {
		return errors.NewValueError("SGDClassifier.Fit", "the number of classes has to be greater than one")
	}
	nModels := len(classes)
	if nModels == 2 {
		nModels = 1
	}

	reuse := c.warmStart && c.coef_ != nil && slices.Equal(c.classes_, classes)
	if reuse {
		if _, cd := c.coef_.Dims(); cd != d {
			reuse = false
		}
	}
	if !reuse {
		c.coef_ = mat.NewDense(nModels, d, nil)
		c.intercept_ = make([]float64, nModels)
	}
	c.classes_ = classes

	Xd := mat.DenseCopyOf(X)
	target := make([]float64, n)
	c.nIter_ = 0
	converged := true
	for k := 0; k < nModels; k++ {
		positive := classes[k]
		if nModels == 1 {
			positive = classes[1]
		}
		for i, v := range labels {
			target[i] = -1
			if v == positive {
				target[i] = 1
			}
		}

		nIter, ok, err := c.plainSGD(Xd, target, c.coef_.RawRowView(k), &c.intercept_[k], lf)
		if err != nil {
			c.state.Reset()
			return errors.Wrapf(err, "SGDClassifier.Fit: class %v", positive)
		}
		c.nIter_ = max(c.nIter_, nIter)
		converged = converged && ok
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SGDClassifier", c.nIter_, "Maximum number of iterations reached"))
	}

	c.state.SetDimensions(d, n)
	c.state.SetFitted()

	log.GetLoggerWithName("linear_model.sgd").Debug("SGDClassifier fitted",
		log.ModelNameKey, "SGDClassifier",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.IterationKey, c.nIter_,
	)
	return nil
}

// DecisionFunction は各サンプルの符号付き距離を返す。
// 2クラスの場合は n × 1、それ以外は n × nClasses。
func (c *SGDClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, d := X.Dims()
	if err := c.state.CheckPredictInput("SGDClassifier", "DecisionFunction", d); err != nil {
		return nil, err
	}
	return decision(X, c.coef_, c.intercept_), nil
}

// Predict はクラスラベルを予測する（n × 1）
func (c *SGDClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := c.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	n, k := scores.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if k == 1 {
			if scores.At(i, 0) > 0 {
				pred.Set(i, 0, c.classes_[1])
			} else {
				pred.Set(i, 0, c.classes_[0])
			}
			continue
		}
		pred.Set(i, 0, c.classes_[floats.MaxIdx(scores.RawRowView(i))])
	}
	return pred, nil
}

// PredictProba は各クラスの確率を推定する。
// log_loss と modified_huber 損失でのみ利用可能。
func (c *SGDClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	c.mu.RLock()
	loss := c.loss
	c.mu.RUnlock()

	var link func(float64) float64
	switch loss {
	case "log_loss":
		link = func(z float64) float64 { return 1 / (1 + errors.StabilizeExp(-z)) }
	case "modified_huber":
		link = func(z float64) float64 { return (math.Max(-1, math.Min(1, z)) + 1) / 2 }
	default:
		return nil, errors.NewValueError("SGDClassifier.PredictProba", "probability estimates are not available for loss="+loss)
	}

	scores, err := c.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	n, k := scores.Dims()
	if k == 1 {
		proba := mat.NewDense(n, 2, nil)
		for i := 0; i < n; i++ {
			p := link(scores.At(i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
		return proba, nil
	}

	proba := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := proba.RawRowView(i)
		for j := range row {
			row[j] = link(scores.At(i, j))
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		} else {
			for j := range row {
				row[j] = 1 / float64(k)
			}
		}
	}
	return proba, nil
}

// Score は正解率を返す
func (c *SGDClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Coef は学習済み係数のコピーを返す（nModels × nFeatures）
func (c *SGDClassifier) Coef() *mat.Dense {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coef_ == nil {
		return nil
	}
	return mat.DenseCopyOf(c.coef_)
}

// Intercept は学習済み切片のコピーを返す
func (c *SGDClassifier) Intercept() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.intercept_)
}

// Classes は学習時に見たクラスラベルを昇順で返す
func (c *SGDClassifier) Classes() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.classes_)
}

// NIter は直近のFitで実行した最大エポック数を返す
func (c *SGDClassifier) NIter() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nIter_
}

// IsFitted は学習済みかどうかを返す
func (c *SGDClassifier) IsFitted() bool {
	return c.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (c *SGDClassifier) GetParams() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getParams()
}

// SetParams はハイパーパラメータを設定する
func (c *SGDClassifier) SetParams(params map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setParams("SGDClassifier", params)
}

func uniqueSorted(values []float64) []float64 {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

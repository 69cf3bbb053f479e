package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// sgdParams は SGDClassifier と SGDRegressor が共有するハイパーパラメータ
type sgdParams struct {
	loss          string  // 損失関数
	penalty       string  // 正則化: "l2", "l1", "elasticnet", "none"
	alpha         float64 // 正則化の強さ
	l1Ratio       float64 // elasticnetにおけるL1の割合
	fitIntercept  bool    // 切片を学習するか
	maxIter       int     // 最大エポック数
	tol           float64 // 収束判定の許容誤差（0以下で無効）
	nIterNoChange int     // 改善なしで停止するまでのエポック数
	shuffle       bool    // 各エポックでデータをシャッフルするか
	randomState   uint64  // 乱数シード
	learningRate  string  // 学習率スケジュール: "optimal", "constant", "invscaling"
	eta0          float64 // constant/invscalingの初期学習率
	powerT        float64 // invscalingの指数
	epsilon       float64 // huber/epsilon_insensitiveのepsilon
	warmStart     bool    // 前回の係数から学習を再開するか
}

// SGDOption は SGDClassifier / SGDRegressor の設定オプション
type SGDOption func(*sgdParams)

// WithLoss は損失関数を設定
func WithLoss(loss string) SGDOption {
	return func(p *sgdParams) { p.loss = loss }
}

// WithPenalty は正則化の種類を設定
func WithPenalty(penalty string) SGDOption {
	return func(p *sgdParams) { p.penalty = penalty }
}

// WithAlpha は正則化の強さを設定
func WithAlpha(alpha float64) SGDOption {
	return func(p *sgdParams) { p.alpha = alpha }
}

// WithL1Ratio はelasticnetのL1比率を設定
func WithL1Ratio(ratio float64) SGDOption {
	return func(p *sgdParams) { p.l1Ratio = ratio }
}

// WithFitIntercept は切片学習の有無を設定
func WithFitIntercept(fit bool) SGDOption {
	return func(p *sgdParams) { p.fitIntercept = fit }
}

// WithMaxIter は最大エポック数を設定
func WithMaxIter(maxIter int) SGDOption {
	return func(p *sgdParams) { p.maxIter = maxIter }
}

// WithTol は収束判定の許容誤差を設定
func WithTol(tol float64) SGDOption {
	return func(p *sgdParams) { p.tol = tol }
}

// WithShuffle は各エポックのシャッフル有無を設定
func WithShuffle(shuffle bool) SGDOption {
	return func(p *sgdParams) { p.shuffle = shuffle }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed uint64) SGDOption {
	return func(p *sgdParams) { p.randomState = seed }
}

// WithLearningRate は学習率スケジュールと初期学習率を設定
func WithLearningRate(schedule string, eta0 float64) SGDOption {
	return func(p *sgdParams) {
		p.learningRate = schedule
		p.eta0 = eta0
	}
}

// WithEpsilon はhuber/epsilon_insensitive損失のepsilonを設定
func WithEpsilon(epsilon float64) SGDOption {
	return func(p *sgdParams) { p.epsilon = epsilon }
}

// WithWarmStart はウォームスタートを設定
func WithWarmStart(warm bool) SGDOption {
	return func(p *sgdParams) { p.warmStart = warm }
}

func (p *sgdParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":             p.loss,
		"penalty":          p.penalty,
		"alpha":            p.alpha,
		"l1_ratio":         p.l1Ratio,
		"fit_intercept":    p.fitIntercept,
		"max_iter":         p.maxIter,
		"tol":              p.tol,
		"n_iter_no_change": p.nIterNoChange,
		"shuffle":          p.shuffle,
		"random_state":     p.randomState,
		"learning_rate":    p.learningRate,
		"eta0":             p.eta0,
		"power_t":          p.powerT,
		"epsilon":          p.epsilon,
		"warm_start":       p.warmStart,
	}
}

// setParams は全てのキーを検証してから適用する。失敗時は何も変更しない。
func (p *sgdParams) setParams(modelName string, params map[string]interface{}) error {
	next := *p
	for key, value := range params {
		var err error
		switch key {
		case "loss":
			next.loss, err = model.ParamString(key, value)
		case "penalty":
			next.penalty, err = model.ParamString(key, value)
		case "alpha":
			next.alpha, err = model.ParamFloat(key, value)
		case "l1_ratio":
			next.l1Ratio, err = model.ParamFloat(key, value)
		case "fit_intercept":
			next.fitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			next.maxIter, err = model.ParamInt(key, value)
		case "tol":
			next.tol, err = model.ParamFloat(key, value)
		case "n_iter_no_change":
			next.nIterNoChange, err = model.ParamInt(key, value)
		case "shuffle":
			next.shuffle, err = model.ParamBool(key, value)
		case "random_state":
			next.randomState, err = model.ParamSeed(key, value)
		case "learning_rate":
			next.learningRate, err = model.ParamString(key, value)
		case "eta0":
			next.eta0, err = model.ParamFloat(key, value)
		case "power_t":
			next.powerT, err = model.ParamFloat(key, value)
		case "epsilon":
			next.epsilon, err = model.ParamFloat(key, value)
		case "warm_start":
			next.warmStart, err = model.ParamBool(key, value)
		default:
			err = model.UnknownParam(modelName, key)
		}
		if err != nil {
			return err
		}
	}
	*p = next
	return nil
}

func (p *sgdParams) validate(losses map[string]func(float64) lossFunction) (lossFunction, error) {
	newLoss, ok := losses[p.loss]
	if !ok {
		return nil, errors.NewValidationError("loss", "unsupported loss", p.loss)
	}
	switch p.penalty {
	case "l2", "l1", "elasticnet", "none", "":
	default:
		return nil, errors.NewValidationError("penalty", "must be one of l2, l1, elasticnet, none", p.penalty)
	}
	if p.alpha < 0 {
		return nil, errors.NewValidationError("alpha", "must be non-negative", p.alpha)
	}
	if p.l1Ratio < 0 || p.l1Ratio > 1 {
		return nil, errors.NewValidationError("l1_ratio", "must be in [0, 1]", p.l1Ratio)
	}
	if p.maxIter < 1 {
		return nil, errors.NewValidationError("max_iter", "must be at least 1", p.maxIter)
	}
	if p.nIterNoChange < 1 {
		return nil, errors.NewValidationError("n_iter_no_change", "must be at least 1", p.nIterNoChange)
	}
	switch p.learningRate {
	case "optimal":
		if p.alpha == 0 {
			return nil, errors.NewValidationError("alpha", "must be positive with learning_rate='optimal'", p.alpha)
		}
	case "constant", "invscaling":
		if p.eta0 <= 0 {
			return nil, errors.NewValidationError("eta0", "must be positive", p.eta0)
		}
	default:
		return nil, errors.NewValidationError("learning_rate", "must be one of optimal, constant, invscaling", p.learningRate)
	}
	return newLoss(p.epsilon), nil
}

// l1Share は正則化項のうちL1が占める割合を返す
func (p *sgdParams) l1Share() float64 {
	switch p.penalty {
	case "l1":
		return 1
	case "elasticnet":
		return p.l1Ratio
	case "l2":
		return 0
	default:
		return -1 // 正則化なし
	}
}

// plainSGD は1つの線形モデル（重みwと切片b）をSGDで学習する。
// L1成分は累積ペナルティ付き切り詰め勾配で適用するため、係数は厳密に0になり得る。
// 実行したエポック数と収束したかどうかを返す。
func (p *sgdParams) plainSGD(X *mat.Dense, y, w []float64, b *float64, lf lossFunction) (int, bool, error) {
	n, d := X.Dims()
	rng := rand.New(rand.NewPCG(p.randomState, p.randomState))

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	var optimalInit float64
	if p.learningRate == "optimal" {
		typw := math.Sqrt(1 / math.Sqrt(p.alpha))
		initialEta := typw / math.Max(1, lf.dloss(-typw, 1))
		optimalInit = 1 / (initialEta * p.alpha)
	}

	l1 := p.l1Share()
	var q []float64
	var u float64
	if l1 > 0 {
		q = make([]float64, d)
	}

	t := 1.0
	bestLoss := math.Inf(1)
	noImprovement := 0

	for epoch := 1; epoch <= p.maxIter; epoch++ {
		if p.shuffle {
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var sumLoss float64
		for _, i := range order {
			x := X.RawRowView(i)
			pred := floats.Dot(w, x) + *b

			var eta float64
			switch p.learningRate {
			case "optimal":
				eta = 1 / (p.alpha * (optimalInit + t - 1))
			case "invscaling":
				eta = p.eta0 / math.Pow(t, p.powerT)
			default:
				eta = p.eta0
			}

			sumLoss += lf.loss(pred, y[i])
			update := -eta * math.Max(-1e12, math.Min(1e12, lf.dloss(pred, y[i])))

			if l1 >= 0 && l1 < 1 {
				floats.Scale(math.Max(0, 1-(1-l1)*eta*p.alpha), w)
			}
			if update != 0 {
				floats.AddScaled(w, update, x)
				if p.fitIntercept {
					*b += update
				}
			}
			if l1 > 0 {
				u += l1 * eta * p.alpha
				truncateL1(w, q, u)
			}
			t++
		}

		if err := errors.CheckNumericalStability("sgd_update", w, epoch); err != nil {
			return epoch, false, err
		}
		if err := errors.CheckScalar("sgd_intercept", *b, epoch); err != nil {
			return epoch, false, err
		}

		if p.tol > 0 {
			if sumLoss > bestLoss-p.tol*float64(n) {
				noImprovement++
			} else {
				noImprovement = 0
			}
			if sumLoss < bestLoss {
				bestLoss = sumLoss
			}
			if noImprovement >= p.nIterNoChange {
				return epoch, true, nil
			}
		}
	}
	return p.maxIter, p.tol <= 0, nil
}

// truncateL1 は累積L1ペナルティuのうち未適用分を各係数に適用する。
// qには各係数に実際に適用されたペナルティの累計を保持する。
func truncateL1(w, q []float64, u float64) {
	for j, z := range w {
		switch {
		case z > 0:
			w[j] = math.Max(0, z-(u+q[j]))
		case z < 0:
			w[j] = math.Min(0, z+(u-q[j]))
		}
		q[j] += w[j] - z
	}
}

// decision は X·Wᵀ + b を計算する（n × nModels）
func decision(X mat.Matrix, coef *mat.Dense, intercept []float64) *mat.Dense {
	n, _ := X.Dims()
	k, _ := coef.Dims()
	scores := mat.NewDense(n, k, nil)
	scores.Mul(X, coef.T())
	for i := 0; i < n; i++ {
		floats.Add(scores.RawRowView(i), intercept)
	}
	return scores
}

func checkFitInput(op string, X, y mat.Matrix) (int, int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ny, cy := y.Dims()
	if ny != n {
		return 0, 0, errors.NewDimensionError(op, n, ny, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, cy, 1)
	}
	return n, d, nil
}

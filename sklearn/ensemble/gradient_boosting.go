package ensemble

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
)

// gbParams はGradientBoostingRegressorのハイパーパラメータ
type gbParams struct {
	loss            string // "squared_error", "absolute_error"
	learningRate    float64
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     interface{}
	subsample       float64
	randomState     uint64
	warmStart       bool
}

// GradientBoostingRegressor は回帰木を負の勾配に逐次当てはめる勾配ブースティング。
// squared_error では残差、absolute_error では残差の符号に木を学習し、
// absolute_error の葉の値は残差の中央値に置き換える。
type GradientBoostingRegressor struct {
	gbParams
	state *model.StateManager
	mu    sync.RWMutex

	init_       float64
	estimators_ []*tree.DecisionTreeRegressor
	trainScore_ []float64
}

// GBOption はGradientBoostingRegressorの設定オプション
type GBOption func(*gbParams)

// WithGBLoss は損失関数を設定
func WithGBLoss(loss string) GBOption {
	return func(p *gbParams) { p.loss = loss }
}

// WithGBLearningRate は各木の寄与の縮小率を設定
func WithGBLearningRate(lr float64) GBOption {
	return func(p *gbParams) { p.learningRate = lr }
}

// WithGBNEstimators はブースティングのステージ数を設定
func WithGBNEstimators(n int) GBOption {
	return func(p *gbParams) { p.nEstimators = n }
}

// WithGBMaxDepth は各回帰木の最大深さを設定
func WithGBMaxDepth(depth int) GBOption {
	return func(p *gbParams) { p.maxDepth = depth }
}

// WithGBSubsample は各ステージで使うサンプルの割合を設定
func WithGBSubsample(fraction float64) GBOption {
	return func(p *gbParams) { p.subsample = fraction }
}

// WithGBRandomState は乱数シードを設定
func WithGBRandomState(seed uint64) GBOption {
	return func(p *gbParams) { p.randomState = seed }
}

// WithGBWarmStart はウォームスタートを設定
func WithGBWarmStart(warm bool) GBOption {
	return func(p *gbParams) { p.warmStart = warm }
}

// NewGradientBoostingRegressor は新しいGradientBoostingRegressorを作成する。
// デフォルトは squared_error、learning_rate=0.1、100ステージ、max_depth=3、subsample=1。
func NewGradientBoostingRegressor(options ...GBOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		gbParams: gbParams{
			loss:            "squared_error",
			learningRate:    0.1,
			nEstimators:     100,
			maxDepth:        3,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			subsample:       1,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range options {
		opt(&g.gbParams)
	}
	return g
}

func (p *gbParams) validate() error {
	switch p.loss {
	case "squared_error", "absolute_error":
	default:
		return errors.NewValidationError("loss", "must be squared_error or absolute_error", p.loss)
	}
	if p.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.learningRate)
	}
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.nEstimators)
	}
	if p.subsample <= 0 || p.subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.subsample)
	}
	return nil
}

// stageLoss は重み付きの平均損失を返す
func (p *gbParams) stageLoss(y, raw, w []float64) float64 {
	var sum, total float64
	for i := range y {
		if w[i] == 0 {
			continue
		}
		r := y[i] - raw[i]
		if p.loss == "absolute_error" {
			sum += w[i] * math.Abs(r)
		} else {
			sum += w[i] * r * r
		}
		total += w[i]
	}
	return sum / total
}

// Fit はブースティングを実行する。warm_start が有効なら既存のステージに追加する。
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ny, cy := y.Dims(); ny != n {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", n, ny, 0)
	} else if cy != 1 {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", 1, cy, 1)
	}

	Xd := mat.DenseCopyOf(X)
	target := mat.Col(nil, 0, y)

	if !g.warmStart || len(g.estimators_) == 0 {
		g.estimators_ = nil
		g.trainScore_ = nil
		g.init_ = g.initialPrediction(target)
	} else if fd, _ := g.state.GetDimensions(); fd != d {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", fd, d, 1)
	}

	begin := len(g.estimators_)
	if g.nEstimators < begin {
		return errors.Wrapf(errors.ErrWarmStartShrink, "GradientBoostingRegressor.Fit: n_estimators=%d, len(estimators_)=%d", g.nEstimators, begin)
	}

	raw := g.rawPredict(Xd)
	grad := mat.NewDense(n, 1, nil)
	stage := make([]float64, n)
	for m := begin; m < g.nEstimators; m++ {
		w := g.subsampleWeights(m, n)

		for i := 0; i < n; i++ {
			r := target[i] - raw[i]
			if g.loss == "absolute_error" {
				r = sign(r)
			}
			grad.Set(i, 0, r)
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(g.maxDepth),
			tree.WithMinSamplesSplit(g.minSamplesSplit),
			tree.WithMinSamplesLeaf(g.minSamplesLeaf),
			tree.WithMaxFeatures(g.maxFeatures),
			tree.WithRandomState(g.randomState+uint64(m)),
		)
		if err := t.FitWeighted(Xd, grad, w); err != nil {
			return errors.Wrapf(err, "GradientBoostingRegressor.Fit: stage %d", m)
		}
		if g.loss == "absolute_error" {
			if err := medianLeaves(t, Xd, target, raw, w); err != nil {
				return errors.Wrapf(err, "GradientBoostingRegressor.Fit: stage %d", m)
			}
		}

		pred, err := t.Predict(Xd)
		if err != nil {
			return err
		}
		mat.Col(stage, 0, pred)
		floats.AddScaled(raw, g.learningRate, stage)
		if err := errors.CheckNumericalStability("gradient_boosting", raw, m); err != nil {
			return err
		}

		g.estimators_ = append(g.estimators_, t)
		g.trainScore_ = append(g.trainScore_, g.stageLoss(target, raw, w))
	}

	g.state.SetDimensions(d, n)
	g.state.SetFitted()

	log.GetLoggerWithName("ensemble.gradient_boosting").Debug("GradientBoostingRegressor fitted",
		log.ModelNameKey, "GradientBoostingRegressor",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.NEstimatorsKey, len(g.estimators_),
	)
	return nil
}

func (g *GradientBoostingRegressor) initialPrediction(y []float64) float64 {
	if g.loss == "absolute_error" {
		sorted := slices.Clone(y)
		slices.Sort(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return stat.Mean(y, nil)
}

// subsampleWeights はステージmで使うサンプルを非復元抽出で選ぶ。
// ステージ番号からシードを作るので warm start でも同じ標本になる。
func (g *GradientBoostingRegressor) subsampleWeights(m, n int) []float64 {
	w := make([]float64, n)
	if g.subsample >= 1 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	rng := rand.New(rand.NewPCG(g.randomState, uint64(m)))
	nIn := max(1, int(g.subsample*float64(n)))
	for _, i := range rng.Perm(n)[:nIn] {
		w[i] = 1
	}
	return w
}

// medianLeaves は各葉の値を、その葉に入る学習サンプルの残差の中央値にする
func medianLeaves(t *tree.DecisionTreeRegressor, X *mat.Dense, y, raw, w []float64) error {
	leaves, err := t.Apply(X)
	if err != nil {
		return err
	}
	residuals := make(map[int][]float64)
	for i, leaf := range leaves {
		if w[i] > 0 {
			residuals[leaf] = append(residuals[leaf], y[i]-raw[i])
		}
	}
	for leaf, r := range residuals {
		slices.Sort(r)
		if err := t.SetLeafValue(leaf, stat.Quantile(0.5, stat.Empirical, r, nil)); err != nil {
			return err
		}
	}
	return nil
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (g *GradientBoostingRegressor) rawPredict(X mat.Matrix) []float64 {
	n, _ := X.Dims()
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.init_
	}
	stage := make([]float64, n)
	for _, t := range g.estimators_ {
		pred, err := t.Predict(X)
		if err != nil {
			panic(err)
		}
		mat.Col(stage, 0, pred)
		floats.AddScaled(raw, g.learningRate, stage)
	}
	return raw
}

// Predict は init + learning_rate·Σ tree(x) を返す（n × 1）
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, d := X.Dims()
	if err := g.state.CheckPredictInput("GradientBoostingRegressor", "Predict", d); err != nil {
		return nil, err
	}
	return mat.NewDense(n, 1, g.rawPredict(X)), nil
}

// Score は決定係数R²を返す
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	return metrics.R2Score(mat.NewVecDense(n, mat.Col(nil, 0, y)), mat.NewVecDense(n, mat.Col(nil, 0, pred)))
}

// NEstimators は学習済みのステージ数を返す
func (g *GradientBoostingRegressor) NEstimators() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.estimators_)
}

// TrainScore は各ステージ後の学習標本上の損失を返す
func (g *GradientBoostingRegressor) TrainScore() []float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.trainScore_)
}

// Estimators は各ステージの回帰木を返す
func (g *GradientBoostingRegressor) Estimators() []*tree.DecisionTreeRegressor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.estimators_)
}

// IsFitted は学習済みかどうかを返す
func (g *GradientBoostingRegressor) IsFitted() bool {
	return g.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return map[string]interface{}{
		"loss":              g.loss,
		"learning_rate":     g.learningRate,
		"n_estimators":      g.nEstimators,
		"max_depth":         g.maxDepth,
		"min_samples_split": g.minSamplesSplit,
		"min_samples_leaf":  g.minSamplesLeaf,
		"max_features":      g.maxFeatures,
		"subsample":         g.subsample,
		"random_state":      g.randomState,
		"warm_start":        g.warmStart,
	}
}

// SetParams はハイパーパラメータを設定する。失敗時は何も変更しない。
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.gbParams
	for key, value := range params {
		var err error
		switch key {
		case "loss":
			next.loss, err = model.ParamString(key, value)
		case "learning_rate":
			next.learningRate, err = model.ParamFloat(key, value)
		case "n_estimators":
			next.nEstimators, err = model.ParamInt(key, value)
		case "max_depth":
			if value == nil {
				next.maxDepth = -1
			} else {
				next.maxDepth, err = model.ParamInt(key, value)
			}
		case "min_samples_split":
			next.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			next.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			next.maxFeatures = value
		case "subsample":
			next.subsample, err = model.ParamFloat(key, value)
		case "random_state":
			next.randomState, err = model.ParamSeed(key, value)
		case "warm_start":
			next.warmStart, err = model.ParamBool(key, value)
		default:
			err = model.UnknownParam("GradientBoostingRegressor", key)
		}
		if err != nil {
			return err
		}
	}
	g.gbParams = next
	return nil
}

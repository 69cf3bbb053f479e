// Package ensemble は決定木のアンサンブル（ランダムフォレスト、勾配ブースティング）を提供します。
package ensemble

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
)

// bootstrapStream はブートストラップ用の乱数ストリームを木の乱数と分けるための定数
const bootstrapStream = 0x9e3779b97f4a7c15

// RandomForestClassifier はブートストラップ標本で学習した分類木の集合。
// 各木のシードは random_state から作る1本の乱数列から順に引くため、
// warm start で少しずつ木を増やしても、同じ本数を一度に学習した森と一致する。
type RandomForestClassifier struct {
	forestParams
	state *model.StateManager
	mu    sync.RWMutex

	estimators_   []*tree.DecisionTreeClassifier
	seeds_        []uint64
	classes_      []float64
	oobScore_     float64
	oobDecision_  *mat.Dense
	oobAvailable_ bool
}

// ForestOption はRandomForestClassifierの設定オプション
type ForestOption func(*RandomForestClassifier)

// WithNEstimators は木の本数を設定
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.nEstimators = n }
}

// WithForestCriterion は不純度の基準を設定
func WithForestCriterion(criterion string) ForestOption {
	return func(f *RandomForestClassifier) { f.criterion = criterion }
}

// WithForestMaxDepth は各木の最大深さを設定（-1で制限なし）
func WithForestMaxDepth(depth int) ForestOption {
	return func(f *RandomForestClassifier) { f.maxDepth = depth }
}

// WithForestMinSamplesLeaf は葉の最小サンプル数を設定
func WithForestMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.minSamplesLeaf = n }
}

// WithForestMaxFeatures は各分割で検討する特徴量数を設定（nil, "sqrt", "log2", int, float64）
func WithForestMaxFeatures(maxFeatures interface{}) ForestOption {
	return func(f *RandomForestClassifier) { f.maxFeatures = maxFeatures }
}

// WithBootstrap はブートストラップ標本を使うかを設定
func WithBootstrap(bootstrap bool) ForestOption {
	return func(f *RandomForestClassifier) { f.bootstrap = bootstrap }
}

// WithOOBScore はout-of-bagスコアを計算するかを設定
func WithOOBScore(oob bool) ForestOption {
	return func(f *RandomForestClassifier) { f.oobScore = oob }
}

// WithForestWarmStart はウォームスタートを設定
func WithForestWarmStart(warm bool) ForestOption {
	return func(f *RandomForestClassifier) { f.warmStart = warm }
}

// WithForestRandomState は乱数シードを設定
func WithForestRandomState(seed uint64) ForestOption {
	return func(f *RandomForestClassifier) { f.randomState = seed }
}

// WithNJobs は並列数を設定（1で逐次、-1で全CPU）
func WithNJobs(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.nJobs = n }
}

// NewRandomForestClassifier は新しいランダムフォレストを作成する。
// デフォルトは100本、gini、max_features="sqrt"、bootstrap=true、n_jobs=1。
func NewRandomForestClassifier(options ...ForestOption) *RandomForestClassifier {
	f := &RandomForestClassifier{
		forestParams: forestParams{
			nEstimators:     100,
			criterion:       "gini",
			maxDepth:        -1,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			maxFeatures:     "sqrt",
			bootstrap:       true,
			nJobs:           1,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Fit は森を学習する。warm_start が有効なら既存の木を残して不足分だけ学習する。
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if f.oobScore && !f.bootstrap {
		return errors.NewValidationError("oob_score", "out of bag estimation only available if bootstrap=true", f.oobScore)
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ny, cy := y.Dims(); ny != n {
		return errors.NewDimensionError("RandomForestClassifier.Fit", n, ny, 0)
	} else if cy != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, cy, 1)
	}
	if _, err := tree.ResolveMaxFeatures(f.maxFeatures, d); err != nil {
		return err
	}

	labels := mat.Col(nil, 0, y)
	classes := slices.Clone(labels)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	if !f.warmStart || len(f.estimators_) == 0 {
		f.estimators_ = nil
		f.seeds_ = nil
	} else {
		if fd, _ := f.state.GetDimensions(); fd != d {
			return errors.NewDimensionError("RandomForestClassifier.Fit", fd, d, 1)
		}
		if !slices.Equal(f.classes_, classes) {
			return errors.NewValueError("RandomForestClassifier.Fit", "warm start requires the same classes as the previous fit")
		}
	}

	nMore := f.nEstimators - len(f.estimators_)
	if nMore < 0 {
		return errors.Wrapf(errors.ErrWarmStartShrink, "RandomForestClassifier.Fit: n_estimators=%d, len(estimators_)=%d", f.nEstimators, len(f.estimators_))
	}

	logger := log.GetLoggerWithName("ensemble.forest")
	if nMore == 0 {
		logger.Warn("Warm-start fitting without increasing n_estimators does not fit new trees",
			log.NEstimatorsKey, f.nEstimators)
	}

	// 既存の木の分だけ乱数列を進めてから新しいシードを引く
	rng := rand.New(rand.NewPCG(f.randomState, f.randomState))
	for range f.seeds_ {
		rng.Uint64()
	}
	newSeeds := make([]uint64, nMore)
	for i := range newSeeds {
		newSeeds[i] = rng.Uint64()
	}

	Xd := mat.DenseCopyOf(X)
	yd := mat.NewDense(n, 1, labels)
	newTrees := make([]*tree.DecisionTreeClassifier, nMore)
	err = parallel.ForEach(nMore, parallel.Workers(f.nJobs), func(i int) error {
		t := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(f.criterion),
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesSplit(f.minSamplesSplit),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
			tree.WithMaxFeatures(f.maxFeatures),
			tree.WithRandomState(newSeeds[i]),
		)
		var w []float64
		if f.bootstrap {
			w = bootstrapCounts(newSeeds[i], n)
		}
		if err := t.FitWeighted(Xd, yd, w); err != nil {
			return errors.Wrapf(err, "tree %d", len(f.estimators_)+i)
		}
		newTrees[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.estimators_ = append(f.estimators_, newTrees...)
	f.seeds_ = append(f.seeds_, newSeeds...)
	f.classes_ = classes
	f.state.SetDimensions(d, n)
	f.state.SetFitted()

	if f.oobScore {
		if err := f.computeOOB(Xd, labels); err != nil {
			return err
		}
	} else {
		f.oobAvailable_ = false
		f.oobDecision_ = nil
	}

	logger.Debug("RandomForestClassifier fitted",
		log.ModelNameKey, "RandomForestClassifier",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.NEstimatorsKey, len(f.estimators_),
		"new_trees", nMore,
	)
	return nil
}

// bootstrapCounts は木のシードから復元抽出の回数を再現する
func bootstrapCounts(seed uint64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^bootstrapStream))
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		counts[rng.IntN(n)]++
	}
	return counts
}

// computeOOB は各サンプルを、そのサンプルを学習に使わなかった木だけで予測する。
// 一度もout-of-bagにならなかったサンプルは警告を出してスコアから除外する。
func (f *RandomForestClassifier) computeOOB(X *mat.Dense, labels []float64) error {
	n, d := X.Dims()
	k := len(f.classes_)
	sum := mat.NewDense(n, k, nil)
	seen := make([]int, n)

	for t, est := range f.estimators_ {
		counts := bootstrapCounts(f.seeds_[t], n)
		var oob []int
		for i, c := range counts {
			if c == 0 {
				oob = append(oob, i)
			}
		}
		if len(oob) == 0 {
			continue
		}
		sub := mat.NewDense(len(oob), d, nil)
		for r, i := range oob {
			sub.SetRow(r, X.RawRowView(i))
		}
		proba, err := est.PredictProba(sub)
		if err != nil {
			return errors.Wrapf(err, "RandomForestClassifier.oob: tree %d", t)
		}
		for r, i := range oob {
			floats.Add(sum.RawRowView(i), proba.(*mat.Dense).RawRowView(r))
			seen[i]++
		}
	}

	decision := mat.NewDense(n, k, nil)
	var correct, scored int
	for i := 0; i < n; i++ {
		row := decision.RawRowView(i)
		if seen[i] == 0 {
			for j := range row {
				row[j] = math.NaN()
			}
			continue
		}
		copy(row, sum.RawRowView(i))
		floats.Scale(1/floats.Sum(row), row)
		scored++
		if f.classes_[floats.MaxIdx(row)] == labels[i] {
			correct++
		}
	}

	f.oobDecision_ = decision
	f.oobAvailable_ = scored > 0
	f.oobScore_ = math.NaN()
	if scored > 0 {
		f.oobScore_ = float64(correct) / float64(scored)
	}
	if scored < n {
		errors.Warn(errors.NewUndefinedMetricWarning("oob_score",
			"some inputs do not have OOB scores; this probably means too few trees were used", f.oobScore_))
	}
	return nil
}

// OOBScore はout-of-bag正解率を返す
func (f *RandomForestClassifier) OOBScore() (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.state.RequireFitted("RandomForestClassifier", "OOBScore"); err != nil {
		return 0, err
	}
	if !f.oobScore {
		return 0, errors.NewValueError("RandomForestClassifier.OOBScore", "oob_score=false; refit with oob_score enabled")
	}
	if !f.oobAvailable_ {
		return 0, errors.NewValueError("RandomForestClassifier.OOBScore", "no sample was out of bag")
	}
	return f.oobScore_, nil
}

// OOBDecisionFunction はout-of-bagのクラス確率を返す（n × nClasses）。
// 一度もout-of-bagにならなかった行はNaN。
func (f *RandomForestClassifier) OOBDecisionFunction() (*mat.Dense, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.state.RequireFitted("RandomForestClassifier", "OOBDecisionFunction"); err != nil {
		return nil, err
	}
	if f.oobDecision_ == nil {
		return nil, errors.NewValueError("RandomForestClassifier.OOBDecisionFunction", "oob_score=false; refit with oob_score enabled")
	}
	return mat.DenseCopyOf(f.oobDecision_), nil
}

// PredictProba は全ての木のクラス確率の平均を返す
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, d := X.Dims()
	if err := f.state.CheckPredictInput("RandomForestClassifier", "PredictProba", d); err != nil {
		return nil, err
	}

	probas := make([]mat.Matrix, len(f.estimators_))
	err := parallel.ForEach(len(f.estimators_), parallel.Workers(f.nJobs), func(i int) error {
		p, err := f.estimators_[i].PredictProba(X)
		probas[i] = p
		return err
	})
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(f.classes_), nil)
	for _, p := range probas {
		out.Add(out, p)
	}
	out.Scale(1/float64(len(probas)), out)
	return out, nil
}

// Predict は平均確率が最大のクラスを返す（n × 1）
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	p := proba.(*mat.Dense)
	n, _ := p.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		pred.Set(i, 0, f.classes_[floats.MaxIdx(p.RawRowView(i))])
	}
	return pred, nil
}

// Score は正解率を返す
func (f *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Estimators は学習済みの木を返す
func (f *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.estimators_)
}

// NEstimators は学習済みの木の本数を返す
func (f *RandomForestClassifier) NEstimators() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.estimators_)
}

// Classes は学習時のクラスラベルを昇順で返す
func (f *RandomForestClassifier) Classes() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.classes_)
}

// GetFeatureImportances は各木の特徴量重要度の平均を返す
func (f *RandomForestClassifier) GetFeatureImportances() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.estimators_) == 0 {
		return nil
	}
	var imp []float64
	for _, t := range f.estimators_ {
		ti := t.GetFeatureImportances()
		if imp == nil {
			imp = make([]float64, len(ti))
		}
		floats.Add(imp, ti)
	}
	if total := floats.Sum(imp); total > 0 {
		floats.Scale(1/total, imp)
	}
	return imp
}

// IsFitted は学習済みかどうかを返す
func (f *RandomForestClassifier) IsFitted() bool {
	return f.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"oob_score":         f.oobScore,
		"warm_start":        f.warmStart,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
	}
}

// SetParams はハイパーパラメータを設定する。失敗時は何も変更しない。
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.forestParams
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			next.nEstimators, err = model.ParamInt(key, value)
		case "criterion":
			next.criterion, err = model.ParamString(key, value)
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
		case "bootstrap":
			next.bootstrap, err = model.ParamBool(key, value)
		case "oob_score":
			next.oobScore, err = model.ParamBool(key, value)
		case "warm_start":
			next.warmStart, err = model.ParamBool(key, value)
		case "random_state":
			next.randomState, err = model.ParamSeed(key, value)
		case "n_jobs":
			next.nJobs, err = model.ParamInt(key, value)
		default:
			err = model.UnknownParam("RandomForestClassifier", key)
		}
		if err != nil {
			return err
		}
	}

	f.forestParams = next
	return nil
}

// forestParams はRandomForestClassifierのハイパーパラメータ
type forestParams struct {
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     interface{}
	bootstrap       bool
	oobScore        bool
	warmStart       bool
	randomState     uint64
	nJobs           int
}

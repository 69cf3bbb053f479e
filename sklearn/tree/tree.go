// Package tree はCARTアルゴリズムによる決定木を提供します。
//
// DecisionTreeClassifier と DecisionTreeRegressor は scikit-learn と同じ
// ハイパーパラメータ名を持ち、サンプル重み付きの学習（FitWeighted）に対応します。
// 重み付き学習はブートストラップを使うアンサンブルから利用されます。
package tree

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// Node は決定木の1ノード
type Node struct {
	Feature   int       // 分割に使う特徴量（葉は-1）
	Threshold float64   // x[Feature] <= Threshold なら左
	Left      int       // 左の子（葉は-1）
	Right     int       // 右の子（葉は-1）
	Value     []float64 // 分類: クラス確率、回帰: [平均]
	Impurity  float64
	Weight    float64 // 重み付きサンプル数
	NSamples  int
	Depth     int
}

// IsLeaf は葉ノードかどうかを返す
func (n *Node) IsLeaf() bool {
	return n.Left == -1
}

// treeParams は分類木と回帰木が共有するハイパーパラメータ
type treeParams struct {
	criterion       string
	maxDepth        int         // -1 で制限なし
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     interface{} // nil, "sqrt", "log2", int, float64
	randomState     uint64
}

// Option は決定木の設定オプション
type Option func(*treeParams)

// WithCriterion は不純度の基準を設定
func WithCriterion(criterion string) Option {
	return func(p *treeParams) { p.criterion = criterion }
}

// WithMaxDepth は木の最大深さを設定（-1で制限なし）
func WithMaxDepth(depth int) Option {
	return func(p *treeParams) { p.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) Option {
	return func(p *treeParams) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(p *treeParams) { p.minSamplesLeaf = n }
}

// WithMaxFeatures は各分割で検討する特徴量の数を設定。
// nil（全特徴量）、"sqrt"、"log2"、int（個数）、float64（割合）を受け付ける。
func WithMaxFeatures(maxFeatures interface{}) Option {
	return func(p *treeParams) { p.maxFeatures = maxFeatures }
}

// WithRandomState は特徴量サンプリングの乱数シードを設定
func WithRandomState(seed uint64) Option {
	return func(p *treeParams) { p.randomState = seed }
}

func defaultParams(criterion string) treeParams {
	return treeParams{
		criterion:       criterion,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
}

func (p *treeParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *treeParams) setParams(modelName string, params map[string]interface{}) error {
	next := *p
	for key, value := range params {
		var err error
		switch key {
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
		case "random_state":
			next.randomState, err = model.ParamSeed(key, value)
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

func (p *treeParams) validate() error {
	if p.maxDepth == 0 || p.maxDepth < -1 {
		return errors.NewValidationError("max_depth", "must be positive or -1", p.maxDepth)
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.minSamplesLeaf)
	}
	return nil
}

// ResolveMaxFeatures は max_features を特徴量数 d に対する個数に変換する
func ResolveMaxFeatures(maxFeatures interface{}, d int) (int, error) {
	switch v := maxFeatures.(type) {
	case nil:
		return d, nil
	case string:
		switch v {
		case "sqrt":
			return max(1, int(math.Sqrt(float64(d)))), nil
		case "log2":
			return max(1, int(math.Log2(float64(d)))), nil
		}
	case int:
		if v >= 1 && v <= d {
			return v, nil
		}
	case float64:
		if v > 0 && v <= 1 {
			return max(1, int(v*float64(d))), nil
		}
	}
	return 0, errors.NewValidationError("max_features", "must be nil, 'sqrt', 'log2', an int in [1, n_features] or a float in (0, 1]", maxFeatures)
}

// split は分割候補
type split struct {
	feature   int
	threshold float64
	gain      float64 // 重み付き不純度の減少量
}

// builder はlightgbmのTrainerと同じく再帰的にノードを作る
type builder struct {
	X        *mat.Dense
	y        []float64 // 回帰ターゲット
	class    []int     // 分類ラベル（クラスインデックス）
	w        []float64
	nClasses int // 回帰では0
	crit     impurity
	params   *treeParams
	maxFeat  int
	rng      *rand.Rand
	features []int

	nodes       []Node
	importances []float64
}

func (b *builder) stats(indices []int) nodeStats {
	s := newNodeStats(b.nClasses)
	for _, i := range indices {
		b.addSample(&s, i)
	}
	return s
}

func (b *builder) addSample(s *nodeStats, i int) {
	var y float64
	var c int
	if b.nClasses > 0 {
		c = b.class[i]
	} else {
		y = b.y[i]
	}
	s.add(b.w[i], y, c)
}

func (b *builder) leafValue(s *nodeStats) []float64 {
	if b.nClasses > 0 {
		v := slices.Clone(s.counts)
		if s.weight > 0 {
			floats.Scale(1/s.weight, v)
		}
		return v
	}
	if s.weight <= 0 {
		return []float64{0}
	}
	return []float64{s.sumY / s.weight}
}

// buildNode はノードを追加して、そのインデックスを返す
func (b *builder) buildNode(indices []int, depth int) int {
	s := b.stats(indices)
	imp := b.crit(&s)

	nodeIdx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    b.leafValue(&s),
		Impurity: imp,
		Weight:   s.weight,
		NSamples: s.n,
		Depth:    depth,
	})

	p := b.params
	if (p.maxDepth >= 0 && depth >= p.maxDepth) ||
		s.n < p.minSamplesSplit ||
		s.n < 2*p.minSamplesLeaf ||
		imp <= 1e-7 {
		return nodeIdx
	}

	best, ok := b.findBestSplit(indices, &s, imp)
	if !ok {
		return nodeIdx
	}

	left, right := b.splitData(indices, best)
	b.importances[best.feature] += best.gain

	b.nodes[nodeIdx].Feature = best.feature
	b.nodes[nodeIdx].Threshold = best.threshold
	l := b.buildNode(left, depth+1)
	r := b.buildNode(right, depth+1)
	b.nodes[nodeIdx].Left = l
	b.nodes[nodeIdx].Right = r
	return nodeIdx
}

// findBestSplit は max_features 個の特徴量を無作為に調べる。
// 有効な分割が見つかるまでは max_features を超えて調べ続ける。
func (b *builder) findBestSplit(indices []int, parent *nodeStats, parentImp float64) (split, bool) {
	if b.maxFeat < len(b.features) {
		b.rng.Shuffle(len(b.features), func(i, j int) {
			b.features[i], b.features[j] = b.features[j], b.features[i]
		})
	}

	best := split{gain: math.Inf(-1)}
	found := false
	for visited, f := range b.features {
		if visited >= b.maxFeat && found {
			break
		}
		if sp, ok := b.findBestSplitForFeature(indices, f, parent, parentImp); ok && sp.gain > best.gain {
			best = sp
			found = true
		}
	}
	return best, found
}

type sortedValue struct {
	value float64
	idx   int
}

func (b *builder) findBestSplitForFeature(indices []int, feature int, parent *nodeStats, parentImp float64) (split, bool) {
	values := make([]sortedValue, len(indices))
	for i, idx := range indices {
		values[i] = sortedValue{value: b.X.At(idx, feature), idx: idx}
	}
	slices.SortFunc(values, func(a, c sortedValue) int {
		switch {
		case a.value < c.value:
			return -1
		case a.value > c.value:
			return 1
		}
		return 0
	})
	if values[0].value == values[len(values)-1].value {
		return split{}, false
	}

	best := split{feature: feature, gain: math.Inf(-1)}
	found := false
	minLeaf := b.params.minSamplesLeaf
	left := newNodeStats(b.nClasses)
	for i := 0; i < len(values)-1; i++ {
		b.addSample(&left, values[i].idx)
		if values[i].value == values[i+1].value {
			continue
		}
		if left.n < minLeaf || parent.n-left.n < minLeaf {
			continue
		}
		right := parent.sub(&left)
		gain := parent.weight*parentImp - left.weight*b.crit(&left) - right.weight*b.crit(&right)
		if gain > best.gain {
			best.gain = gain
			best.threshold = values[i].value/2 + values[i+1].value/2
			if best.threshold == values[i+1].value {
				best.threshold = values[i].value
			}
			found = true
		}
	}
	return best, found
}

func (b *builder) splitData(indices []int, sp split) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if b.X.At(idx, sp.feature) <= sp.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// decisionTree は分類木と回帰木が共有する学習済み状態
type decisionTree struct {
	treeParams
	state *model.StateManager
	mu    sync.RWMutex

	nodes       []Node
	importances []float64
}

// fit は重み付きで木を構築する。重み0のサンプルは使わない。
func (t *decisionTree) fit(X *mat.Dense, y []float64, class []int, nClasses int, w []float64, crit impurity) error {
	n, d := X.Dims()
	maxFeat, err := ResolveMaxFeatures(t.maxFeatures, d)
	if err != nil {
		return err
	}

	var indices []int
	for i := 0; i < n; i++ {
		if w[i] > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTree.Fit", "sample weights sum to zero")
	}

	b := &builder{
		X:           X,
		y:           y,
		class:       class,
		w:           w,
		nClasses:    nClasses,
		crit:        crit,
		params:      &t.treeParams,
		maxFeat:     maxFeat,
		rng:         rand.New(rand.NewPCG(t.randomState, t.randomState)),
		features:    make([]int, d),
		importances: make([]float64, d),
	}
	for j := range b.features {
		b.features[j] = j
	}
	b.buildNode(indices, 0)

	if total := floats.Sum(b.importances); total > 0 {
		floats.Scale(1/total, b.importances)
	}
	t.nodes = b.nodes
	t.importances = b.importances
	t.state.SetDimensions(d, n)
	t.state.SetFitted()
	return nil
}

func (t *decisionTree) leaf(x []float64) int {
	i := 0
	for !t.nodes[i].IsLeaf() {
		if x[t.nodes[i].Feature] <= t.nodes[i].Threshold {
			i = t.nodes[i].Left
		} else {
			i = t.nodes[i].Right
		}
	}
	return i
}

func (t *decisionTree) apply(modelName string, X mat.Matrix) ([]int, error) {
	n, d := X.Dims()
	if err := t.state.CheckPredictInput(modelName, "Apply", d); err != nil {
		return nil, err
	}
	leaves := make([]int, n)
	x := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(x, i, X)
		leaves[i] = t.leaf(x)
	}
	return leaves, nil
}

// GetDepth は木の深さを返す（根のみなら0）
func (t *decisionTree) GetDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	depth := 0
	for i := range t.nodes {
		depth = max(depth, t.nodes[i].Depth)
	}
	return depth
}

// GetNLeaves は葉の数を返す
func (t *decisionTree) GetNLeaves() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaves := 0
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// NodeCount はノードの総数を返す
func (t *decisionTree) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Nodes は学習済みノードのコピーを返す
func (t *decisionTree) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, len(t.nodes))
	for i, nd := range t.nodes {
		nd.Value = slices.Clone(nd.Value)
		out[i] = nd
	}
	return out
}

// GetFeatureImportances は正規化された不純度減少量による特徴量重要度を返す
func (t *decisionTree) GetFeatureImportances() []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.importances)
}

// IsFitted は学習済みかどうかを返す
func (t *decisionTree) IsFitted() bool {
	return t.state.IsFitted()
}

// sampleWeights は nil を全て1の重みとして扱い、長さと符号を検証する
func sampleWeights(op string, w []float64, n int) ([]float64, error) {
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	if len(w) != n {
		return nil, errors.NewDimensionError(op, n, len(w), 0)
	}
	for _, v := range w {
		if v < 0 || math.IsNaN(v) {
			return nil, errors.NewValidationError("sample_weight", "must be non-negative", v)
		}
	}
	return w, nil
}

func checkXY(op string, X, y mat.Matrix) (int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ny, cy := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError(op, n, ny, 0)
	}
	if cy != 1 {
		return 0, errors.NewDimensionError(op, 1, cy, 1)
	}
	return n, nil
}

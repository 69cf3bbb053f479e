package tree

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// DecisionTreeClassifier はCARTによる分類木。
// 葉には重み付きクラス分布を持ち、PredictProbaはそれをそのまま返す。
type DecisionTreeClassifier struct {
	decisionTree

	classes_  []float64
	nClasses_ int
}

// NewDecisionTreeClassifier は新しい分類木を作成する。
// デフォルトは gini 基準、深さ制限なし、min_samples_split=2、min_samples_leaf=1、全特徴量。
func NewDecisionTreeClassifier(options ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		decisionTree: decisionTree{
			treeParams: defaultParams("gini"),
			state:      model.NewStateManager(),
		},
	}
	for _, opt := range options {
		opt(&dt.treeParams)
	}
	return dt
}

// Fit は全サンプルを重み1として学習する
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習する。
// クラス集合は重み0のサンプルも含めた y 全体から決まる。
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	dt.mu.Lock()
	defer dt.mu.Unlock()

	crit, ok := classificationCriteria[dt.criterion]
	if !ok {
		return errors.NewValidationError("criterion", "must be one of gini, entropy, log_loss", dt.criterion)
	}
	if err := dt.validate(); err != nil {
		return err
	}
	n, err := checkXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	w, err := sampleWeights("DecisionTreeClassifier.Fit", sampleWeight, n)
	if err != nil {
		return err
	}

	labels := mat.Col(nil, 0, y)
	classes := slices.Clone(labels)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	class := make([]int, n)
	for i, v := range labels {
		class[i], _ = slices.BinarySearch(classes, v)
	}

	if err := dt.fit(mat.DenseCopyOf(X), nil, class, len(classes), w, crit); err != nil {
		dt.state.Reset()
		return err
	}
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	return nil
}

// PredictProba は各クラスの確率を返す（n × nClasses）
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()

	leaves, err := dt.apply("DecisionTreeClassifier", X)
	if err != nil {
		return nil, err
	}
	proba := mat.NewDense(len(leaves), dt.nClasses_, nil)
	for i, leaf := range leaves {
		proba.SetRow(i, dt.nodes[leaf].Value)
	}
	return proba, nil
}

// Predict は確率最大のクラスラベルを返す（n × 1）
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}

	dt.mu.RLock()
	defer dt.mu.RUnlock()

	p := proba.(*mat.Dense)
	n, _ := p.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		pred.Set(i, 0, dt.classes_[floats.MaxIdx(p.RawRowView(i))])
	}
	return pred, nil
}

// Score は正解率を返す
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Apply は各サンプルが到達する葉のノードインデックスを返す
func (dt *DecisionTreeClassifier) Apply(X mat.Matrix) ([]int, error) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.apply("DecisionTreeClassifier", X)
}

// Classes は学習時のクラスラベルを昇順で返す
func (dt *DecisionTreeClassifier) Classes() []float64 {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return slices.Clone(dt.classes_)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.getParams()
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return dt.setParams("DecisionTreeClassifier", params)
}

package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// DecisionTreeRegressor はCARTによる回帰木。葉の値は重み付き平均。
type DecisionTreeRegressor struct {
	decisionTree
}

// NewDecisionTreeRegressor は新しい回帰木を作成する（squared_error 基準）
func NewDecisionTreeRegressor(options ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		decisionTree: decisionTree{
			treeParams: defaultParams("squared_error"),
			state:      model.NewStateManager(),
		},
	}
	for _, opt := range options {
		opt(&dt.treeParams)
	}
	return dt
}

// Fit は全サンプルを重み1として学習する
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習する
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	dt.mu.Lock()
	defer dt.mu.Unlock()

	crit, ok := regressionCriteria[dt.criterion]
	if !ok {
		return errors.NewValidationError("criterion", "must be squared_error", dt.criterion)
	}
	if err := dt.validate(); err != nil {
		return err
	}
	n, err := checkXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	w, err := sampleWeights("DecisionTreeRegressor.Fit", sampleWeight, n)
	if err != nil {
		return err
	}

	if err := dt.fit(mat.DenseCopyOf(X), mat.Col(nil, 0, y), nil, 0, w, crit); err != nil {
		dt.state.Reset()
		return err
	}
	return nil
}

// Predict は到達した葉の値を返す（n × 1）
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()

	leaves, err := dt.apply("DecisionTreeRegressor", X)
	if err != nil {
		return nil, err
	}
	pred := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		pred.Set(i, 0, dt.nodes[leaf].Value[0])
	}
	return pred, nil
}

// Score は決定係数R²を返す
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	return metrics.R2Score(mat.NewVecDense(n, mat.Col(nil, 0, y)), mat.NewVecDense(n, mat.Col(nil, 0, pred)))
}

// Apply は各サンプルが到達する葉のノードインデックスを返す
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.apply("DecisionTreeRegressor", X)
}

// SetLeafValue は葉の予測値を置き換える。
// 勾配ブースティングで損失ごとの最適な葉の値を設定するのに使う。
func (dt *DecisionTreeRegressor) SetLeafValue(leaf int, value float64) error {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if err := dt.state.RequireFitted("DecisionTreeRegressor", "SetLeafValue"); err != nil {
		return err
	}
	if leaf < 0 || leaf >= len(dt.nodes) || !dt.nodes[leaf].IsLeaf() {
		return errors.NewValueError("DecisionTreeRegressor.SetLeafValue", "node is not a leaf")
	}
	dt.nodes[leaf].Value[0] = value
	return nil
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.getParams()
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return dt.setParams("DecisionTreeRegressor", params)
}

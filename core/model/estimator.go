// Package model defines the contracts shared by every estimator in modelbench
// and the StateManager that tracks fitted state.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter はハイパーパラメータを変更できるモデルのインターフェース。
// 未知のキーや不正な値に対してはValidationErrorを返す。
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Estimator は全ての推定器が満たす契約
type Estimator interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter
	IsFitted() bool
}

// Scorer はスコアを計算できるモデルのインターフェース。
// 分類器は正解率、回帰器は決定係数R²を返す。
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルのインターフェース
type Regressor interface {
	Estimator
	Scorer
}

// Classifier は分類モデルのインターフェース
type Classifier interface {
	Estimator
	Scorer

	// PredictProba は各クラスの確率を予測する（列はClasses()の順）
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []float64
}

// OOBEstimator は out-of-bag スコアを報告できるアンサンブルのインターフェース
type OOBEstimator interface {
	Fitter
	ParameterSetter
	OOBScore() (float64, error)
}

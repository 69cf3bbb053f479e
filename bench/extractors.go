package bench

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// NonZeroCoefficients は線形モデルの非ゼロ係数の数を返す
func NonZeroCoefficients(est model.Estimator) (float64, error) {
	c, ok := est.(interface{ Coef() *mat.Dense })
	if !ok {
		return 0, errors.NewValueError("NonZeroCoefficients", fmt.Sprintf("%T does not expose coefficients", est))
	}
	coef := c.Coef()
	if coef == nil {
		return 0, errors.NewNotFittedError(fmt.Sprintf("%T", est), "Coef")
	}
	r, k := coef.Dims()
	var count int
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			if coef.At(i, j) != 0 {
				count++
			}
		}
	}
	return float64(count), nil
}

// SupportVectors はサポートベクターの数を返す
func SupportVectors(est model.Estimator) (float64, error) {
	s, ok := est.(interface{ NSupport() int })
	if !ok {
		return 0, errors.NewValueError("SupportVectors", fmt.Sprintf("%T has no support vectors", est))
	}
	return float64(s.NSupport()), nil
}

// EstimatorCount はアンサンブルの推定器の数を返す
func EstimatorCount(est model.Estimator) (float64, error) {
	e, ok := est.(interface{ NEstimators() int })
	if !ok {
		return 0, errors.NewValueError("EstimatorCount", fmt.Sprintf("%T is not an ensemble", est))
	}
	return float64(e.NEstimators()), nil
}

// MeanSquaredError は平均二乗誤差（複数出力は一様平均）
func MeanSquaredError(yTrue, yPred mat.Matrix) (float64, error) {
	return metrics.MSEMatrix(yTrue, yPred)
}

// HammingLoss は一致しないラベルの割合
func HammingLoss(yTrue, yPred mat.Matrix) (float64, error) {
	return metrics.HammingLoss(yTrue, yPred)
}

// ClassificationError は 1 − 正解率
func ClassificationError(yTrue, yPred mat.Matrix) (float64, error) {
	acc, err := metrics.AccuracyMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

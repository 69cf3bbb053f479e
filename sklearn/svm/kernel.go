package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// kernelParams はカーネル関数のハイパーパラメータ
type kernelParams struct {
	kernel string      // "rbf", "linear", "poly", "sigmoid"
	gamma  interface{} // "scale", "auto" または float64
	degree int         // polyの次数
	coef0  float64     // poly/sigmoidの定数項
}

// kernelFunc は2つのサンプル間のカーネル値を計算する
type kernelFunc func(x, z []float64) float64

// resolveGamma は gamma を数値に解決する。
// "scale" は 1 / (n_features * X.var())、"auto" は 1 / n_features。
func (k kernelParams) resolveGamma(X *mat.Dense) (float64, error) {
	_, d := X.Dims()
	switch g := k.gamma.(type) {
	case string:
		switch g {
		case "scale":
			v := stat.PopVariance(X.RawMatrix().Data, nil)
			if v == 0 {
				return 1, nil
			}
			return 1 / (float64(d) * v), nil
		case "auto":
			return 1 / float64(d), nil
		}
	case nil:
		return 1 / float64(d), nil
	default:
		v, err := model.ParamFloat("gamma", g)
		if err != nil {
			return 0, err
		}
		if v <= 0 {
			return 0, errors.NewValidationError("gamma", "must be positive", v)
		}
		return v, nil
	}
	return 0, errors.NewValidationError("gamma", "must be 'scale', 'auto' or a positive float", k.gamma)
}

func (k kernelParams) build(gamma float64) (kernelFunc, error) {
	switch k.kernel {
	case "linear":
		return floats.Dot, nil
	case "rbf":
		return func(x, z []float64) float64 {
			var d2 float64
			for i := range x {
				diff := x[i] - z[i]
				d2 += diff * diff
			}
			return math.Exp(-gamma * d2)
		}, nil
	case "poly":
		if k.degree < 1 {
			return nil, errors.NewValidationError("degree", "must be at least 1", k.degree)
		}
		degree := float64(k.degree)
		coef0 := k.coef0
		return func(x, z []float64) float64 {
			return math.Pow(gamma*floats.Dot(x, z)+coef0, degree)
		}, nil
	case "sigmoid":
		coef0 := k.coef0
		return func(x, z []float64) float64 {
			return math.Tanh(gamma*floats.Dot(x, z) + coef0)
		}, nil
	default:
		return nil, errors.NewValidationError("kernel", "must be one of rbf, linear, poly, sigmoid", k.kernel)
	}
}

// gramParallelThreshold を超える行数ではカーネル行列を行ごとに並列に計算する
const gramParallelThreshold = 256

// gram は学習データのカーネル行列を計算する。各行は上三角の自分の要素だけを書く。
func gram(X *mat.Dense, kf kernelFunc) *mat.SymDense {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, gramParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi := X.RawRowView(i)
			for j := i; j < n; j++ {
				K.SetSym(i, j, kf(xi, X.RawRowView(j)))
			}
		}
	})
	return K
}

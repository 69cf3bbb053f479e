package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// Accuracy は正解率（ラベルが完全一致したサンプルの割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, errors.Wrap(err, "ClassificationError")
	}
	return 1 - acc, nil
}

// AccuracyMatrix は行列入力の正解率を計算する。
// 多出力の場合は全ラベルが一致した行のみを正解とする（subset accuracy）。
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	r, c, err := checkMatrices("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < r; i++ {
		match := true
		for j := 0; j < c && match; j++ {
			match = yTrue.At(i, j) == yPred.At(i, j)
		}
		if match {
			correct++
		}
	}
	return float64(correct) / float64(r), nil
}

// HammingLoss は誤って予測されたラベルの割合を計算する。
// 単一出力の場合は ClassificationError と一致する。
//
//	HammingLoss = (1 / (n_samples * n_labels)) * Σ_i Σ_j 1[yTrue_ij != yPred_ij]
func HammingLoss(yTrue, yPred mat.Matrix) (float64, error) {
	r, c, err := checkMatrices("HammingLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	wrong := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if yTrue.At(i, j) != yPred.At(i, j) {
				wrong++
			}
		}
	}
	return float64(wrong) / float64(r*c), nil
}

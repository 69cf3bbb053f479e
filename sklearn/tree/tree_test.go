package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/datasets"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// blobs は3クラスの分類問題を生成する（最初の2列が情報を持つ）
func blobs(t *testing.T, n int, seed uint64) (*mat.Dense, *mat.Dense) {
	t.Helper()
	X, y, err := datasets.MakeClassification(datasets.ClassificationConfig{
		NSamples:     n,
		NFeatures:    6,
		NInformative: 2,
		NClasses:     3,
		ClassSep:     2,
		Seed:         seed,
	})
	if err != nil {
		t.Fatal(err)
	}
	return X, y
}

func TestDecisionTreeClassifier_FitsTrainingData(t *testing.T) {
	X, y := blobs(t, 150, 1)

	for _, criterion := range []string{"gini", "entropy", "log_loss"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			// 深さ制限なしの木は重複のない連続特徴量を完全に記憶する
			score, err := dt.Score(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if score != 1 {
				t.Errorf("training accuracy = %v, want 1", score)
			}
			if got := dt.Classes(); len(got) != 3 || got[0] != 0 || got[2] != 2 {
				t.Errorf("Classes() = %v", got)
			}
		})
	}
}

func TestDecisionTreeClassifier_Generalizes(t *testing.T) {
	X, y := blobs(t, 600, 2)
	split, err := datasets.TrainTestSplit(X, y, 0.25, 2)
	if err != nil {
		t.Fatal(err)
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(4), WithMinSamplesLeaf(5))
	if err := dt.Fit(split.XTrain, split.YTrain); err != nil {
		t.Fatal(err)
	}
	score, err := dt.Score(split.XTest, split.YTest)
	if err != nil {
		t.Fatal(err)
	}
	// 3クラスのランダム予測は1/3
	if score < 0.6 {
		t.Errorf("held-out accuracy = %v, want >= 0.6", score)
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := blobs(t, 200, 3)

	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := dt.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatal(err)
	}

	rows, cols := proba.Dims()
	if rows != 200 || cols != 3 {
		t.Fatalf("PredictProba dims = %d×%d, want 200×3", rows, cols)
	}
	for i := 0; i < rows; i++ {
		var sum, best float64
		for j := 0; j < cols; j++ {
			p := proba.At(i, j)
			if p < 0 || p > 1 {
				t.Fatalf("proba[%d][%d] = %v", i, j, p)
			}
			sum += p
			best = math.Max(best, p)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %v", i, sum)
		}
		if got := proba.At(i, int(pred.At(i, 0))); got != best {
			t.Errorf("row %d: predicted class has probability %v, max is %v", i, got, best)
		}
	}
}

func TestDecisionTreeClassifier_StructureLimits(t *testing.T) {
	X, y := blobs(t, 300, 4)

	tests := []struct {
		name      string
		options   []Option
		maxDepth  int
		minLeaf   int
		maxLeaves int
	}{
		{"stump", []Option{WithMaxDepth(1)}, 1, 1, 2},
		{"depth 3", []Option{WithMaxDepth(3)}, 3, 1, 8},
		{"min leaf 20", []Option{WithMinSamplesLeaf(20)}, -1, 20, 300 / 20},
		{"min split 60", []Option{WithMinSamplesSplit(60), WithMaxDepth(6)}, 6, 1, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.options...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if tt.maxDepth > 0 && dt.GetDepth() > tt.maxDepth {
				t.Errorf("depth %d exceeds %d", dt.GetDepth(), tt.maxDepth)
			}
			if dt.GetNLeaves() > tt.maxLeaves {
				t.Errorf("%d leaves, want at most %d", dt.GetNLeaves(), tt.maxLeaves)
			}

			leaves, err := dt.Apply(X)
			if err != nil {
				t.Fatal(err)
			}
			counts := map[int]int{}
			for _, leaf := range leaves {
				counts[leaf]++
			}
			nodes := dt.Nodes()
			for leaf, c := range counts {
				if !nodes[leaf].IsLeaf() {
					t.Errorf("Apply returned internal node %d", leaf)
				}
				if c < tt.minLeaf {
					t.Errorf("leaf %d holds %d samples, want >= %d", leaf, c, tt.minLeaf)
				}
			}
		})
	}
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	X, _ := blobs(t, 200, 5)

	// 3列目の符号だけでラベルが決まる
	y := mat.NewDense(200, 1, nil)
	for i := 0; i < 200; i++ {
		if X.At(i, 3) > 0 {
			y.Set(i, 0, 1)
		}
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	importances := dt.GetFeatureImportances()
	if len(importances) != 6 {
		t.Fatalf("got %d importances, want 6", len(importances))
	}
	for j, imp := range importances {
		want := 0.0
		if j == 3 {
			want = 1
		}
		if math.Abs(imp-want) > 1e-12 {
			t.Errorf("importance[%d] = %v, want %v", j, imp, want)
		}
	}
	if score, _ := dt.Score(X, y); score != 1 {
		t.Errorf("stump accuracy = %v, want 1", score)
	}
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	if params["criterion"] != "gini" || params["max_depth"] != -1 || params["min_samples_split"] != 2 {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":        "entropy",
		"max_depth":        5,
		"min_samples_leaf": 2.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	params = dt.GetParams()
	if params["criterion"] != "entropy" || params["max_depth"] != 5 || params["min_samples_leaf"] != 2 {
		t.Errorf("SetParams not applied: %v", params)
	}

	// nil は深さ制限なし
	if err := dt.SetParams(map[string]interface{}{"max_depth": nil}); err != nil {
		t.Fatal(err)
	}
	if got := dt.GetParams()["max_depth"]; got != -1 {
		t.Errorf("max_depth = %v, want -1", got)
	}

	// 不正なキーを含む場合は何も変更しない
	err = dt.SetParams(map[string]interface{}{"criterion": "gini", "n_estimators": 10})
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := dt.GetParams()["criterion"]; got != "entropy" {
		t.Errorf("criterion = %v after failed SetParams, want entropy", got)
	}
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	X, y := blobs(t, 30, 6)

	dt := NewDecisionTreeClassifier()
	if _, err := dt.Predict(X); err == nil {
		t.Error("Predict before Fit should fail")
	}
	if _, err := dt.PredictProba(X); err == nil {
		t.Error("PredictProba before Fit should fail")
	}

	if err := NewDecisionTreeClassifier(WithMaxDepth(0)).Fit(X, y); err == nil {
		t.Error("max_depth=0 should be rejected")
	}
	if err := NewDecisionTreeClassifier(WithCriterion("mse")).Fit(X, y); err == nil {
		t.Error("regression criterion should be rejected")
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var de *errors.DimensionError
	if _, err := dt.Predict(mat.NewDense(2, 5, nil)); !errors.As(err, &de) {
		t.Errorf("expected DimensionError for wrong feature count, got %v", err)
	}
}

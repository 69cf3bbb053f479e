// Package datasets generates deterministic synthetic problems and splits them
// into train and test partitions.
//
// All generators take an explicit seed; the same seed always yields the same
// arrays.
package datasets

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// RegressionConfig parameterizes MakeRegression.
type RegressionConfig struct {
	NSamples     int
	NFeatures    int
	NInformative int // features with a non-zero ground-truth coefficient
	Bias         float64
	Noise        float64 // standard deviation of the Gaussian noise added to y
	Seed         uint64
}

// MakeRegression generates a random linear regression problem. X is standard
// normal, only the first NInformative coefficients are non-zero and y is a
// column vector. The ground-truth coefficients are returned as well.
func MakeRegression(cfg RegressionConfig) (X, y *mat.Dense, coef []float64, err error) {
	if cfg.NSamples < 1 || cfg.NFeatures < 1 {
		return nil, nil, nil, errors.NewValidationError("n_samples/n_features", "must be positive", [2]int{cfg.NSamples, cfg.NFeatures})
	}
	if cfg.NInformative <= 0 || cfg.NInformative > cfg.NFeatures {
		cfg.NInformative = cfg.NFeatures
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	rng := rand.New(src)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	X = mat.NewDense(cfg.NSamples, cfg.NFeatures, nil)
	for i := 0; i < cfg.NSamples; i++ {
		for j := 0; j < cfg.NFeatures; j++ {
			X.Set(i, j, normal.Rand())
		}
	}

	coef = make([]float64, cfg.NFeatures)
	for j := 0; j < cfg.NInformative; j++ {
		coef[j] = 100 * rng.Float64()
	}

	y = mat.NewDense(cfg.NSamples, 1, nil)
	for i := 0; i < cfg.NSamples; i++ {
		v := floats.Dot(X.RawRowView(i), coef) + cfg.Bias
		if cfg.Noise > 0 {
			v += cfg.Noise * normal.Rand()
		}
		y.Set(i, 0, v)
	}
	return X, y, coef, nil
}

// ClassificationConfig parameterizes MakeClassification.
type ClassificationConfig struct {
	NSamples     int
	NFeatures    int
	NInformative int
	NRedundant   int
	NClasses     int
	ClassSep     float64 // hypercube side multiplier, default 1
	FlipY        float64 // fraction of labels assigned at random
	Seed         uint64
}

// MakeClassification generates a random n-class problem. Each class is a
// Gaussian cluster centred on a distinct vertex of a hypercube in the
// informative subspace. Redundant features are random linear combinations of
// the informative ones and the remaining features are pure noise. Classes are
// balanced and rows are shuffled. y holds class indices 0..NClasses-1.
func MakeClassification(cfg ClassificationConfig) (X, y *mat.Dense, err error) {
	if cfg.NSamples < 1 || cfg.NFeatures < 1 {
		return nil, nil, errors.NewValidationError("n_samples/n_features", "must be positive", [2]int{cfg.NSamples, cfg.NFeatures})
	}
	if cfg.NClasses < 2 {
		return nil, nil, errors.NewValidationError("n_classes", "must be at least 2", cfg.NClasses)
	}
	if cfg.NInformative <= 0 {
		cfg.NInformative = min(cfg.NFeatures, 2)
	}
	if cfg.NInformative+cfg.NRedundant > cfg.NFeatures {
		return nil, nil, errors.NewValidationError("n_informative+n_redundant", "must not exceed n_features", cfg.NInformative+cfg.NRedundant)
	}
	if float64(cfg.NClasses) > math.Pow(2, float64(cfg.NInformative)) {
		return nil, nil, errors.NewValidationError("n_classes", "must be at most 2**n_informative", cfg.NClasses)
	}
	if cfg.ClassSep == 0 {
		cfg.ClassSep = 1
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	rng := rand.New(src)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	// 各クラスにハイパーキューブの異なる頂点を割り当てる
	nVertices := uint64(1) << min(cfg.NInformative, 62)
	seen := make(map[uint64]bool, cfg.NClasses)
	centroids := make([][]float64, cfg.NClasses)
	for k := 0; k < cfg.NClasses; k++ {
		v := rng.Uint64N(nVertices)
		for seen[v] {
			v = rng.Uint64N(nVertices)
		}
		seen[v] = true
		c := make([]float64, cfg.NInformative)
		for j := range c {
			if v&(uint64(1)<<j) != 0 {
				c[j] = cfg.ClassSep
			} else {
				c[j] = -cfg.ClassSep
			}
		}
		centroids[k] = c
	}

	redundant := mat.NewDense(cfg.NInformative, max(cfg.NRedundant, 1), nil)
	for i := 0; i < cfg.NInformative; i++ {
		for j := 0; j < cfg.NRedundant; j++ {
			redundant.Set(i, j, 2*rng.Float64()-1)
		}
	}

	X = mat.NewDense(cfg.NSamples, cfg.NFeatures, nil)
	y = mat.NewDense(cfg.NSamples, 1, nil)
	for i := 0; i < cfg.NSamples; i++ {
		k := i % cfg.NClasses
		y.Set(i, 0, float64(k))

		row := X.RawRowView(i)
		for j := 0; j < cfg.NInformative; j++ {
			row[j] = centroids[k][j] + normal.Rand()
		}
		for j := 0; j < cfg.NRedundant; j++ {
			var s float64
			for m := 0; m < cfg.NInformative; m++ {
				s += row[m] * redundant.At(m, j)
			}
			row[cfg.NInformative+j] = s
		}
		for j := cfg.NInformative + cfg.NRedundant; j < cfg.NFeatures; j++ {
			row[j] = normal.Rand()
		}
	}

	if cfg.FlipY > 0 {
		for i := 0; i < cfg.NSamples; i++ {
			if rng.Float64() < cfg.FlipY {
				y.Set(i, 0, float64(rng.IntN(cfg.NClasses)))
			}
		}
	}

	shuffleRows(rng, X, y)
	return X, y, nil
}

// MultilabelConfig parameterizes MakeMultilabelClassification.
type MultilabelConfig struct {
	NSamples  int
	NFeatures int
	NClasses  int
	NLabels   int // average number of labels per sample
	Length    int // average number of feature draws per sample
	Seed      uint64
}

// MakeMultilabelClassification generates a bag-of-words style multilabel
// problem. Each class has its own distribution over features; every sample
// draws a Poisson number of labels (at least one) and then a Poisson number
// of feature counts from the mixture of its classes. Y is an n×NClasses 0/1
// indicator matrix.
func MakeMultilabelClassification(cfg MultilabelConfig) (X, Y *mat.Dense, err error) {
	if cfg.NSamples < 1 || cfg.NFeatures < 1 || cfg.NClasses < 1 {
		return nil, nil, errors.NewValidationError("n_samples/n_features/n_classes", "must be positive",
			[3]int{cfg.NSamples, cfg.NFeatures, cfg.NClasses})
	}
	if cfg.NLabels < 1 {
		cfg.NLabels = 2
	}
	if cfg.Length < 1 {
		cfg.Length = 50
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	rng := rand.New(src)

	prior := make([]float64, cfg.NClasses)
	for c := range prior {
		prior[c] = rng.Float64()
	}
	classDist := distuv.NewCategorical(prior, src)

	featureDists := make([]distuv.Categorical, cfg.NClasses)
	for c := range featureDists {
		w := make([]float64, cfg.NFeatures)
		for j := range w {
			w[j] = rng.Float64()
		}
		featureDists[c] = distuv.NewCategorical(w, src)
	}

	nLabels := distuv.Poisson{Lambda: float64(cfg.NLabels), Src: src}
	length := distuv.Poisson{Lambda: float64(cfg.Length), Src: src}

	X = mat.NewDense(cfg.NSamples, cfg.NFeatures, nil)
	Y = mat.NewDense(cfg.NSamples, cfg.NClasses, nil)
	for i := 0; i < cfg.NSamples; i++ {
		k := int(nLabels.Rand())
		k = max(1, min(k, cfg.NClasses))

		labels := make([]int, 0, k)
		for len(labels) < k {
			c := int(classDist.Rand())
			if Y.At(i, c) == 1 {
				continue
			}
			Y.Set(i, c, 1)
			labels = append(labels, c)
		}

		n := max(1, int(length.Rand()))
		for w := 0; w < n; w++ {
			c := labels[rng.IntN(len(labels))]
			j := int(featureDists[c].Rand())
			X.Set(i, j, X.At(i, j)+1)
		}
	}
	return X, Y, nil
}

// Split is a fixed train/test partition.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
}

// TrainTestSplit shuffles the rows of X and y with seed and puts the first
// round(testFraction*n) of them in the test partition.
func TrainTestSplit(X, y mat.Matrix, testFraction float64, seed uint64) (*Split, error) {
	n, p := X.Dims()
	ny, q := y.Dims()
	if n == 0 {
		return nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if ny != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, ny, 0)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testFraction)
	}
	nTest := int(math.Round(testFraction * float64(n)))
	if nTest == 0 || nTest == n {
		return nil, errors.NewValidationError("test_size", "leaves an empty partition", testFraction)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	s := &Split{
		XTest:  mat.NewDense(nTest, p, nil),
		YTest:  mat.NewDense(nTest, q, nil),
		XTrain: mat.NewDense(n-nTest, p, nil),
		YTrain: mat.NewDense(n-nTest, q, nil),
	}
	for dst, src := range perm {
		xs, ys, row := s.XTest, s.YTest, dst
		if dst >= nTest {
			xs, ys, row = s.XTrain, s.YTrain, dst-nTest
		}
		for j := 0; j < p; j++ {
			xs.Set(row, j, X.At(src, j))
		}
		for j := 0; j < q; j++ {
			ys.Set(row, j, y.At(src, j))
		}
	}
	return s, nil
}

func shuffleRows(rng *rand.Rand, X, y *mat.Dense) {
	n, _ := X.Dims()
	rng.Shuffle(n, func(i, j int) {
		ri, rj := X.RawRowView(i), X.RawRowView(j)
		for k := range ri {
			ri[k], rj[k] = rj[k], ri[k]
		}
		yi, yj := y.RawRowView(i), y.RawRowView(j)
		for k := range yi {
			yi[k], yj[k] = yj[k], yi[k]
		}
	})
}

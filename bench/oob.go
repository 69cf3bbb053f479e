package bench

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// OOBFactory は warm start と OOB スコアが有効なアンサンブルを新しく作る
type OOBFactory func() model.OOBEstimator

// Ensemble はラベル付きのアンサンブル
type Ensemble struct {
	Label string
	New   OOBFactory
}

// OOBConfig は TrackOOB の設定。サイズは MinEstimators から MaxEstimators まで（両端含む）。
type OOBConfig struct {
	Ensembles     []Ensemble
	MinEstimators int
	MaxEstimators int
	X, Y          mat.Matrix
}

// Validate は設定を検証する
func (c *OOBConfig) Validate() error {
	if len(c.Ensembles) == 0 {
		return errors.NewValidationError("ensembles", "must not be empty", len(c.Ensembles))
	}
	if c.MinEstimators < 1 {
		return errors.NewValidationError("min_estimators", "must be at least 1", c.MinEstimators)
	}
	if c.MaxEstimators < c.MinEstimators {
		return errors.NewValidationError("max_estimators", fmt.Sprintf("must be >= min_estimators (%d)", c.MinEstimators), c.MaxEstimators)
	}
	if c.X == nil || c.Y == nil {
		return errors.NewValidationError("data", "X and Y must not be nil", nil)
	}
	seen := make(map[string]bool, len(c.Ensembles))
	for _, e := range c.Ensembles {
		if e.New == nil {
			return errors.NewValidationError("ensembles", "factory must not be nil", e.Label)
		}
		if seen[e.Label] {
			return errors.NewValidationError("ensembles", "duplicate label", e.Label)
		}
		seen[e.Label] = true
	}
	return nil
}

// OOBPoint は1つのアンサンブルサイズでのOOB誤差
type OOBPoint struct {
	NEstimators int     `json:"n_estimators"`
	Error       float64 `json:"oob_error"`
}

// OOBSeries は1つのアンサンブルの軌跡
type OOBSeries struct {
	Label  string     `json:"label"`
	Points []OOBPoint `json:"points"`
}

// OOBResult は TrackOOB の結果。Series は Ensembles と同じ順序。
type OOBResult struct {
	Series []OOBSeries `json:"series"`
}

// Lookup はラベルに対応する軌跡を返す
func (r *OOBResult) Lookup(label string) (OOBSeries, bool) {
	for _, s := range r.Series {
		if s.Label == label {
			return s, true
		}
	}
	return OOBSeries{}, false
}

// TrackOOB は各アンサンブルの木を1本ずつ増やしながら学習し、1 − OOBスコアを記録する
func TrackOOB(cfg OOBConfig) (*OOBResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("bench.oob")
	n, d := cfg.X.Dims()
	res := &OOBResult{Series: make([]OOBSeries, 0, len(cfg.Ensembles))}

	for _, ens := range cfg.Ensembles {
		logger.Info("Tracking OOB error",
			log.ConfigKey, ens.Label,
			log.SamplesKey, n,
			log.FeaturesKey, d,
		)

		est := ens.New()
		series := OOBSeries{
			Label:  ens.Label,
			Points: make([]OOBPoint, 0, cfg.MaxEstimators-cfg.MinEstimators+1),
		}
		for size := cfg.MinEstimators; size <= cfg.MaxEstimators; size++ {
			if err := est.SetParams(map[string]interface{}{"n_estimators": size}); err != nil {
				return nil, errors.Wrapf(err, "bench.TrackOOB %s: n_estimators=%d", ens.Label, size)
			}
			if err := est.Fit(cfg.X, cfg.Y); err != nil {
				return nil, errors.Wrapf(err, "bench.TrackOOB %s: n_estimators=%d", ens.Label, size)
			}
			score, err := est.OOBScore()
			if err != nil {
				return nil, errors.Wrapf(err, "bench.TrackOOB %s: n_estimators=%d", ens.Label, size)
			}
			series.Points = append(series.Points, OOBPoint{NEstimators: size, Error: 1 - score})

			logger.Debug("OOB point",
				log.ConfigKey, ens.Label,
				log.NEstimatorsKey, size,
				log.OOBErrorKey, 1-score,
			)
		}
		res.Series = append(res.Series, series)
	}
	return res, nil
}

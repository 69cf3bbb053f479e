// Package modelbench benchmarks how hyperparameters trade model complexity
// against prediction error and latency, and how the out-of-bag error of a
// random forest evolves as trees are added.
//
// # Benchmarks
//
// Two programs drive the library:
//
//   - cmd/complexity: sweeps l1_ratio of an elastic-net SGDClassifier (on a
//     multiclass and on a multilabel problem), nu of a NuSVR and n_estimators
//     of a GradientBoostingRegressor, and plots error and latency against the
//     complexity each value produces (non-zero coefficients, support vectors,
//     trees)
//   - cmd/oob: grows three RandomForestClassifier ensembles (max_features
//     sqrt, log2 and all) one tree at a time with warm start and plots their
//     OOB error rate
//
// Both write their figures to --out and accept every flag as a MODELBENCH_*
// environment variable.
//
// # Quick Start
//
//	data, err := bench.GenerateComplexityData(bench.DefaultDataConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, cfg := range bench.DefaultConfigs(data, 10, 0) {
//	    res, err := bench.Sweep(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fig, err := chart.ComplexityFigure(res)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := fig.Save(chart.FileName(cfg.Name) + ".png"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Packages
//
//   - bench: parameter sweep and incremental OOB tracker
//   - chart: gonum/plot figures and JSON series dumps
//   - sklearn/linear_model: SGDClassifier, SGDRegressor
//   - sklearn/svm: NuSVR
//   - sklearn/tree: DecisionTreeClassifier, DecisionTreeRegressor
//   - sklearn/ensemble: RandomForestClassifier, GradientBoostingRegressor
//   - sklearn/multioutput: MultiOutputClassifier
//   - metrics: regression and classification metrics
//   - preprocessing: StandardScaler
//   - datasets: deterministic synthetic problems and train/test splits
//   - core/model: estimator interfaces and fitted-state management
//   - core/parallel: worker helpers used by the forest
//   - pkg/errors, pkg/log, pkg/conf: errors, zerolog logging, kingpin flags
//
// # scikit-learn Compatibility
//
// Estimators mirror the scikit-learn parameter names, so sweeps can be
// written against GetParams/SetParams maps:
//
//	clf := linear_model.NewSGDClassifier()
//	err := clf.SetParams(map[string]interface{}{
//	    "loss":     "modified_huber",
//	    "penalty":  "elasticnet",
//	    "l1_ratio": 0.5,
//	})
package modelbench

// Command complexity sweeps one hyperparameter of three estimators and plots
// prediction error and prediction latency against model complexity.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/modelbench/bench"
	"github.com/YuminosukeSato/modelbench/chart"
	"github.com/YuminosukeSato/modelbench/pkg/conf"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

var (
	app = conf.New("complexity", "Model complexity influence: error and latency versus complexity for SGDClassifier (multiclass and multilabel), NuSVR and GradientBoostingRegressor.")

	samplesFlag       = app.Flag("samples", "Number of generated samples per dataset.").Default("1000").Int()
	featuresFlag      = app.Flag("features", "Number of generated features.").Default("50").Int()
	repeatsFlag       = app.Flag("repeats", "Predictions per configuration used to average latency.").Default("10").Int()
	trainFractionFlag = app.Flag("train-fraction", "Fraction of samples used for training.").Default("0.8").Float64()
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.GetLogger().Error("complexity benchmark failed", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := app.Parse(args); err != nil {
		return err
	}
	if err := app.SetupLogging(os.Stderr); err != nil {
		return err
	}
	log.SetProviderFields(log.RunIDKey, uuid.New().String())
	common := app.Common
	logger := log.GetLoggerWithName("cmd.complexity")
	logger.Info("Starting benchmark", log.RandomSeedKey, common.Seed, "out", common.OutDir)
	logger.Debug("Configuration", "env", app.Dump())

	data, err := bench.GenerateComplexityData(bench.DataConfig{
		Samples:       *samplesFlag,
		Features:      *featuresFlag,
		TrainFraction: *trainFractionFlag,
		Seed:          common.Seed,
	})
	if err != nil {
		return errors.Wrapf(err, "generating data")
	}

	for _, cfg := range bench.DefaultConfigs(data, *repeatsFlag, common.Seed) {
		res, err := bench.Sweep(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", cfg.Name)
		bench.WriteTable(os.Stdout, res)

		fig, err := chart.ComplexityFigure(res)
		if err != nil {
			return errors.Wrapf(err, "plotting %s", cfg.Name)
		}
		paths, err := chart.Export(fig, common.OutDir, chart.FileName(cfg.Name), common.Format, common.DumpJSON)
		if err != nil {
			return err
		}
		logger.Info("Benchmark written", log.ConfigKey, cfg.Name, "files", paths)
	}
	return nil
}

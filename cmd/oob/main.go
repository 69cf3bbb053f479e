// Command oob grows random forests one tree at a time with warm start and
// plots the out-of-bag error rate against the number of trees.
package main

import (
	"os"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/modelbench/bench"
	"github.com/YuminosukeSato/modelbench/chart"
	"github.com/YuminosukeSato/modelbench/pkg/conf"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

var (
	app = conf.New("oob", "OOB errors for random forests: out-of-bag error rate while adding trees with warm start.")

	samplesFlag  = app.Flag("samples", "Number of generated samples.").Default("500").Int()
	featuresFlag = app.Flag("features", "Number of generated features.").Default("25").Int()
	classesFlag  = app.Flag("classes", "Number of classes.").Default("3").Int()
	minFlag      = app.Flag("min-estimators", "Smallest forest size.").Default("15").Int()
	maxFlag      = app.Flag("max-estimators", "Largest forest size.").Default("150").Int()
	jobsFlag     = app.Flag("jobs", "Workers used to build trees (-1 for all CPUs).").Default("1").Int()
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.GetLogger().Error("oob benchmark failed", err)
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
	logger := log.GetLoggerWithName("cmd.oob")
	logger.Info("Starting benchmark", log.RandomSeedKey, common.Seed, "out", common.OutDir)
	logger.Debug("Configuration", "env", app.Dump())

	cfg, err := bench.DefaultOOBConfig(bench.OOBDataConfig{
		Samples:  *samplesFlag,
		Features: *featuresFlag,
		Classes:  *classesFlag,
		Seed:     common.Seed,
	}, *minFlag, *maxFlag, *jobsFlag)
	if err != nil {
		return errors.Wrapf(err, "generating data")
	}

	res, err := bench.TrackOOB(cfg)
	if err != nil {
		return err
	}
	bench.WriteOOBTable(os.Stdout, res, 15)

	fig, err := chart.OOBFigure(res)
	if err != nil {
		return errors.Wrapf(err, "plotting OOB errors")
	}
	paths, err := chart.Export(fig, common.OutDir, "oob_error_rate", common.Format, common.DumpJSON)
	if err != nil {
		return err
	}
	logger.Info("Benchmark written", "files", paths)
	return nil
}

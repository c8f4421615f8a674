// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/model"
	"github.com/movierec/movierec/model/mf"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func formatMetric(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate recommendation techniques on a hold-out test set",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		techniques, _ := cmd.Flags().GetStringSlice("technique")
		if len(techniques) == 0 {
			techniques = conf.Recommend.Techniques
		}
		topN := conf.Recommend.TopN
		if cmd.Flags().Changed("top-n") {
			topN, _ = cmd.Flags().GetInt("top-n")
		}
		data, err := loadDataset(conf)
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, testSet, err := data.Split(conf.Data.TestRatio, conf.Data.Seed)
		if err != nil {
			return errors.Trace(err)
		}
		recommender, err := fit(cmd.Context(), conf, trainSet, techniques...)
		if err != nil {
			return errors.Trace(err)
		}

		table := newTable(cmd.OutOrStdout(), "Technique", "RMSE", "MAE",
			fmt.Sprintf("NDCG@%d", topN), fmt.Sprintf("Precision@%d", topN), fmt.Sprintf("Recall@%d", topN),
			fmt.Sprintf("HR@%d", topN), fmt.Sprintf("MAP@%d", topN), fmt.Sprintf("MRR@%d", topN), "Time")
		for _, technique := range techniques {
			start := time.Now()
			scorer, err := recommender.Scorer(technique)
			if err != nil {
				return errors.Trace(err)
			}
			rmse, mae := "-", "-"
			if predictor, ok := scorer.(model.Predictor); ok {
				rating, err := model.EvaluateRating(predictor, testSet)
				if err != nil {
					return errors.Annotatef(err, "evaluate %s", technique)
				}
				rmse, mae = formatMetric(rating.RMSE), formatMetric(rating.MAE)
			}
			ranking, err := model.EvaluateRanking(cmd.Context(), scorer, testSet, topN, conf.Recommend.Jobs)
			if err != nil {
				return errors.Annotatef(err, "evaluate %s", technique)
			}
			log.Logger().Info("evaluate technique",
				zap.String("technique", technique),
				zap.Int("n_users", ranking.Users),
				zap.Duration("duration", time.Since(start)))
			if err = table.Append([]string{
				technique, rmse, mae,
				formatMetric(ranking.NDCG), formatMetric(ranking.Precision), formatMetric(ranking.Recall),
				formatMetric(ranking.HR), formatMetric(ranking.MAP), formatMetric(ranking.MRR),
				time.Since(start).Round(time.Millisecond).String(),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyper-parameters of matrix factorization",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		if cmd.Flags().Changed("n-trials") {
			conf.Tune.NTrials, _ = cmd.Flags().GetInt("n-trials")
		}
		if cmd.Flags().Changed("model") {
			conf.Tune.Models, _ = cmd.Flags().GetStringSlice("model")
		}
		if err = conf.Validate(); err != nil {
			return errors.Trace(err)
		}
		data, err := loadDataset(conf)
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, valSet, err := data.Split(conf.Data.TestRatio, conf.Data.Seed)
		if err != nil {
			return errors.Trace(err)
		}

		// trials are unbounded in epochs, so the bar spins
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("tune "+strings.Join(conf.Tune.Models, ",")),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetVisibility(showProgress),
			progressbar.OptionClearOnFinish())
		fitConfig := conf.MF.GetFitConfig(conf.Recommend.Jobs).SetOnEpoch(func(int, float64) {
			_ = bar.Add(1)
		})
		start := time.Now()
		result, err := mf.Tune(cmd.Context(), trainSet, valSet, conf.Tune.Models, conf.Tune.NTrials, conf.Tune.Seed, fitConfig)
		_ = bar.Finish()
		if err != nil {
			return errors.Trace(err)
		}
		table := newTable(cmd.OutOrStdout(), "Model", "RMSE", "Trials", "Params", "Time")
		if err = table.Append([]string{
			result.Type,
			formatMetric(result.RMSE),
			strconv.Itoa(result.Trials),
			result.Params.ToString(),
			time.Since(start).Round(time.Millisecond).String(),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	rootCommand.AddCommand(evaluateCommand)
	evaluateCommand.Flags().StringSliceP("technique", "t", nil, "techniques to evaluate (default recommend.techniques)")
	evaluateCommand.Flags().IntP("top-n", "n", 10, "length of recommendation lists")

	rootCommand.AddCommand(tuneCommand)
	tuneCommand.Flags().Int("n-trials", 20, "number of trials (overrides tune.n_trials)")
	tuneCommand.Flags().StringSlice("model", nil, "models to search: als, svd (overrides tune.models)")
}

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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/logics"
	"github.com/movierec/movierec/model"
	"github.com/movierec/movierec/model/knowledge"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Recommend movies for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		technique, _ := cmd.Flags().GetString("technique")
		filter, _ := cmd.Flags().GetString("filter")
		if filter != "" {
			// ad hoc constraints are answered by knowledge-based filtering
			technique = logics.Knowledge
		}
		topN := conf.Recommend.TopN
		if cmd.Flags().Changed("top-n") {
			topN, _ = cmd.Flags().GetInt("top-n")
		}
		data, err := loadDataset(conf)
		if err != nil {
			return errors.Trace(err)
		}
		recommender, err := fit(cmd.Context(), conf, data, technique)
		if err != nil {
			return errors.Trace(err)
		}

		var result *logics.Result
		if filter != "" {
			scorer, err := recommender.Scorer(logics.Knowledge)
			if err != nil {
				return errors.Trace(err)
			}
			var exclude mapset.Set[string]
			if conf.Recommend.ExcludeSeen {
				exclude = scorer.SeenItems(args[0])
			}
			items, err := scorer.(*knowledge.Model).Query(filter, topN, exclude)
			if err != nil {
				return errors.Trace(err)
			}
			result = &logics.Result{Technique: logics.Knowledge, Items: items}
		} else {
			result, err = recommender.Recommend(cmd.Context(), args[0], technique, topN)
			if err != nil {
				return errors.Trace(err)
			}
		}
		if result.Fallback {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %s is unknown to %s, fall back to %s\n", args[0], technique, result.Technique)
		}
		return renderItems(newTable(cmd.OutOrStdout(), "#", "Item", "Title", "Year", "Genres", "Score"), data, result.Items)
	},
}

var similarCommand = &cobra.Command{
	Use:   "similar <item-id>",
	Short: "Find movies similar to a movie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		technique, _ := cmd.Flags().GetString("technique")
		topN := conf.Recommend.TopN
		if cmd.Flags().Changed("top-n") {
			topN, _ = cmd.Flags().GetInt("top-n")
		}
		data, err := loadDataset(conf)
		if err != nil {
			return errors.Trace(err)
		}
		if _, ok := data.GetItem(args[0]); !ok {
			return errors.Trace(model.UnknownItem(args[0]))
		}
		recommender, err := fit(cmd.Context(), conf, data, technique)
		if err != nil {
			return errors.Trace(err)
		}
		items, err := recommender.SimilarItems(technique, args[0], topN)
		if err != nil {
			return errors.Trace(err)
		}
		return renderItems(newTable(cmd.OutOrStdout(), "#", "Item", "Title", "Year", "Genres", "Similarity"), data, items)
	},
}

func renderItems(table *tablewriter.Table, data *dataset.Dataset, items model.RecommendationList) error {
	for i, score := range items {
		item, _ := data.GetItem(score.ItemId)
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			score.ItemId,
			item.Title,
			strconv.Itoa(item.Year),
			strings.Join(item.Genres, "|"),
			strconv.FormatFloat(score.Score, 'f', 4, 64),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func init() {
	rootCommand.AddCommand(recommendCommand)
	recommendCommand.Flags().StringP("technique", "t", logics.MatrixFactorization, "recommendation technique: "+strings.Join(logics.Techniques, ", "))
	recommendCommand.Flags().IntP("top-n", "n", 10, "number of recommended movies")
	recommendCommand.Flags().String("filter", "", `knowledge-based constraints, e.g. 'item.Year >= 1990 && "Comedy" in item.Genres'`)

	rootCommand.AddCommand(similarCommand)
	similarCommand.Flags().StringP("technique", "t", logics.ItemKNN, "similarity technique: item-knn or content")
	similarCommand.Flags().IntP("top-n", "n", 10, "number of similar movies")
}

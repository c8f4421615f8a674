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

package model

import (
	"context"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/common/parallel"
	"github.com/movierec/movierec/dataset"
)

/* Evaluate Rating Prediction */

// RatingResult holds rating prediction errors.
type RatingResult struct {
	RMSE  float64
	MAE   float64
	Count int
}

// EvaluateRating computes RMSE and MAE of a predictor on a test set. Pairs whose user or
// item is unknown to the predictor are skipped.
func EvaluateRating(predictor Predictor, testSet *dataset.Dataset) (RatingResult, error) {
	var sumSquared, sumAbs float64
	var count int
	for _, interaction := range testSet.Interactions() {
		prediction, err := predictor.Predict(interaction.UserId, interaction.ItemId)
		if err != nil {
			if IsUnknownUser(err) || errors.Is(err, ErrUnknownItem) {
				continue
			}
			return RatingResult{}, errors.Trace(err)
		}
		diff := prediction - interaction.Value
		sumSquared += diff * diff
		sumAbs += math.Abs(diff)
		count++
	}
	if count == 0 {
		return RatingResult{}, errors.Trace(&InsufficientDataError{})
	}
	return RatingResult{
		RMSE:  math.Sqrt(sumSquared / float64(count)),
		MAE:   sumAbs / float64(count),
		Count: count,
	}, nil
}

/* Evaluate Item Ranking */

// RankingMetric scores a ranked list against the set of relevant items.
type RankingMetric func(targetSet mapset.Set[string], rankList []string) float64

// RankingResult holds the mean of every ranking metric over test users.
type RankingResult struct {
	NDCG      float64
	Precision float64
	Recall    float64
	HR        float64
	MAP       float64
	MRR       float64
	Users     int
}

// EvaluateRanking evaluates a scorer in top-n tasks. For every user in the test set,
// the scorer ranks all items excluding the user's training items and the test items are
// the relevant targets. Users unknown to the scorer are skipped.
func EvaluateRanking(ctx context.Context, scorer Scorer, testSet *dataset.Dataset, topN, jobs int) (RankingResult, error) {
	type userResult struct {
		metrics [6]float64
		ok      bool
	}
	userIds := testSet.GetUserDict().Strings()
	results := make([]userResult, len(userIds))
	metrics := []RankingMetric{NDCG, Precision, Recall, HR, MAP, MRR}
	err := parallel.Parallel(ctx, len(userIds), jobs, func(_, jobId int) error {
		targetSet := testSet.GetSeenItems(userIds[jobId])
		if targetSet.Cardinality() == 0 {
			return nil
		}
		list, err := Recommend(scorer, userIds[jobId], topN, true)
		if err != nil {
			if IsUnknownUser(err) {
				return nil
			}
			return errors.Trace(err)
		}
		rankList := list.ItemIds()
		results[jobId].ok = true
		for i, metric := range metrics {
			results[jobId].metrics[i] = metric(targetSet, rankList)
		}
		return nil
	})
	if err != nil {
		return RankingResult{}, errors.Trace(err)
	}
	var sum [6]float64
	var count int
	for _, result := range results {
		if result.ok {
			count++
			for i := range sum {
				sum[i] += result.metrics[i]
			}
		}
	}
	if count == 0 {
		return RankingResult{}, errors.Trace(&InsufficientDataError{})
	}
	n := float64(count)
	return RankingResult{
		NDCG:      sum[0] / n,
		Precision: sum[1] / n,
		Recall:    sum[2] / n,
		HR:        sum[3] / n,
		MAP:       sum[4] / n,
		MRR:       sum[5] / n,
		Users:     count,
	}, nil
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[string], rankList []string) float64 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := 0.0
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math.Log2(float64(i)+2.0)
	}
	if idcg == 0 {
		return 0
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := 0.0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among the recommended items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{retrieved documents}|}
func Precision(targetSet mapset.Set[string], rankList []string) float64 {
	if len(rankList) == 0 {
		return 0
	}
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float64(hit) / float64(len(rankList))
}

// Recall is the fraction of relevant items that have been recommended over the total
// amount of relevant items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{relevant documents}|}
func Recall(targetSet mapset.Set[string], rankList []string) float64 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float64(hit) / float64(targetSet.Cardinality())
}

// HR means Hit Ratio.
func HR(targetSet mapset.Set[string], rankList []string) float64 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}

// MAP means Mean Average Precision.
// mAP: http://sdsawtelle.github.io/blog/output/mean-average-precision-MAP-for-recommender-systems.html
func MAP(targetSet mapset.Set[string], rankList []string) float64 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	sumPrecision := 0.0
	hit := 0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	return sumPrecision / float64(targetSet.Cardinality())
}

// MRR means Mean Reciprocal Rank.
//
// The mean reciprocal rank is a statistic measure for evaluating any process
// that produces a list of possible responses to a sample of queries, ordered
// by probability of correctness. The reciprocal rank of a query response is
// the multiplicative inverse of the rank of the first correct answer: 1 for
// first place, 1/2 for second place, 1/3 for third place and so on.
//
//	MRR = \frac{1}{Q} \sum^{|Q|}_{i=1} \frac{1}{rank_i}
func MRR(targetSet mapset.Set[string], rankList []string) float64 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float64(i+1)
		}
	}
	return 0
}

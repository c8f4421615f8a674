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
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/common/heap"
	"github.com/movierec/movierec/common/parallel"
	"go.uber.org/zap"
)

// Score is a scored item.
type Score struct {
	ItemId string
	Score  float64
}

// RecommendationList is ordered by descending score then ascending item id.
type RecommendationList []Score

// ItemIds returns item ids in list order.
func (list RecommendationList) ItemIds() []string {
	ids := make([]string, len(list))
	for i, score := range list {
		ids[i] = score.ItemId
	}
	return ids
}

// Scorer is a fitted model able to score candidate items for a user. Implementations
// are immutable after fitting and safe for concurrent use.
type Scorer interface {
	// ScoreItems returns unordered scores of every candidate item. It returns an
	// UnknownUserError if the user is absent from the model.
	ScoreItems(userId string) ([]Score, error)
	// SeenItems returns items the user interacted with in the training data.
	SeenItems(userId string) mapset.Set[string]
}

// Predictor predicts the rating of a (user, item) pair.
type Predictor interface {
	Predict(userId, itemId string) (float64, error)
}

// Recommend ranks candidate items for a user. Items are sorted by descending score,
// ties broken by ascending item id, and truncated to topN (all items if topN <= 0).
// Seen items are dropped when excludeSeen is set.
func Recommend(scorer Scorer, userId string, topN int, excludeSeen bool) (RecommendationList, error) {
	scores, err := scorer.ScoreItems(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var seen mapset.Set[string]
	if excludeSeen {
		seen = scorer.SeenItems(userId)
	}
	return Rank(scores, topN, seen), nil
}

// Rank sorts scores into a recommendation list. Items in exclude, duplicated items
// and non-finite scores are dropped.
func Rank(scores []Score, topN int, exclude mapset.Set[string]) RecommendationList {
	filter := heap.NewTopKFilter[string, float64](topN)
	pushed := mapset.NewThreadUnsafeSetWithSize[string](len(scores))
	for _, score := range scores {
		if exclude != nil && exclude.Contains(score.ItemId) {
			continue
		}
		if math.IsNaN(score.Score) || math.IsInf(score.Score, 0) {
			log.Logger().Warn("skip non-finite score",
				zap.String("item_id", score.ItemId), zap.Float64("score", score.Score))
			continue
		}
		if !pushed.Add(score.ItemId) {
			continue
		}
		filter.Push(score.ItemId, score.Score)
	}
	elems := filter.PopAll()
	list := make(RecommendationList, len(elems))
	for i, elem := range elems {
		list[i] = Score{ItemId: elem.Value, Score: elem.Weight}
	}
	return list
}

// RecommendBatch runs Recommend for many users in parallel against one scorer.
// Results are aligned with userIds. The first error aborts the batch.
func RecommendBatch(ctx context.Context, scorer Scorer, userIds []string, topN int, excludeSeen bool, jobs int) ([]RecommendationList, error) {
	results := make([]RecommendationList, len(userIds))
	err := parallel.Parallel(ctx, len(userIds), jobs, func(_, jobId int) error {
		list, err := Recommend(scorer, userIds[jobId], topN, excludeSeen)
		if err != nil {
			return errors.Trace(err)
		}
		results[jobId] = list
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return results, nil
}

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

package hybrid

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

func validWeight(weight float64) error {
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return errors.NotValidf("weight %v", weight)
	}
	return nil
}

// Combine merges two score lists into weight*a + (1-weight)*b. An item missing from
// one source gets zero contribution from that source. A source with zero weight is
// ignored, so weight 1 reproduces scoresA and weight 0 reproduces scoresB.
//
// Items keep the order of first appearance, scoresA before scoresB. A duplicated
// item in one source keeps its last score.
func Combine(scoresA, scoresB []model.Score, weight float64) ([]model.Score, error) {
	if err := validWeight(weight); err != nil {
		return nil, errors.Trace(err)
	}
	positions := make(map[string]int, len(scoresA)+len(scoresB))
	merged := make([]model.Score, 0, len(scoresA)+len(scoresB))
	merge := func(scores []model.Score, w float64) {
		if w == 0 {
			return
		}
		// the last score of an item within a source wins
		last := make(map[string]float64, len(scores))
		for _, score := range scores {
			if _, exist := positions[score.ItemId]; !exist {
				positions[score.ItemId] = len(merged)
				merged = append(merged, model.Score{ItemId: score.ItemId})
			}
			last[score.ItemId] = score.Score
		}
		for itemId, score := range last {
			merged[positions[itemId]].Score += w * score
		}
	}
	merge(scoresA, weight)
	merge(scoresB, 1-weight)
	return merged, nil
}

// MinMaxNormalize rescales scores into [0, 1]. Scores of a constant list become 1.
func MinMaxNormalize(scores []model.Score) []model.Score {
	if len(scores) == 0 {
		return scores
	}
	values := lo.Map(scores, func(score model.Score, _ int) float64 { return score.Score })
	low, high := lo.Min(values), lo.Max(values)
	return lo.Map(scores, func(score model.Score, _ int) model.Score {
		if high > low {
			return model.Score{ItemId: score.ItemId, Score: (score.Score - low) / (high - low)}
		}
		return model.Score{ItemId: score.ItemId, Score: 1}
	})
}

// Weighted blends two scorers. A user unknown to one source takes no contribution
// from it; a user unknown to both is reported with model.UnknownUserError.
type Weighted struct {
	a, b      model.Scorer
	weight    float64
	normalize bool
}

// NewWeighted creates a hybrid scorer. With normalize set, scores of each source are
// min-max normalized before blending so that sources on different scales are
// comparable.
func NewWeighted(a, b model.Scorer, weight float64, normalize bool) (*Weighted, error) {
	if a == nil || b == nil {
		return nil, errors.NotValidf("nil scorer")
	}
	if err := validWeight(weight); err != nil {
		return nil, errors.Trace(err)
	}
	return &Weighted{a: a, b: b, weight: weight, normalize: normalize}, nil
}

func (w *Weighted) Weight() float64 {
	return w.weight
}

func (w *Weighted) scores(scorer model.Scorer, userId string) ([]model.Score, bool, error) {
	scores, err := scorer.ScoreItems(userId)
	if model.IsUnknownUser(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Trace(err)
	}
	if w.normalize {
		scores = MinMaxNormalize(scores)
	}
	return scores, true, nil
}

func (w *Weighted) ScoreItems(userId string) ([]model.Score, error) {
	scoresA, knownA, err := w.scores(w.a, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scoresB, knownB, err := w.scores(w.b, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !knownA && !knownB {
		return nil, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	if !knownA || !knownB {
		log.Logger().Debug("blend with partial sources",
			zap.String("user_id", userId), zap.Bool("known_a", knownA), zap.Bool("known_b", knownB))
	}
	return Combine(scoresA, scoresB, w.weight)
}

func (w *Weighted) SeenItems(userId string) mapset.Set[string] {
	return w.a.SeenItems(userId).Union(w.b.SeenItems(userId))
}

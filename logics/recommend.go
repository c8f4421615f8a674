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

package logics

import (
	"context"
	"slices"

	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	MatrixFactorization = "mf"
	ItemKNN             = "item-knn"
	UserKNN             = "user-knn"
	Content             = "content"
	Knowledge           = "knowledge"
	Hybrid              = "hybrid"
)

// Techniques lists recommendation techniques in fitting order.
var Techniques = []string{MatrixFactorization, ItemKNN, UserKNN, Content, Knowledge, Hybrid}

// ItemSimilarity is implemented by techniques able to find items similar to an item.
type ItemSimilarity interface {
	SimilarItems(itemId string, topN int) (model.RecommendationList, error)
}

// Result is a recommendation list with the technique that produced it.
type Result struct {
	Technique string
	// Fallback is set if the requested technique did not know the user.
	Fallback bool
	Items    model.RecommendationList
}

// Recommender answers recommendation queries with fitted scorers. It is read-only
// after construction and safe for concurrent use.
type Recommender struct {
	scorers     map[string]model.Scorer
	fallback    string
	excludeSeen bool
}

func NewRecommender(excludeSeen bool) *Recommender {
	return &Recommender{
		scorers:     make(map[string]model.Scorer),
		excludeSeen: excludeSeen,
	}
}

// Register adds a fitted scorer under a technique name.
func (r *Recommender) Register(technique string, scorer model.Scorer) {
	r.scorers[technique] = scorer
}

// SetFallback sets the technique answering users unknown to other techniques. An
// empty technique disables fallback.
func (r *Recommender) SetFallback(technique string) error {
	if technique != "" {
		if _, ok := r.scorers[technique]; !ok {
			return errors.NotFoundf("technique %q", technique)
		}
	}
	r.fallback = technique
	return nil
}

func (r *Recommender) Fallback() string {
	return r.fallback
}

// Techniques returns registered techniques in sorted order.
func (r *Recommender) Techniques() []string {
	techniques := lo.Keys(r.scorers)
	slices.Sort(techniques)
	return techniques
}

func (r *Recommender) Scorer(technique string) (model.Scorer, error) {
	scorer, ok := r.scorers[technique]
	if !ok {
		return nil, errors.NotFoundf("technique %q", technique)
	}
	return scorer, nil
}

// Recommend returns topN items for a user by a technique. If the technique reports
// the user as unknown and a fallback is set, the fallback answers instead.
func (r *Recommender) Recommend(ctx context.Context, userId, technique string, topN int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	scorer, err := r.Scorer(technique)
	if err != nil {
		return nil, errors.Trace(err)
	}
	items, err := model.Recommend(scorer, userId, topN, r.excludeSeen)
	if err == nil {
		return &Result{Technique: technique, Items: items}, nil
	}
	if !model.IsUnknownUser(err) || r.fallback == "" || r.fallback == technique {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("fallback for unknown user",
		zap.String("user_id", userId),
		zap.String("technique", technique),
		zap.String("fallback", r.fallback))
	items, err = model.Recommend(r.scorers[r.fallback], userId, topN, r.excludeSeen)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Result{Technique: r.fallback, Fallback: true, Items: items}, nil
}

// SimilarItems returns topN items similar to an item by a technique.
func (r *Recommender) SimilarItems(technique, itemId string, topN int) (model.RecommendationList, error) {
	scorer, err := r.Scorer(technique)
	if err != nil {
		return nil, errors.Trace(err)
	}
	similarity, ok := scorer.(ItemSimilarity)
	if !ok {
		return nil, errors.NotSupportedf("similar items by %q", technique)
	}
	items, err := similarity.SimilarItems(itemId, topN)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

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

package content

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/common/parallel"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"go.uber.org/zap"
)

// Model recommends items whose metadata is similar to what a user liked. The profile of
// a user is the sum of vectors of rated items weighted by the positive part of the
// mean-centered rating. A user who rated everything equally likes all rated items.
// Items are scored by cosine similarity to the profile.
//
// Hyper-parameters:
//
//	MinDF       - The minimum document frequency of a term. Default is 1.
//	MaxFeatures - The maximum vocabulary size, 0 for unlimited. Default is 0.
type Model struct {
	model.BaseModel
	vectorizer   *Vectorizer
	UserIndex    *dataset.FreqDict
	ItemIndex    *dataset.FreqDict
	itemVectors  []model.SparseVector
	profiles     []model.SparseVector
	userFeedback [][]int32
}

func NewModel(params model.Params) *Model {
	m := new(Model)
	m.SetParams(params)
	return m
}

func (m *Model) GetParamsGrid(_ bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.MinDF:       []interface{}{1, 2, 5},
		model.MaxFeatures: []interface{}{0, 1000, 5000},
	}
}

func (m *Model) Clear() {
	m.vectorizer = nil
	m.UserIndex = nil
	m.ItemIndex = nil
	m.itemVectors = nil
	m.profiles = nil
	m.userFeedback = nil
}

// Fit vectorizes the catalog of the train set and builds user profiles.
func (m *Model) Fit(ctx context.Context, trainSet *dataset.Dataset, jobs int) error {
	log.Logger().Info("fit content",
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Any("params", m.GetParams()))
	items := trainSet.GetItems()
	if len(items) == 0 {
		return errors.Trace(&model.InsufficientDataError{})
	}
	documents := make([][]string, len(items))
	for i, item := range items {
		documents[i] = Tokenize(item)
	}
	m.vectorizer = NewVectorizer(m.Params.GetInt(model.MinDF, 1), m.Params.GetInt(model.MaxFeatures, 0))
	if err := m.vectorizer.Fit(documents); err != nil {
		return errors.Trace(err)
	}
	m.ItemIndex = dataset.NewFreqDict()
	m.itemVectors = make([]model.SparseVector, len(items))
	for i, item := range items {
		m.ItemIndex.NotCount(item.ItemId)
		m.itemVectors[i] = m.vectorizer.Transform(documents[i])
	}

	m.UserIndex = dataset.NewFreqDict()
	for _, userId := range trainSet.GetUserDict().Strings() {
		m.UserIndex.NotCount(userId)
	}
	m.profiles = make([]model.SparseVector, trainSet.CountUsers())
	m.userFeedback = make([][]int32, trainSet.CountUsers())
	err := parallel.Parallel(ctx, trainSet.CountUsers(), jobs, func(_, userIndex int) error {
		itemIndices, values := trainSet.GetUserFeedback(int32(userIndex))
		m.userFeedback[userIndex] = append([]int32(nil), itemIndices...)
		m.profiles[userIndex] = m.profile(itemIndices, values, trainSet.UserMean(int32(userIndex)))
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("fit content complete", zap.Int("n_terms", m.vectorizer.Dim()))
	return nil
}

func (m *Model) profile(itemIndices []int32, values []float64, mean float64) model.SparseVector {
	weights := make([]float64, len(values))
	liked := false
	for i, value := range values {
		if value > mean {
			weights[i] = value - mean
			liked = true
		}
	}
	if !liked {
		for i := range weights {
			weights[i] = 1
		}
	}
	sum := make(map[int32]float64)
	for i, itemIndex := range itemIndices {
		vec := m.itemVectors[itemIndex]
		for j, term := range vec.Indices {
			sum[term] += weights[i] * vec.Values[j]
		}
	}
	indices := make([]int32, 0, len(sum))
	values = make([]float64, 0, len(sum))
	for term, value := range sum {
		indices = append(indices, term)
		values = append(values, value)
	}
	profile := model.NewSparseVector(indices, values)
	if norm := profile.Norm(); norm > 0 {
		for i := range profile.Values {
			profile.Values[i] /= norm
		}
	}
	return profile
}

// ItemVector returns the TF-IDF vector of an item.
func (m *Model) ItemVector(itemId string) (model.SparseVector, error) {
	if m.ItemIndex == nil {
		return model.SparseVector{}, errors.Trace(model.UnknownItem(itemId))
	}
	itemIndex, ok := m.ItemIndex.Index(itemId)
	if !ok {
		return model.SparseVector{}, errors.Trace(model.UnknownItem(itemId))
	}
	return m.itemVectors[itemIndex], nil
}

// Dim returns the dimension of item vectors.
func (m *Model) Dim() int {
	if m.vectorizer == nil {
		return 0
	}
	return m.vectorizer.Dim()
}

// ScoreItems scores every item by cosine similarity to the user profile. Users without
// history are unknown.
func (m *Model) ScoreItems(userId string) ([]model.Score, error) {
	if m.UserIndex == nil {
		return nil, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	userIndex, ok := m.UserIndex.Index(userId)
	if !ok || len(m.userFeedback[userIndex]) == 0 {
		return nil, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	profile := m.profiles[userIndex]
	return m.scoreAll(profile, -1), nil
}

// both vectors are normalized, so their dot product is their cosine similarity
func (m *Model) scoreAll(query model.SparseVector, skip int32) []model.Score {
	itemIds := m.ItemIndex.Strings()
	scores := make([]model.Score, 0, len(itemIds))
	for itemIndex, itemId := range itemIds {
		if int32(itemIndex) == skip {
			continue
		}
		scores = append(scores, model.Score{ItemId: itemId, Score: query.Dot(m.itemVectors[itemIndex])})
	}
	return scores
}

func (m *Model) Predict(userId, itemId string) (float64, error) {
	if m.UserIndex == nil {
		return 0, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	userIndex, ok := m.UserIndex.Index(userId)
	if !ok || len(m.userFeedback[userIndex]) == 0 {
		return 0, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	vec, err := m.ItemVector(itemId)
	if err != nil {
		return 0, err
	}
	return m.profiles[userIndex].Dot(vec), nil
}

func (m *Model) SeenItems(userId string) mapset.Set[string] {
	seen := mapset.NewSet[string]()
	if m.UserIndex == nil {
		return seen
	}
	if userIndex, ok := m.UserIndex.Index(userId); ok {
		for _, itemIndex := range m.userFeedback[userIndex] {
			itemId, _ := m.ItemIndex.String(itemIndex)
			seen.Add(itemId)
		}
	}
	return seen
}

// SimilarItems returns the items most similar to an item by metadata.
func (m *Model) SimilarItems(itemId string, topN int) (model.RecommendationList, error) {
	vec, err := m.ItemVector(itemId)
	if err != nil {
		return nil, err
	}
	itemIndex, _ := m.ItemIndex.Index(itemId)
	return model.Rank(m.scoreAll(vec, itemIndex), topN, nil), nil
}

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

package knn

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/common/heap"
	"github.com/movierec/movierec/common/parallel"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"go.uber.org/zap"
)

// neighborhood predicts the value of a (row, column) cell from the most similar rows:
//
//	\hat{r}_{xc} = \bar{r}_x + \frac{\sum_{y \in N(x)} s_{xy} (r_{yc} - \bar{r}_y)}{\sum_{y \in N(x)} |s_{xy}|}
//
// Only neighbors with a value in column c contribute. Rows are items for item-based
// models and users for user-based models.
type neighborhood struct {
	metric     model.Metric
	nNeighbors int
	minCommon  int
	rows       []model.SparseVector
	means      []float64
	neighbors  [][]heap.Elem[int32, float64]
}

func (n *neighborhood) setParams(params model.Params) error {
	metric, err := model.ParseMetric(params.GetString(model.SimilarityMetric, string(model.Pearson)))
	if err != nil {
		return errors.Trace(err)
	}
	n.metric = metric
	n.nNeighbors = params.GetInt(model.NNeighbors, 40)
	n.minCommon = params.GetInt(model.MinCommon, 2)
	if n.nNeighbors <= 0 {
		return errors.NotValidf("number of neighbors %d", n.nNeighbors)
	}
	return nil
}

// fit computes the top similar rows of every row. Candidates are rows sharing at
// least one column, found through the columns' inverted lists.
func (n *neighborhood) fit(ctx context.Context, rows []model.SparseVector, means []float64, columns [][]int32, jobs int) error {
	n.rows = rows
	n.means = means
	n.neighbors = make([][]heap.Elem[int32, float64], len(rows))
	return parallel.Parallel(ctx, len(rows), jobs, func(_, x int) error {
		candidates := mapset.NewThreadUnsafeSet[int32]()
		for _, column := range rows[x].Indices {
			candidates.Append(columns[column]...)
		}
		filter := heap.NewTopKFilter[int32, float64](n.nNeighbors)
		for _, y := range candidates.ToSlice() {
			if int(y) == x {
				continue
			}
			sim := model.SparseSimilarity(rows[x], rows[y], n.metric, n.minCommon)
			if sim > 0 {
				filter.Push(y, sim)
			}
		}
		n.neighbors[x] = filter.PopAll()
		return nil
	})
}

func (n *neighborhood) predict(row, column int32) float64 {
	var numerator, denominator float64
	for _, neighbor := range n.neighbors[row] {
		if value, ok := n.rows[neighbor.Value].Get(column); ok {
			numerator += neighbor.Weight * (value - n.means[neighbor.Value])
			denominator += neighbor.Weight
		}
	}
	if denominator == 0 {
		return n.means[row]
	}
	return n.means[row] + numerator/denominator
}

// base holds the train data shared by item-based and user-based models.
type base struct {
	model.BaseModel
	neighborhood
	UserIndex    *dataset.FreqDict
	ItemIndex    *dataset.FreqDict
	userFeedback []model.SparseVector
	itemFeedback []model.SparseVector
}

func (b *base) SetParams(params model.Params) {
	b.BaseModel.SetParams(params)
	if err := b.setParams(params); err != nil {
		log.Logger().Error("invalid knn params", zap.Error(err))
	}
}

func (b *base) GetParamsGrid(_ bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.SimilarityMetric: []interface{}{string(model.Cosine), string(model.Pearson)},
		model.NNeighbors:       []interface{}{10, 20, 40, 80},
		model.MinCommon:        []interface{}{1, 2, 5},
	}
}

func (b *base) Clear() {
	b.UserIndex = nil
	b.ItemIndex = nil
	b.userFeedback = nil
	b.itemFeedback = nil
	b.rows = nil
	b.means = nil
	b.neighbors = nil
}

func (b *base) init(trainSet *dataset.Dataset) ([]float64, []float64, error) {
	if err := b.setParams(b.Params); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if trainSet.CountInteractions() == 0 {
		return nil, nil, errors.Trace(&model.InsufficientDataError{})
	}
	b.UserIndex = dataset.NewFreqDict()
	b.userFeedback = make([]model.SparseVector, trainSet.CountUsers())
	userMeans := make([]float64, trainSet.CountUsers())
	for userIndex, userId := range trainSet.GetUserDict().Strings() {
		items, values := trainSet.GetUserFeedback(int32(userIndex))
		if len(items) == 0 {
			return nil, nil, errors.Trace(&model.InsufficientDataError{UserId: userId})
		}
		b.UserIndex.NotCount(userId)
		b.userFeedback[userIndex] = model.NewSparseVector(items, values)
		userMeans[userIndex] = trainSet.UserMean(int32(userIndex))
	}
	b.ItemIndex = dataset.NewFreqDict()
	b.itemFeedback = make([]model.SparseVector, trainSet.CountItems())
	itemMeans := make([]float64, trainSet.CountItems())
	for itemIndex, itemId := range trainSet.GetItemDict().Strings() {
		users, values := trainSet.GetItemFeedback(int32(itemIndex))
		b.ItemIndex.NotCount(itemId)
		b.itemFeedback[itemIndex] = model.NewSparseVector(users, values)
		itemMeans[itemIndex] = trainSet.ItemMean(int32(itemIndex))
	}
	return userMeans, itemMeans, nil
}

func (b *base) lookup(userId, itemId string) (int32, int32, error) {
	if b.UserIndex == nil {
		return -1, -1, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	userIndex, ok := b.UserIndex.Index(userId)
	if !ok {
		return -1, -1, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	itemIndex, ok := b.ItemIndex.Index(itemId)
	if !ok {
		return userIndex, -1, errors.Trace(model.UnknownItem(itemId))
	}
	return userIndex, itemIndex, nil
}

func (b *base) SeenItems(userId string) mapset.Set[string] {
	seen := mapset.NewSet[string]()
	if b.UserIndex == nil {
		return seen
	}
	if userIndex, ok := b.UserIndex.Index(userId); ok {
		for _, itemIndex := range b.userFeedback[userIndex].Indices {
			itemId, _ := b.ItemIndex.String(itemIndex)
			seen.Add(itemId)
		}
	}
	return seen
}

func (b *base) scoreItems(userId string, predict func(userIndex, itemIndex int32) float64) ([]model.Score, error) {
	if b.UserIndex == nil {
		return nil, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	userIndex, ok := b.UserIndex.Index(userId)
	if !ok {
		return nil, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	itemIds := b.ItemIndex.Strings()
	scores := make([]model.Score, len(itemIds))
	for itemIndex, itemId := range itemIds {
		scores[itemIndex] = model.Score{ItemId: itemId, Score: predict(userIndex, int32(itemIndex))}
	}
	return scores, nil
}

// ItemKNN predicts a rating from the user's ratings of the most similar items.
//
// Hyper-parameters:
//
//	Similarity - cosine, pearson or jaccard. Default is pearson.
//	NNeighbors - The number of neighbors kept per item. Default is 40.
//	MinCommon  - The minimum number of common users of similar items. Default is 2.
type ItemKNN struct {
	base
}

func NewItemKNN(params model.Params) *ItemKNN {
	knn := new(ItemKNN)
	knn.SetParams(params)
	return knn
}

func (knn *ItemKNN) Fit(ctx context.Context, trainSet *dataset.Dataset, jobs int) error {
	log.Logger().Info("fit item knn",
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_ratings", trainSet.CountInteractions()),
		zap.Any("params", knn.GetParams()))
	_, itemMeans, err := knn.init(trainSet)
	if err != nil {
		return errors.Trace(err)
	}
	columns := make([][]int32, len(knn.userFeedback))
	for userIndex, vec := range knn.userFeedback {
		columns[userIndex] = vec.Indices
	}
	if err = knn.fit(ctx, knn.itemFeedback, itemMeans, columns, jobs); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("fit item knn complete")
	return nil
}

func (knn *ItemKNN) Predict(userId, itemId string) (float64, error) {
	userIndex, itemIndex, err := knn.lookup(userId, itemId)
	if err != nil {
		return 0, err
	}
	return knn.predict(itemIndex, userIndex), nil
}

func (knn *ItemKNN) ScoreItems(userId string) ([]model.Score, error) {
	return knn.scoreItems(userId, func(userIndex, itemIndex int32) float64 {
		return knn.predict(itemIndex, userIndex)
	})
}

// SimilarItems returns the nearest neighbors of an item.
func (knn *ItemKNN) SimilarItems(itemId string, topN int) (model.RecommendationList, error) {
	if knn.ItemIndex == nil {
		return nil, errors.Trace(model.UnknownItem(itemId))
	}
	itemIndex, ok := knn.ItemIndex.Index(itemId)
	if !ok {
		return nil, errors.Trace(model.UnknownItem(itemId))
	}
	scores := make([]model.Score, len(knn.neighbors[itemIndex]))
	for i, neighbor := range knn.neighbors[itemIndex] {
		neighborId, _ := knn.ItemIndex.String(neighbor.Value)
		scores[i] = model.Score{ItemId: neighborId, Score: neighbor.Weight}
	}
	return model.Rank(scores, topN, nil), nil
}

// UserKNN predicts a rating from ratings of the most similar users.
//
// Hyper-parameters:
//
//	Similarity - cosine, pearson or jaccard. Default is pearson.
//	NNeighbors - The number of neighbors kept per user. Default is 40.
//	MinCommon  - The minimum number of common items of similar users. Default is 2.
type UserKNN struct {
	base
}

func NewUserKNN(params model.Params) *UserKNN {
	knn := new(UserKNN)
	knn.SetParams(params)
	return knn
}

func (knn *UserKNN) Fit(ctx context.Context, trainSet *dataset.Dataset, jobs int) error {
	log.Logger().Info("fit user knn",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_ratings", trainSet.CountInteractions()),
		zap.Any("params", knn.GetParams()))
	userMeans, _, err := knn.init(trainSet)
	if err != nil {
		return errors.Trace(err)
	}
	columns := make([][]int32, len(knn.itemFeedback))
	for itemIndex, vec := range knn.itemFeedback {
		columns[itemIndex] = vec.Indices
	}
	if err = knn.fit(ctx, knn.userFeedback, userMeans, columns, jobs); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("fit user knn complete")
	return nil
}

func (knn *UserKNN) Predict(userId, itemId string) (float64, error) {
	userIndex, itemIndex, err := knn.lookup(userId, itemId)
	if err != nil {
		return 0, err
	}
	return knn.predict(userIndex, itemIndex), nil
}

func (knn *UserKNN) ScoreItems(userId string) ([]model.Score, error) {
	return knn.scoreItems(userId, func(userIndex, itemIndex int32) float64 {
		return knn.predict(userIndex, itemIndex)
	})
}

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
	"testing"

	"github.com/juju/errors"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDataset(t *testing.T) *dataset.Dataset {
	data := dataset.NewDataset()
	for _, r := range []dataset.Interaction{
		{UserId: "a", ItemId: "1", Value: 5},
		{UserId: "a", ItemId: "2", Value: 4},
		{UserId: "a", ItemId: "3", Value: 1},
		{UserId: "b", ItemId: "1", Value: 4},
		{UserId: "b", ItemId: "2", Value: 5},
		{UserId: "b", ItemId: "3", Value: 2},
		{UserId: "b", ItemId: "4", Value: 5},
		{UserId: "c", ItemId: "1", Value: 1},
		{UserId: "c", ItemId: "2", Value: 2},
		{UserId: "c", ItemId: "3", Value: 5},
		{UserId: "c", ItemId: "4", Value: 1},
	} {
		require.NoError(t, data.AddInteraction(r))
	}
	data.AddItem(dataset.Item{ItemId: "5"})
	return data
}

func TestUserKNN(t *testing.T) {
	data := newDataset(t)
	knn := NewUserKNN(model.Params{model.SimilarityMetric: "pearson", model.MinCommon: 2})
	require.NoError(t, knn.Fit(context.Background(), data, 1))
	// only user b is positively correlated with user a
	prediction, err := knn.Predict("a", "4")
	require.NoError(t, err)
	assert.InDelta(t, 13.0/3, prediction, 1e-9)
	list, err := model.Recommend(knn, "a", 10, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "4", list[0].ItemId)
	assert.Equal(t, "5", list[1].ItemId)
	assert.InDelta(t, 10.0/3, list[1].Score, 1e-9)

	_, err = knn.Predict("z", "1")
	assert.True(t, model.IsUnknownUser(err))
	_, err = knn.Predict("a", "z")
	assert.True(t, errors.Is(err, model.ErrUnknownItem))
	_, err = model.Recommend(knn, "z", 10, true)
	assert.True(t, model.IsUnknownUser(err))
}

func TestItemKNN(t *testing.T) {
	data := newDataset(t)
	knn := NewItemKNN(model.Params{model.SimilarityMetric: "pearson", model.MinCommon: 2})
	require.NoError(t, knn.Fit(context.Background(), data, 2))
	similar, err := knn.SimilarItems("1", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "4"}, similar.ItemIds())
	prediction, err := knn.Predict("a", "4")
	require.NoError(t, err)
	assert.Greater(t, prediction, 3.0)
	// cold items fall back to the global mean
	prediction, err = knn.Predict("a", "5")
	require.NoError(t, err)
	assert.InDelta(t, data.GlobalMean(), prediction, 1e-9)
	assert.True(t, knn.SeenItems("a").Contains("1", "2", "3"))

	_, err = knn.SimilarItems("z", 10)
	assert.True(t, errors.Is(err, model.ErrUnknownItem))
}

func TestItemKNN_Jobs(t *testing.T) {
	data := newDataset(t)
	single := NewItemKNN(model.Params{model.SimilarityMetric: "cosine", model.MinCommon: 1})
	require.NoError(t, single.Fit(context.Background(), data, 1))
	multiple := NewItemKNN(single.GetParams())
	require.NoError(t, multiple.Fit(context.Background(), data, 4))
	assert.Equal(t, single.neighbors, multiple.neighbors)
}

func TestKNN_Errors(t *testing.T) {
	knn := NewItemKNN(model.Params{model.SimilarityMetric: "manhattan"})
	err := knn.Fit(context.Background(), newDataset(t), 1)
	assert.True(t, errors.Is(err, errors.NotValid))

	err = NewUserKNN(nil).Fit(context.Background(), dataset.NewDataset(), 1)
	var insufficient *model.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)

	unfitted := NewUserKNN(nil)
	_, err = unfitted.ScoreItems("a")
	assert.True(t, model.IsUnknownUser(err))
	assert.Zero(t, unfitted.SeenItems("a").Cardinality())
	unfitted.Clear()
}

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

package mf

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/juju/errors"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLowRankDataset generates ratings from rank 2 factors with biases. About 80% of
// (user, item) pairs are observed.
func newLowRankDataset(t *testing.T, nUsers, nItems int) *dataset.Dataset {
	rng := rand.New(rand.NewSource(42))
	userFactors := make([][2]float64, nUsers)
	for i := range userFactors {
		userFactors[i] = [2]float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	itemFactors := make([][2]float64, nItems)
	for i := range itemFactors {
		itemFactors[i] = [2]float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	data := dataset.NewDataset()
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			if rng.Float64() < 0.2 && i != u%nItems {
				continue
			}
			value := 3 + 0.3*float64(u%3) - 0.2*float64(i%4) +
				userFactors[u][0]*itemFactors[i][0] + userFactors[u][1]*itemFactors[i][1]
			require.NoError(t, data.AddInteraction(dataset.Interaction{
				UserId: fmt.Sprintf("u%d", u),
				ItemId: fmt.Sprintf("i%d", i),
				Value:  value,
			}))
		}
	}
	return data
}

// newScenarioDataset has 3 users and 3 items. Nobody rated item "c".
func newScenarioDataset(t *testing.T) *dataset.Dataset {
	data := dataset.NewDataset()
	data.AddItem(dataset.Item{ItemId: "a"})
	data.AddItem(dataset.Item{ItemId: "b"})
	data.AddItem(dataset.Item{ItemId: "c"})
	for _, r := range []dataset.Interaction{
		{UserId: "1", ItemId: "a", Value: 5},
		{UserId: "1", ItemId: "b", Value: 3},
		{UserId: "2", ItemId: "a", Value: 4},
		{UserId: "2", ItemId: "b", Value: 1},
		{UserId: "3", ItemId: "a", Value: 1},
		{UserId: "3", ItemId: "b", Value: 5},
	} {
		require.NoError(t, data.AddInteraction(r))
	}
	return data
}

func TestFit_UnratedItem(t *testing.T) {
	data := newScenarioDataset(t)
	m, err := Fit(context.Background(), data, 2, 0.1, 20)
	require.NoError(t, err)
	assert.False(t, m.Invalid())
	assert.False(t, m.IsItemPredictable(2))
	for _, userId := range []string{"1", "2", "3"} {
		list, err := model.Recommend(m, userId, 10, true)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "c", list[0].ItemId)
		assert.False(t, math.IsNaN(list[0].Score) || math.IsInf(list[0].Score, 0))
		// every item is scored when seen items are kept
		list, err = model.Recommend(m, userId, 10, false)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	}
	_, err = model.Recommend(m, "4", 10, true)
	var unknown *model.UnknownUserError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "4", unknown.UserId)
	_, err = m.Predict("1", "z")
	assert.True(t, errors.Is(err, model.ErrUnknownItem))
	_, err = m.Predict("4", "a")
	assert.True(t, model.IsUnknownUser(err))
}

func TestFit_InsufficientData(t *testing.T) {
	_, err := Fit(context.Background(), dataset.NewDataset(), 2, 0.1, 10)
	var insufficient *model.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Empty(t, insufficient.UserId)

	data := newScenarioDataset(t)
	data.AddUser("lonely")
	_, err = Fit(context.Background(), data, 2, 0.1, 10)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "lonely", insufficient.UserId)
}

func TestFit_InvalidParams(t *testing.T) {
	data := newScenarioDataset(t)
	_, err := Fit(context.Background(), data, 0, 0.1, 10)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Fit(context.Background(), data, 2, -1, 10)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Fit(context.Background(), data, 2, 0.1, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestFit_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, newScenarioDataset(t), 2, 0.1, 10)
	assert.True(t, errors.Is(err, context.Canceled))
	err = NewSVD(nil).Fit(ctx, newScenarioDataset(t), NewFitConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestALS(t *testing.T) {
	data := newLowRankDataset(t, 30, 20)
	var losses []float64
	als := NewALS(model.Params{
		model.NFactors: 2,
		model.Reg:      0.01,
		model.NEpochs:  30,
	})
	err := als.Fit(context.Background(), data, NewFitConfig().SetJobs(4).SetOnEpoch(func(_ int, loss float64) {
		losses = append(losses, loss)
	}))
	require.NoError(t, err)
	assert.Len(t, losses, 30)
	assert.Less(t, losses[len(losses)-1], losses[0])
	score, err := model.EvaluateRating(als, data)
	require.NoError(t, err)
	assert.Less(t, score.RMSE, 0.2)

	// jobs do not change the result
	single := NewALS(als.GetParams())
	require.NoError(t, single.Fit(context.Background(), data, NewFitConfig()))
	assert.Equal(t, als.UserFactor, single.UserFactor)
	assert.Equal(t, als.ItemBias, single.ItemBias)

	// fitted model ignores later changes of the train set
	require.NoError(t, data.AddInteraction(dataset.Interaction{UserId: "new", ItemId: "i0", Value: 3}))
	_, err = als.ScoreItems("new")
	assert.True(t, model.IsUnknownUser(err))
}

func TestALS_WithoutBias(t *testing.T) {
	data := newLowRankDataset(t, 20, 10)
	als := NewALS(model.Params{
		model.NFactors: 4,
		model.NEpochs:  10,
		model.UseBias:  false,
	})
	require.NoError(t, als.Fit(context.Background(), data, NewFitConfig()))
	for _, bias := range als.UserBias {
		assert.Zero(t, bias)
	}
	assert.Len(t, als.GetUserFactor(0), 4)
	assert.Len(t, als.GetItemFactor(0), 4)
}

func TestALS_Tolerance(t *testing.T) {
	data := newLowRankDataset(t, 20, 10)
	epochs := 0
	als := NewALS(model.Params{model.NEpochs: 50})
	err := als.Fit(context.Background(), data, NewFitConfig().SetTolerance(0.5).SetOnEpoch(func(int, float64) {
		epochs++
	}))
	require.NoError(t, err)
	assert.Less(t, epochs, 50)
}

func TestSVD(t *testing.T) {
	data := newLowRankDataset(t, 30, 20)
	svd := NewSVD(model.Params{
		model.NFactors: 2,
		model.NEpochs:  100,
		model.Lr:       0.01,
		model.Reg:      0.01,
	})
	require.NoError(t, svd.Fit(context.Background(), data, NewFitConfig()))
	score, err := model.EvaluateRating(svd, data)
	require.NoError(t, err)
	// better than predicting the global mean
	var sum float64
	for _, r := range data.Interactions() {
		sum += (r.Value - data.GlobalMean()) * (r.Value - data.GlobalMean())
	}
	assert.Less(t, score.RMSE, math.Sqrt(sum/float64(data.CountInteractions())))
}

func TestSVD_Diverge(t *testing.T) {
	data := newLowRankDataset(t, 20, 10)
	svd := NewSVD(model.Params{
		model.NEpochs: 20,
		model.Lr:      10.0,
	})
	err := svd.Fit(context.Background(), data, NewFitConfig())
	var convergence *model.ConvergenceError
	assert.ErrorAs(t, err, &convergence)
}

func TestALS_NoImprovement(t *testing.T) {
	// zero factors without biases are a fixed point of ALS
	als := NewALS(model.Params{
		model.NFactors:   2,
		model.NEpochs:    3,
		model.UseBias:    false,
		model.InitStdDev: 0.0,
	})
	err := als.Fit(context.Background(), newScenarioDataset(t), NewFitConfig())
	var convergence *model.ConvergenceError
	require.ErrorAs(t, err, &convergence)
	assert.Equal(t, 3, convergence.Epochs)
	assert.Equal(t, convergence.InitialLoss, convergence.FinalLoss)
}

func TestRecommend_ExcludeSeen(t *testing.T) {
	data := newLowRankDataset(t, 20, 10)
	m, err := Fit(context.Background(), data, 4, 0.1, 5)
	require.NoError(t, err)
	for _, userId := range data.GetUserDict().Strings() {
		list, err := model.Recommend(m, userId, 0, true)
		require.NoError(t, err)
		seen := data.GetSeenItems(userId)
		assert.Equal(t, data.CountItems()-seen.Cardinality(), len(list))
		for i, score := range list {
			assert.False(t, seen.Contains(score.ItemId))
			if i > 0 {
				prev := list[i-1]
				assert.True(t, prev.Score > score.Score || (prev.Score == score.Score && prev.ItemId < score.ItemId))
			}
		}
	}
}

func TestNew(t *testing.T) {
	m, err := New(TypeSVD, nil)
	assert.NoError(t, err)
	assert.IsType(t, &SVD{}, m)
	_, err = New("nmf", nil)
	assert.True(t, errors.Is(err, errors.NotSupported))
	m.Clear()
	assert.True(t, m.Invalid())
	assert.Zero(t, m.SeenItems("a").Cardinality())
}

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
	"math"
	"testing"

	"github.com/juju/errors"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize(dataset.Item{
		Title:  "The Lord of the Rings: The Two Towers",
		Genres: []string{"Adventure", "Film-Noir"},
		Tags:   []string{"Peter  Jackson"},
	})
	assert.Equal(t, []string{"lord", "rings", "two", "towers", "genre:adventure", "genre:film-noir", "tag:peter_jackson"}, tokens)
}

func TestVectorizer(t *testing.T) {
	docs := [][]string{
		{"a", "b", "b"},
		{"a", "c"},
		{"a"},
	}
	v := NewVectorizer(1, 0)
	require.NoError(t, v.Fit(docs))
	assert.Equal(t, []string{"a", "b", "c"}, v.Terms())
	assert.Equal(t, 3, v.Dim())
	idf, ok := v.IDF("a")
	assert.True(t, ok)
	assert.InDelta(t, 1, idf, 1e-9)
	idf, _ = v.IDF("b")
	assert.InDelta(t, math.Log(2)+1, idf, 1e-9)
	_, ok = v.IDF("z")
	assert.False(t, ok)

	vec := v.Transform(docs[0])
	assert.Equal(t, []int32{0, 1}, vec.Indices)
	assert.InDelta(t, 1, vec.Norm(), 1e-9)
	// tf-idf of b is 2 * (ln2 + 1) against 1 for a
	assert.InDelta(t, 2*(math.Log(2)+1), vec.Values[1]/vec.Values[0], 1e-9)
	assert.Zero(t, v.Transform([]string{"z"}).Len())

	// min df and max features
	v = NewVectorizer(2, 0)
	require.NoError(t, v.Fit(docs))
	assert.Equal(t, []string{"a"}, v.Terms())
	v = NewVectorizer(1, 2)
	require.NoError(t, v.Fit(docs))
	assert.Equal(t, []string{"a", "b"}, v.Terms())
	v = NewVectorizer(5, 0)
	var insufficient *model.InsufficientDataError
	assert.ErrorAs(t, v.Fit(docs), &insufficient)
}

func newDataset(t *testing.T) *dataset.Dataset {
	data := dataset.NewDataset()
	data.AddItem(dataset.Item{ItemId: "1", Title: "Toy Story", Genres: []string{"Animation", "Comedy"}})
	data.AddItem(dataset.Item{ItemId: "2", Title: "Toy Story 2", Genres: []string{"Animation", "Comedy"}})
	data.AddItem(dataset.Item{ItemId: "3", Title: "Heat", Genres: []string{"Action", "Crime"}})
	data.AddItem(dataset.Item{ItemId: "4", Title: "Casino", Genres: []string{"Crime", "Drama"}})
	data.AddItem(dataset.Item{ItemId: "5", Title: "Antz", Genres: []string{"Animation"}})
	for _, r := range []dataset.Interaction{
		{UserId: "kid", ItemId: "1", Value: 5},
		{UserId: "kid", ItemId: "3", Value: 1},
		{UserId: "noir", ItemId: "3", Value: 5},
		{UserId: "noir", ItemId: "1", Value: 2},
		{UserId: "flat", ItemId: "4", Value: 3},
	} {
		require.NoError(t, data.AddInteraction(r))
	}
	data.AddUser("new")
	return data
}

func TestModel(t *testing.T) {
	data := newDataset(t)
	m := NewModel(nil)
	require.NoError(t, m.Fit(context.Background(), data, 2))
	assert.Greater(t, m.Dim(), 0)

	list, err := model.Recommend(m, "kid", 2, true)
	require.NoError(t, err)
	assert.Equal(t, "2", list[0].ItemId)
	assert.NotContains(t, list.ItemIds(), "1")
	assert.NotContains(t, list.ItemIds(), "3")

	list, err = model.Recommend(m, "noir", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, list.ItemIds())

	// a single rating equal to the user mean still counts as liked
	list, err = model.Recommend(m, "flat", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, list.ItemIds())

	score, err := m.Predict("kid", "2")
	require.NoError(t, err)
	assert.LessOrEqual(t, score, 1.0+1e-9)
	assert.Greater(t, score, 0.0)

	_, err = model.Recommend(m, "new", 10, true)
	assert.True(t, model.IsUnknownUser(err))
	_, err = model.Recommend(m, "ghost", 10, true)
	assert.True(t, model.IsUnknownUser(err))
	_, err = m.Predict("kid", "z")
	assert.True(t, errors.Is(err, model.ErrUnknownItem))
}

func TestModel_SimilarItems(t *testing.T) {
	m := NewModel(nil)
	require.NoError(t, m.Fit(context.Background(), newDataset(t), 1))
	list, err := m.SimilarItems("1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "5"}, list.ItemIds())
	assert.NotContains(t, list.ItemIds(), "1")
	_, err = m.SimilarItems("z", 2)
	assert.True(t, errors.Is(err, model.ErrUnknownItem))

	m.Clear()
	assert.Zero(t, m.Dim())
	_, err = m.ScoreItems("kid")
	assert.True(t, model.IsUnknownUser(err))
}

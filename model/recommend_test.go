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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	table := &ratingTable{
		scores: map[string]map[string]float64{
			"a": {"1": 1, "2": 3, "3": 3, "4": 5, "5": math.NaN(), "6": math.Inf(1)},
		},
		seen: map[string][]string{"a": {"4"}},
	}
	list, err := Recommend(table, "a", 10, true)
	require.NoError(t, err)
	// ties broken by ascending item id, seen and non-finite items dropped
	assert.Equal(t, RecommendationList{{"2", 3}, {"3", 3}, {"1", 1}}, list)

	list, err = Recommend(table, "a", 2, false)
	require.NoError(t, err)
	assert.Equal(t, RecommendationList{{"4", 5}, {"2", 3}}, list)

	list, err = Recommend(table, "a", 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "2", "3", "1"}, list.ItemIds())

	_, err = Recommend(table, "z", 10, true)
	var unknown *UnknownUserError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "z", unknown.UserId)
	assert.True(t, IsUnknownUser(err))
}

func TestRank(t *testing.T) {
	list := Rank([]Score{{"b", 1}, {"a", 1}, {"b", 2}, {"c", 0}}, 0, mapset.NewSet("c"))
	assert.Equal(t, RecommendationList{{"a", 1}, {"b", 1}}, list)
}

func TestRecommendBatch(t *testing.T) {
	table := &ratingTable{
		scores: map[string]map[string]float64{
			"a": {"1": 1, "2": 2},
			"b": {"1": 2, "2": 1},
		},
		seen: map[string][]string{"a": {"2"}},
	}
	lists, err := RecommendBatch(context.Background(), table, []string{"a", "b", "a"}, 10, true, 2)
	require.NoError(t, err)
	assert.Equal(t, []RecommendationList{{{"1", 1}}, {{"1", 2}, {"2", 1}}, {{"1", 1}}}, lists)

	_, err = RecommendBatch(context.Background(), table, []string{"a", "x"}, 10, true, 2)
	assert.True(t, IsUnknownUser(err))
}

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

package knowledge

import (
	"reflect"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// WeightedRating is the IMDB weighted rating. Items with few ratings are pulled
// toward the global mean.
const WeightedRating = "count / (count + min_count) * mean + min_count / (count + min_count) * global_mean"

// Config describes a knowledge-based ranking. Score is an expression evaluated per
// item and Filter an optional boolean expression selecting items. Both see:
//
//	item        - dataset.Item (ItemId, Title, Year, Genres, Tags)
//	count       - number of ratings of the item
//	mean        - mean rating of the item, the global mean if unrated
//	global_mean - mean of all ratings
//	min_count   - the Quantile of rating counts of rated items, at least 1
type Config struct {
	Name     string
	Score    string
	Filter   string
	Quantile float64
}

func DefaultConfig() Config {
	return Config{
		Name:     "weighted_rating",
		Score:    WeightedRating,
		Quantile: 0.9,
	}
}

func PopularConfig() Config {
	return Config{
		Name:     "popular",
		Score:    "count",
		Quantile: 0.9,
	}
}

func newEnv(item dataset.Item, count int, mean, globalMean, minCount float64) map[string]any {
	return map[string]any{
		"item":        item,
		"count":       count,
		"mean":        mean,
		"global_mean": globalMean,
		"min_count":   minCount,
	}
}

func compileScore(code string) (*vm.Program, error) {
	program, err := expr.Compile(code, expr.Env(newEnv(dataset.Item{}, 0, 0, 0, 0)))
	if err != nil {
		return nil, errors.Annotatef(err, "compile score %q", code)
	}
	switch program.Node().Type().Kind() {
	case reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return nil, errors.NotValidf("score %q returning %v", code, program.Node().Type())
	}
	return program, nil
}

func compileFilter(code string) (*vm.Program, error) {
	if code == "" {
		return nil, nil
	}
	program, err := expr.Compile(code, expr.Env(newEnv(dataset.Item{}, 0, 0, 0, 0)), expr.AsBool())
	if err != nil {
		return nil, errors.Annotatef(err, "compile filter %q", code)
	}
	if program.Node().Type().Kind() != reflect.Bool {
		return nil, errors.NotValidf("filter %q returning %v", code, program.Node().Type())
	}
	return program, nil
}

func toFloat(result any) (float64, bool) {
	switch typed := result.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

// Model ranks items by rules over catalog metadata and rating statistics. It needs no
// user history, so it serves users unknown to personalized models.
type Model struct {
	name       string
	quantile   float64
	scoreFunc  *vm.Program
	filterFunc *vm.Program
	// fitted
	envs       []map[string]any
	scores     []model.Score
	minCount   float64
	globalMean float64
	seen       map[string]mapset.Set[string]
}

// New compiles the expressions of a config.
func New(cfg Config) (*Model, error) {
	if cfg.Quantile < 0 || cfg.Quantile > 1 {
		return nil, errors.NotValidf("quantile %v", cfg.Quantile)
	}
	scoreFunc, err := compileScore(cfg.Score)
	if err != nil {
		return nil, errors.Trace(err)
	}
	filterFunc, err := compileFilter(cfg.Filter)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Model{
		name:       cfg.Name,
		quantile:   cfg.Quantile,
		scoreFunc:  scoreFunc,
		filterFunc: filterFunc,
	}, nil
}

func (m *Model) Name() string {
	return m.name
}

// MinCount is the fitted min_count.
func (m *Model) MinCount() float64 {
	return m.minCount
}

// Fit computes rating statistics of every catalog item and scores them.
func (m *Model) Fit(trainSet *dataset.Dataset) error {
	items := trainSet.GetItems()
	if len(items) == 0 {
		return errors.Trace(&model.InsufficientDataError{})
	}
	var counts []float64
	for itemIndex := range items {
		if users, _ := trainSet.GetItemFeedback(int32(itemIndex)); len(users) > 0 {
			counts = append(counts, float64(len(users)))
		}
	}
	m.minCount = 1
	if len(counts) > 0 {
		sort.Float64s(counts)
		m.minCount = max(stat.Quantile(m.quantile, stat.Empirical, counts, nil), 1)
	}
	m.globalMean = trainSet.GlobalMean()
	m.envs = make([]map[string]any, len(items))
	m.scores = make([]model.Score, 0, len(items))
	for itemIndex, item := range items {
		users, _ := trainSet.GetItemFeedback(int32(itemIndex))
		m.envs[itemIndex] = newEnv(item, len(users), trainSet.ItemMean(int32(itemIndex)), m.globalMean, m.minCount)
		score, ok := m.evaluate(m.envs[itemIndex], m.filterFunc)
		if ok {
			m.scores = append(m.scores, model.Score{ItemId: item.ItemId, Score: score})
		}
	}
	m.seen = make(map[string]mapset.Set[string], trainSet.CountUsers())
	for _, userId := range trainSet.GetUserDict().Strings() {
		m.seen[userId] = trainSet.GetSeenItems(userId)
	}
	log.Logger().Info("fit knowledge",
		zap.String("name", m.name),
		zap.Int("n_items", len(m.scores)),
		zap.Float64("min_count", m.minCount),
		zap.Float64("global_mean", m.globalMean))
	return nil
}

// evaluate scores an item if it passes the filter.
func (m *Model) evaluate(env map[string]any, filterFunc *vm.Program) (float64, bool) {
	if filterFunc != nil {
		result, err := expr.Run(filterFunc, env)
		if err != nil {
			log.Logger().Error("evaluate filter function", zap.Error(err))
			return 0, false
		}
		if passed, _ := result.(bool); !passed {
			return 0, false
		}
	}
	result, err := expr.Run(m.scoreFunc, env)
	if err != nil {
		log.Logger().Error("evaluate score function", zap.Error(err))
		return 0, false
	}
	score, ok := toFloat(result)
	if !ok {
		log.Logger().Error("score function must return float64", zap.Any("result", result))
	}
	return score, ok
}

// ScoreItems returns scores of items passing the configured filter. Every user is
// served, including users never seen.
func (m *Model) ScoreItems(_ string) ([]model.Score, error) {
	if m.envs == nil {
		return nil, errors.Trace(&model.InsufficientDataError{})
	}
	return m.scores, nil
}

func (m *Model) SeenItems(userId string) mapset.Set[string] {
	if seen, ok := m.seen[userId]; ok {
		return seen
	}
	return mapset.NewSet[string]()
}

// Query ranks items passing an ad hoc filter, such as constraints given by a user:
//
//	item.Year >= 1990 && "Comedy" in item.Genres
func (m *Model) Query(filter string, topN int, exclude mapset.Set[string]) (model.RecommendationList, error) {
	if m.envs == nil {
		return nil, errors.Trace(&model.InsufficientDataError{})
	}
	filterFunc, err := compileFilter(filter)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores := make([]model.Score, 0, len(m.envs))
	for _, env := range m.envs {
		if score, ok := m.evaluate(env, filterFunc); ok {
			scores = append(scores, model.Score{ItemId: env["item"].(dataset.Item).ItemId, Score: score})
		}
	}
	return model.Rank(scores, topN, exclude), nil
}

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
	"math"
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// failedTrialRMSE is reported for trials whose model can not be fitted.
const failedTrialRMSE = 1e6

func (als *ALS) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:    lo.Must(trial.SuggestInt(string(model.NFactors), 4, 64)),
		model.Reg:         lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 1)),
		model.InitStdDev:  lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
		model.NEpochs:     als.nEpochs,
		model.RandomState: als.GetRandomState(),
	}
}

func (svd *SVD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:    lo.Must(trial.SuggestInt(string(model.NFactors), 4, 64)),
		model.Reg:         lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
		model.Lr:          lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.InitStdDev:  lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
		model.NEpochs:     svd.nEpochs,
		model.RandomState: svd.GetRandomState(),
	}
}

type ModelCreator func() MatrixFactorization

// SearchResult is the best model found by a search.
type SearchResult struct {
	Type   string
	Params model.Params
	RMSE   float64
	Trials int
}

// ModelSearch searches model types and hyper-parameters minimizing validation RMSE.
type ModelSearch struct {
	ctx           context.Context
	modelCreators map[string]ModelCreator
	modelTypes    []string
	trainSet      *dataset.Dataset
	valSet        *dataset.Dataset
	config        *FitConfig
	result        SearchResult
}

func NewModelSearch(ctx context.Context, models map[string]ModelCreator, trainSet, valSet *dataset.Dataset, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		ctx:           ctx,
		modelCreators: models,
		modelTypes:    modelTypes,
		trainSet:      trainSet,
		valSet:        valSet,
		config:        config,
		result:        SearchResult{RMSE: math.Inf(1)},
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	if err := ms.ctx.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.modelCreators[modelType]()
	m.SetParams(m.SuggestParams(trial))
	ms.result.Trials++
	if err = m.Fit(ms.ctx, ms.trainSet, ms.config); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, errors.Trace(err)
		}
		log.Logger().Warn("trial failed", zap.String("model", modelType), zap.Any("params", m.GetParams()), zap.Error(err))
		return failedTrialRMSE, nil
	}
	score, err := model.EvaluateRating(m, ms.valSet)
	if err != nil {
		return 0, errors.Trace(err)
	}
	log.Logger().Info("trial complete", zap.String("model", modelType), zap.Any("params", m.GetParams()), zap.Float64("rmse", score.RMSE))
	if score.RMSE < ms.result.RMSE {
		ms.result.Type = modelType
		ms.result.Params = m.GetParams()
		ms.result.RMSE = score.RMSE
	}
	return score.RMSE, nil
}

func (ms *ModelSearch) Result() SearchResult {
	return ms.result
}

// Tune runs a TPE search over the given model types for nTrials trials.
func Tune(ctx context.Context, trainSet, valSet *dataset.Dataset, modelTypes []string, nTrials int, seed int64, config *FitConfig) (SearchResult, error) {
	if nTrials <= 0 {
		return SearchResult{}, errors.NotValidf("number of trials %d", nTrials)
	}
	creators := make(map[string]ModelCreator, len(modelTypes))
	for _, modelType := range modelTypes {
		if _, err := New(modelType, nil); err != nil {
			return SearchResult{}, errors.Trace(err)
		}
		creators[modelType] = func() MatrixFactorization {
			m, _ := New(modelType, model.Params{model.RandomState: seed})
			return m
		}
	}
	search := NewModelSearch(ctx, creators, trainSet, valSet, config)
	study, err := goptuna.CreateStudy("movierec",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(seed))))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(search.Objective, nTrials); err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	result := search.Result()
	if result.Params == nil {
		return SearchResult{}, errors.Trace(&model.ConvergenceError{Epochs: result.Trials, InitialLoss: math.Inf(1), FinalLoss: math.Inf(1)})
	}
	log.Logger().Info("search complete", zap.String("model", result.Type), zap.Any("params", result.Params), zap.Float64("rmse", result.RMSE))
	return result, nil
}

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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/config"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/movierec/movierec/model/content"
	"github.com/movierec/movierec/model/hybrid"
	"github.com/movierec/movierec/model/knn"
	"github.com/movierec/movierec/model/knowledge"
	"github.com/movierec/movierec/model/mf"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Fit fits techniques on a train set and returns a recommender serving them. Without
// techniques given, those in the configuration are fitted. Techniques blended by the
// hybrid and the knowledge-based fallback are fitted on demand. onEpoch, if not nil,
// receives training losses of matrix factorization.
func Fit(ctx context.Context, cfg *config.Config, trainSet *dataset.Dataset, onEpoch func(epoch int, loss float64), techniques ...string) (*Recommender, error) {
	if len(techniques) == 0 {
		techniques = cfg.Recommend.Techniques
	}
	required := mapset.NewThreadUnsafeSet[string]()
	for _, technique := range techniques {
		if !lo.Contains(Techniques, technique) {
			return nil, errors.NotValidf("technique %q", technique)
		}
		required.Add(technique)
	}
	if required.Contains(Hybrid) {
		required.Append(cfg.Hybrid.A, cfg.Hybrid.B)
	}
	if cfg.Recommend.EnableFallback {
		required.Add(Knowledge)
	}

	recommender := NewRecommender(cfg.Recommend.ExcludeSeen)
	for _, technique := range Techniques {
		if !required.Contains(technique) {
			continue
		}
		start := time.Now()
		scorer, err := fitTechnique(ctx, cfg, trainSet, technique, recommender, onEpoch)
		if err != nil {
			return nil, errors.Annotatef(err, "fit %s", technique)
		}
		recommender.Register(technique, scorer)
		log.Logger().Info("fit technique",
			zap.String("technique", technique),
			zap.Duration("duration", time.Since(start)))
	}
	if cfg.Recommend.EnableFallback {
		if err := recommender.SetFallback(Knowledge); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return recommender, nil
}

func fitTechnique(ctx context.Context, cfg *config.Config, trainSet *dataset.Dataset, technique string,
	fitted *Recommender, onEpoch func(epoch int, loss float64)) (model.Scorer, error) {
	jobs := cfg.Recommend.Jobs
	switch technique {
	case MatrixFactorization:
		m, err := mf.New(cfg.MF.Type, cfg.MF.GetParams())
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = m.Fit(ctx, trainSet, cfg.MF.GetFitConfig(jobs).SetOnEpoch(onEpoch)); err != nil {
			return nil, errors.Trace(err)
		}
		return m, nil
	case ItemKNN:
		m := knn.NewItemKNN(cfg.KNN.GetParams())
		if err := m.Fit(ctx, trainSet, jobs); err != nil {
			return nil, errors.Trace(err)
		}
		return m, nil
	case UserKNN:
		m := knn.NewUserKNN(cfg.KNN.GetParams())
		if err := m.Fit(ctx, trainSet, jobs); err != nil {
			return nil, errors.Trace(err)
		}
		return m, nil
	case Content:
		m := content.NewModel(cfg.Content.GetParams())
		if err := m.Fit(ctx, trainSet, jobs); err != nil {
			return nil, errors.Trace(err)
		}
		return m, nil
	case Knowledge:
		m, err := knowledge.New(cfg.Knowledge.GetConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = m.Fit(trainSet); err != nil {
			return nil, errors.Trace(err)
		}
		return m, nil
	case Hybrid:
		// blended techniques precede the hybrid in fitting order
		a, err := fitted.Scorer(cfg.Hybrid.A)
		if err != nil {
			return nil, errors.Trace(err)
		}
		b, err := fitted.Scorer(cfg.Hybrid.B)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return hybrid.NewWeighted(a, b, cfg.Hybrid.Weight, cfg.Hybrid.Normalize)
	default:
		return nil, errors.NotSupportedf("technique %q", technique)
	}
}

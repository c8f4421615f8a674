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

	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/common/floats"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SVD algorithm, as popularized by Simon Funk during the
// Netflix Prize. The prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^Tp_u
//
// Weights are learned by stochastic gradient descent. Hyper-parameters:
//
//	UseBias    - Add bias in SVD model. Default is true.
//	Reg        - The regularization parameter of the cost function. Default is 0.02.
//	Lr         - The learning rate of SGD. Default is 0.005.
//	NFactors   - The number of latent factors. Default is 16.
//	NEpochs    - The number of iteration of the SGD procedure. Default is 20.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
type SVD struct {
	BaseMatrixFactorization
	lr float32
}

// NewSVD creates a SVD model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
}

func (svd *SVD) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{8, 16, 32, 64}).Else([]interface{}{16}),
		model.Lr:         []interface{}{0.001, 0.005, 0.01, 0.05},
		model.Reg:        []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
	}
}

// Fit the SVD model. Its task complexity is O(nEpochs * |R| * k). SGD is sequential,
// config.Jobs is ignored.
func (svd *SVD) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	log.Logger().Info("fit svd", append(config.fields(),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_ratings", trainSet.CountInteractions()),
		zap.Any("params", svd.GetParams()))...)
	if err := svd.Init(trainSet); err != nil {
		return errors.Trace(err)
	}
	if svd.lr <= 0 {
		return errors.NotValidf("learning rate %v", svd.lr)
	}
	// flatten ratings
	type rating struct {
		userIndex int32
		itemIndex int32
		value     float32
	}
	ratings := make([]rating, 0, trainSet.CountInteractions())
	for userIndex := 0; userIndex < trainSet.CountUsers(); userIndex++ {
		items, values := trainSet.GetUserFeedback(int32(userIndex))
		for j, itemIndex := range items {
			ratings = append(ratings, rating{int32(userIndex), itemIndex, float32(values[j])})
		}
	}
	// Create buffers
	a := make([]float32, svd.nFactors)
	b := make([]float32, svd.nFactors)

	tracker, err := newLossTracker("svd", svd.nEpochs, svd.Loss(trainSet), config)
	if err != nil {
		return err
	}
	rng := svd.GetRandomGenerator()
	for ep := 1; ep <= svd.nEpochs; ep++ {
		if err = ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		for _, i := range rng.Perm(len(ratings)) {
			r := ratings[i]
			// Compute error: e_{ui} = r - \hat r
			diff := r.value - svd.internalPredict(r.userIndex, r.itemIndex)
			if svd.useBias {
				// Update user Bias: b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
				svd.UserBias[r.userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[r.userIndex])
				// Update item Bias: b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
				svd.ItemBias[r.itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[r.itemIndex])
			}
			userFactor := svd.UserFactor[r.userIndex]
			itemFactor := svd.ItemFactor[r.itemIndex]
			// Update user latent factor: p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			floats.MulConstTo(itemFactor, diff, a)
			floats.MulConstAdd(userFactor, -svd.reg, a)
			// Update item latent factor: q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			floats.MulConstTo(userFactor, diff, b)
			floats.MulConstAdd(itemFactor, -svd.reg, b)
			floats.MulConstAdd(a, svd.lr, userFactor)
			floats.MulConstAdd(b, svd.lr, itemFactor)
		}
		stop, err := tracker.observe(ep, svd.Loss(trainSet))
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return tracker.finish()
}

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
	"github.com/movierec/movierec/common/parallel"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// jitter is added to the diagonal when a normal equation is not positive definite.
const jitter = 1e-6

// ALS fits biased latent factors by alternating least squares. Each epoch fixes
// item weights and solves every user row in closed form, then does the same for
// items. A row with bias is solved with augmented vectors:
//
//	[p_u; b_u] = (\sum_i y_i y_i^T + λI)^{-1} \sum_i (r_{ui} - μ - b_i) y_i, y_i = [q_i; 1]
//
// Hyper-parameters:
//
//	NFactors   - The number of latent factors. Default is 16.
//	NEpochs    - The number of epochs. Default is 20.
//	Reg        - The regularization strength. Default is 0.06.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
//	UseBias    - Learn user and item biases. Default is true.
//	RandomState - The random seed. Default is 0.
type ALS struct {
	BaseMatrixFactorization
}

// NewALS creates an ALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

func (als *ALS) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{8, 16, 32, 64}).Else([]interface{}{16}),
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
		model.Reg:        []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
	}
}

// solver solves regularized normal equations of one row. Each worker owns one.
type solver struct {
	dim  int
	a    *mat.SymDense
	b    *mat.VecDense
	x    *mat.VecDense
	y    []float64
	chol mat.Cholesky
}

func newSolver(dim int) *solver {
	return &solver{
		dim: dim,
		a:   mat.NewSymDense(dim, nil),
		b:   mat.NewVecDense(dim, nil),
		x:   mat.NewVecDense(dim, nil),
		y:   make([]float64, dim),
	}
}

// solve minimizes \sum_j (t_j - x^T y_j)^2 + reg ||x||^2 where feature fills y_j.
func (s *solver) solve(n int, feature func(j int, y []float64) (target float64), reg float64) ([]float64, error) {
	s.a.Zero()
	s.b.Zero()
	for j := 0; j < n; j++ {
		target := feature(j, s.y)
		for p := 0; p < s.dim; p++ {
			s.b.SetVec(p, s.b.AtVec(p)+target*s.y[p])
			for q := p; q < s.dim; q++ {
				s.a.SetSym(p, q, s.a.At(p, q)+s.y[p]*s.y[q])
			}
		}
	}
	for p := 0; p < s.dim; p++ {
		s.a.SetSym(p, p, s.a.At(p, p)+reg)
	}
	if ok := s.chol.Factorize(s.a); !ok {
		for p := 0; p < s.dim; p++ {
			s.a.SetSym(p, p, s.a.At(p, p)+jitter)
		}
		if ok = s.chol.Factorize(s.a); !ok {
			return nil, errors.New("normal equation is not positive definite")
		}
	}
	if err := s.chol.SolveVecTo(s.x, s.b); err != nil {
		// near singular systems still produce a solution
		if _, isCondition := err.(mat.Condition); !isCondition {
			return nil, errors.Trace(err)
		}
	}
	return s.x.RawVector().Data, nil
}

// Fit the ALS model. Its task complexity is O(nEpochs * (|R| k^2 + (|U| + |I|) k^3)).
func (als *ALS) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	log.Logger().Info("fit als", append(config.fields(),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_ratings", trainSet.CountInteractions()),
		zap.Any("params", als.GetParams()))...)
	if err := als.Init(trainSet); err != nil {
		return errors.Trace(err)
	}
	dim := als.nFactors
	if als.useBias {
		dim++
	}
	jobs := max(config.Jobs, 1)
	solvers := make([]*solver, jobs)
	for i := range solvers {
		solvers[i] = newSolver(dim)
	}
	reg := float64(als.reg)
	mean := float64(als.GlobalMean)

	tracker, err := newLossTracker("als", als.nEpochs, als.Loss(trainSet), config)
	if err != nil {
		return err
	}
	for ep := 1; ep <= als.nEpochs; ep++ {
		// Update user factors
		err = parallel.Parallel(ctx, trainSet.CountUsers(), jobs, func(workerId, userIndex int) error {
			items, values := trainSet.GetUserFeedback(int32(userIndex))
			x, err := solvers[workerId].solve(len(items), func(j int, y []float64) float64 {
				itemIndex := items[j]
				for f, v := range als.ItemFactor[itemIndex] {
					y[f] = float64(v)
				}
				target := values[j] - mean
				if als.useBias {
					y[als.nFactors] = 1
					target -= float64(als.ItemBias[itemIndex])
				}
				return target
			}, reg)
			if err != nil {
				return errors.Annotatef(err, "solve user %d", userIndex)
			}
			for f := 0; f < als.nFactors; f++ {
				als.UserFactor[userIndex][f] = float32(x[f])
			}
			if als.useBias {
				als.UserBias[userIndex] = float32(x[als.nFactors])
			}
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		// Update item factors
		err = parallel.Parallel(ctx, trainSet.CountItems(), jobs, func(workerId, itemIndex int) error {
			users, values := trainSet.GetItemFeedback(int32(itemIndex))
			if len(users) == 0 {
				return nil
			}
			x, err := solvers[workerId].solve(len(users), func(j int, y []float64) float64 {
				userIndex := users[j]
				for f, v := range als.UserFactor[userIndex] {
					y[f] = float64(v)
				}
				target := values[j] - mean
				if als.useBias {
					y[als.nFactors] = 1
					target -= float64(als.UserBias[userIndex])
				}
				return target
			}, reg)
			if err != nil {
				return errors.Annotatef(err, "solve item %d", itemIndex)
			}
			for f := 0; f < als.nFactors; f++ {
				als.ItemFactor[itemIndex][f] = float32(x[f])
			}
			if als.useBias {
				als.ItemBias[itemIndex] = float32(x[als.nFactors])
			}
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		stop, err := tracker.observe(ep, als.Loss(trainSet))
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return tracker.finish()
}

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
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
)

const (
	TypeALS = "als"
	TypeSVD = "svd"
)

// New creates an unfitted model by type name.
func New(modelType string, params model.Params) (MatrixFactorization, error) {
	switch modelType {
	case TypeALS:
		return NewALS(params), nil
	case TypeSVD:
		return NewSVD(params), nil
	default:
		return nil, errors.NotSupportedf("matrix factorization %q", modelType)
	}
}

// Fit decomposes the rating matrix into k biased latent factors by alternating least
// squares, minimizing squared error plus L2 regularization for at most iterations epochs.
func Fit(ctx context.Context, trainSet *dataset.Dataset, k int, reg float64, iterations int) (MatrixFactorization, error) {
	als := NewALS(model.Params{
		model.NFactors: k,
		model.Reg:      reg,
		model.NEpochs:  iterations,
	})
	if err := als.Fit(ctx, trainSet, NewFitConfig()); err != nil {
		return nil, errors.Trace(err)
	}
	return als, nil
}

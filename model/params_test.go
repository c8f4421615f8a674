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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Copy(t *testing.T) {
	// Create parameters
	a := Params{
		NFactors: 1,
		Lr:       0.1,
		Reg:      0.2,
		UseBias:  true,
	}
	// Create copy
	b := a.Copy()
	b[NFactors] = 2
	b[Lr] = 0.2
	b[Reg] = 0.3
	b[UseBias] = false
	// Check original parameters
	assert.Equal(t, 1, a.GetInt(NFactors, -1))
	assert.Equal(t, 0.1, a.GetFloat64(Lr, -0.1))
	assert.Equal(t, float32(0.2), a.GetFloat32(Reg, -0.1))
	assert.True(t, a.GetBool(UseBias, false))
	// Check copy parameters
	assert.Equal(t, 2, b.GetInt(NFactors, -1))
	assert.Equal(t, 0.2, b.GetFloat64(Lr, -0.1))
	assert.Equal(t, float32(0.3), b.GetFloat32(Reg, -0.1))
	assert.False(t, b.GetBool(UseBias, true))
}

func TestParams_Getters(t *testing.T) {
	p := Params{
		NFactors:         "wrong",
		RandomState:      7,
		SimilarityMetric: "pearson",
		InitMean:         int64(3),
	}
	// type mismatch falls back to default
	assert.Equal(t, 10, p.GetInt(NFactors, 10))
	assert.Equal(t, int64(7), p.GetInt64(RandomState, 0))
	assert.Equal(t, "pearson", p.GetString(SimilarityMetric, "cosine"))
	assert.Equal(t, "cosine", p.GetString(NNeighbors, "cosine"))
	assert.Equal(t, 3, p.GetInt(InitMean, 0))
	assert.Equal(t, float32(0.5), p.GetFloat32(InitStdDev, 0.5))
	assert.Equal(t, float32(0.5), p.GetFloat32(SimilarityMetric, 0.5))
	assert.False(t, p.GetBool(SimilarityMetric, false))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 10, Reg: 0.1}
	b := a.Overwrite(Params{Reg: 0.5, NEpochs: 3})
	assert.Equal(t, Params{NFactors: 10, Reg: 0.5, NEpochs: 3}, b)
	assert.Equal(t, Params{NFactors: 10, Reg: 0.1}, a)
	assert.Equal(t, `{"NFactors":10,"Reg":0.1}`, a.ToString())
}

func TestParamsGrid(t *testing.T) {
	grid := ParamsGrid{NFactors: {8, 16}}
	grid.Fill(ParamsGrid{NFactors: {4}, Reg: {0.01, 0.1, 1}})
	assert.Equal(t, 2, grid.Len())
	assert.Equal(t, []interface{}{8, 16}, grid[NFactors])
	assert.Equal(t, 6, grid.NumCombinations())
}

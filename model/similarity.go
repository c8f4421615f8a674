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
	"math"
	"sort"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric is the name of a similarity metric.
type Metric string

const (
	Cosine  Metric = "cosine"
	Pearson Metric = "pearson"
	Jaccard Metric = "jaccard"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	switch metric := Metric(name); metric {
	case Cosine, Pearson, Jaccard:
		return metric, nil
	default:
		return "", errors.NotValidf("similarity metric %q", name)
	}
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// Similarity computes the similarity between two dense vectors of equal dimension.
// It is 0 when either vector has zero magnitude, or zero variance for Pearson.
func Similarity(a, b []float64, metric Metric) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Trace(&DimensionMismatchError{Left: len(a), Right: len(b)})
	}
	if len(a) == 0 {
		return 0, nil
	}
	switch metric {
	case Cosine:
		return cosine(a, b), nil
	case Pearson:
		meanA, meanB := stat.Mean(a, nil), stat.Mean(b, nil)
		centeredA := lo.Map(a, func(x float64, _ int) float64 { return x - meanA })
		centeredB := lo.Map(b, func(x float64, _ int) float64 { return x - meanB })
		return cosine(centeredA, centeredB), nil
	case Jaccard:
		intersect, union := 0, 0
		for i := range a {
			if a[i] != 0 || b[i] != 0 {
				union++
				if a[i] != 0 && b[i] != 0 {
					intersect++
				}
			}
		}
		if union == 0 {
			return 0, nil
		}
		return float64(intersect) / float64(union), nil
	default:
		return 0, errors.NotValidf("similarity metric %q", metric)
	}
}

func cosine(a, b []float64) float64 {
	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA == 0 || normB == 0 || math.IsNaN(normA) || math.IsNaN(normB) {
		return 0
	}
	sim := floats.Dot(a, b) / (normA * normB)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return clamp(sim)
}

// SparseVector is a sparse vector whose indices are sorted ascending.
type SparseVector struct {
	Indices []int32
	Values  []float64
}

// NewSparseVector sorts entries by index. Duplicated indices keep the last value.
func NewSparseVector(indices []int32, values []float64) SparseVector {
	entries := make(map[int32]float64, len(indices))
	for i, index := range indices {
		entries[index] = values[i]
	}
	vec := SparseVector{
		Indices: lo.Keys(entries),
		Values:  make([]float64, len(entries)),
	}
	sort.Slice(vec.Indices, func(i, j int) bool { return vec.Indices[i] < vec.Indices[j] })
	for i, index := range vec.Indices {
		vec.Values[i] = entries[index]
	}
	return vec
}

func (vec SparseVector) Len() int {
	return len(vec.Indices)
}

// Dense converts the vector to a dense vector of dimension dim.
func (vec SparseVector) Dense(dim int) []float64 {
	dense := make([]float64, dim)
	for i, index := range vec.Indices {
		if int(index) < dim {
			dense[index] = vec.Values[i]
		}
	}
	return dense
}

// Get returns the value at index.
func (vec SparseVector) Get(index int32) (float64, bool) {
	i := sort.Search(len(vec.Indices), func(i int) bool { return vec.Indices[i] >= index })
	if i < len(vec.Indices) && vec.Indices[i] == index {
		return vec.Values[i], true
	}
	return 0, false
}

// Norm returns the L2 norm.
func (vec SparseVector) Norm() float64 {
	return floats.Norm(vec.Values, 2)
}

// Mean returns the mean of stored entries.
func (vec SparseVector) Mean() float64 {
	if len(vec.Values) == 0 {
		return 0
	}
	return stat.Mean(vec.Values, nil)
}

// Dot computes the inner product with another sparse vector.
func (vec SparseVector) Dot(other SparseVector) float64 {
	sum := 0.0
	vec.forIntersection(other, func(a, b float64) {
		sum += a * b
	})
	return sum
}

// forIntersection calls f on entries present in both vectors.
func (vec SparseVector) forIntersection(other SparseVector, f func(a, b float64)) {
	i, j := 0, 0
	for i < len(vec.Indices) && j < len(other.Indices) {
		switch {
		case vec.Indices[i] == other.Indices[j]:
			f(vec.Values[i], other.Values[j])
			i++
			j++
		case vec.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
}

// SparseSimilarity computes the similarity between two sparse rating vectors over
// co-rated entries. Pearson centers each vector by its own mean. Pairs with fewer
// than minCommon co-rated entries have similarity 0.
func SparseSimilarity(a, b SparseVector, metric Metric, minCommon int) float64 {
	var common int
	a.forIntersection(b, func(_, _ float64) {
		common++
	})
	if common == 0 || common < minCommon {
		return 0
	}
	var m, n, l float64
	switch metric {
	case Cosine:
		a.forIntersection(b, func(x, y float64) {
			m += x * x
			n += y * y
			l += x * y
		})
	case Pearson:
		meanA, meanB := a.Mean(), b.Mean()
		a.forIntersection(b, func(x, y float64) {
			x -= meanA
			y -= meanB
			m += x * x
			n += y * y
			l += x * y
		})
	case Jaccard:
		return float64(common) / float64(a.Len()+b.Len()-common)
	default:
		return 0
	}
	if m == 0 || n == 0 {
		return 0
	}
	sim := l / (math.Sqrt(m) * math.Sqrt(n))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return clamp(sim)
}

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
	"math"
	"sort"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"github.com/samber/lo"
)

var stopWords = mapset.NewSet(
	"a", "an", "and", "at", "by", "for", "from", "in", "into", "is", "it", "of",
	"on", "or", "the", "to", "with", "la", "le", "les", "el", "los", "der", "die", "das",
)

// Tokenize extracts terms from item metadata. Title words are lower-cased and stop
// words dropped. Genres and tags become single terms prefixed by their field.
func Tokenize(item dataset.Item) []string {
	var tokens []string
	for _, word := range strings.FieldsFunc(strings.ToLower(item.Title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) > 1 && !stopWords.Contains(word) {
			tokens = append(tokens, word)
		}
	}
	for _, genre := range item.Genres {
		tokens = append(tokens, "genre:"+normalize(genre))
	}
	for _, tag := range item.Tags {
		tokens = append(tokens, "tag:"+normalize(tag))
	}
	return tokens
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// Vectorizer converts token lists into L2 normalized TF-IDF vectors over a fixed
// vocabulary. The IDF of a term is smoothed:
//
//	idf(t) = ln((1 + N) / (1 + df(t))) + 1
type Vectorizer struct {
	MinDF       int
	MaxFeatures int
	vocabulary  map[string]int32
	terms       []string
	idf         []float64
}

func NewVectorizer(minDF, maxFeatures int) *Vectorizer {
	return &Vectorizer{MinDF: minDF, MaxFeatures: maxFeatures}
}

// Fit builds the vocabulary from documents. Terms appearing in fewer than MinDF
// documents are dropped. If MaxFeatures is positive, only the most frequent terms
// are kept, ties broken by term.
func (v *Vectorizer) Fit(documents [][]string) error {
	df := make(map[string]int)
	for _, doc := range documents {
		for _, term := range lo.Uniq(doc) {
			df[term]++
		}
	}
	terms := lo.Filter(lo.Keys(df), func(term string, _ int) bool {
		return df[term] >= v.MinDF
	})
	if len(terms) == 0 {
		return errors.Trace(&model.InsufficientDataError{})
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)
	v.terms = terms
	v.vocabulary = make(map[string]int32, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(documents))
	for i, term := range terms {
		v.vocabulary[term] = int32(i)
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Dim is the dimension of vectors, i.e. the vocabulary size.
func (v *Vectorizer) Dim() int {
	return len(v.terms)
}

// Terms returns the vocabulary ordered by index.
func (v *Vectorizer) Terms() []string {
	return v.terms
}

// IDF returns the inverse document frequency of a term.
func (v *Vectorizer) IDF(term string) (float64, bool) {
	index, ok := v.vocabulary[term]
	if !ok {
		return 0, false
	}
	return v.idf[index], true
}

// Transform converts a document into a TF-IDF vector. Unknown terms are ignored and
// a document without known terms is the zero vector.
func (v *Vectorizer) Transform(doc []string) model.SparseVector {
	counts := make(map[int32]float64)
	for _, term := range doc {
		if index, ok := v.vocabulary[term]; ok {
			counts[index]++
		}
	}
	indices := lo.Keys(counts)
	values := lo.Map(indices, func(index int32, _ int) float64 {
		return counts[index] * v.idf[index]
	})
	vec := model.NewSparseVector(indices, values)
	if norm := vec.Norm(); norm > 0 {
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}

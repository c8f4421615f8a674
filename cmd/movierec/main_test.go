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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	movies = `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,Jumanji (1995),Adventure|Children|Fantasy
3,Heat (1995),Action|Crime|Thriller
4,Toy Story 2 (1999),Adventure|Animation|Children|Comedy|Fantasy
5,Casino (1995),Crime|Drama
`
	ratings = `userId,movieId,rating,timestamp
1,1,5,964982703
1,3,2,964981247
2,2,4,964982224
2,5,3,964983815
3,1,4,964982931
3,4,5,964982400
4,3,5,964980868
4,5,4,964982176
`
)

func writeDataset(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies.csv"), []byte(movies), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte(ratings), 0o644))
	return dir
}

func execute(args ...string) (string, error) {
	showProgress = false
	buf := new(bytes.Buffer)
	rootCommand.SetOut(buf)
	rootCommand.SetArgs(args)
	err := rootCommand.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	output, err := execute("version")
	assert.NoError(t, err)
	assert.Contains(t, output, "Version:")
}

func TestRecommend(t *testing.T) {
	dir := writeDataset(t)
	output, err := execute("recommend", "1", "--data", dir, "-t", "knowledge", "-n", "3")
	assert.NoError(t, err)
	assert.Contains(t, output, "Jumanji")
	assert.Contains(t, output, "Toy Story 2")
	assert.NotContains(t, output, "Heat")
}

func TestRecommendFallback(t *testing.T) {
	dir := writeDataset(t)
	output, err := execute("recommend", "99", "--data", dir, "-t", "mf", "-n", "3")
	assert.NoError(t, err)
	assert.Contains(t, output, "fall back to knowledge")
}

func TestSimilar(t *testing.T) {
	dir := writeDataset(t)
	output, err := execute("similar", "1", "--data", dir, "-t", "content", "-n", "1")
	assert.NoError(t, err)
	assert.Contains(t, output, "Toy Story 2")

	_, err = execute("similar", "42", "--data", dir, "-t", "content", "-n", "1")
	assert.Error(t, err)
}

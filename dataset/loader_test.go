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

package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMovieLens1M(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movies.dat", "1::Toy Story (1995)::Animation|Children's|Comedy\n2::Jumanji (1995)::Adventure\n3::Heat (1995)::Action|Crime\n")
	writeFile(t, dir, "ratings.dat", "1::1::5::978300760\n1::2::3::978302109\n2::1::4::978301968\n")
	data, err := LoadMovieLens(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, data.CountUsers())
	assert.Equal(t, 3, data.CountItems())
	assert.Equal(t, 3, data.CountInteractions())
	assert.Equal(t, Item{ItemId: "1", Title: "Toy Story", Year: 1995, Genres: []string{"Animation", "Children's", "Comedy"}}, data.GetItems()[0])
	interactions := data.Interactions()
	assert.Equal(t, time.Unix(978300760, 0).UTC(), interactions[0].Timestamp)
}

func TestLoadMovieLens25M(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movies.csv", "movieId,title,genres\n1,Toy Story (1995),Adventure|Animation\n2,\"American President, The (1995)\",Comedy|Drama|Romance\n3,Untitled,(no genres listed)\n")
	writeFile(t, dir, "ratings.csv", "userId,movieId,rating,timestamp\n1,2,3.5,1112486027\n1,1,4.0,2005-04-02 23:33:47\n")
	writeFile(t, dir, "tags.csv", "userId,movieId,tag,timestamp\n1,1,Pixar,1139045764\n2,1,pixar,1139045765\n2,3,Odd,1139045766\n")
	data, err := LoadMovieLens(dir)
	require.NoError(t, err)
	items := data.GetItems()
	assert.Equal(t, "American President, The", items[1].Title)
	assert.Equal(t, 1995, items[1].Year)
	assert.Empty(t, items[2].Genres)
	assert.Equal(t, 0, items[2].Year)
	assert.Equal(t, []string{"pixar"}, items[0].Tags)
	assert.Equal(t, []string{"odd"}, items[2].Tags)
	interactions := data.Interactions()
	require.Len(t, interactions, 2)
	assert.Equal(t, 3.5, interactions[0].Value)
	assert.Equal(t, 2005, interactions[1].Timestamp.Year())
}

func TestLoadMovieLensErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadMovieLens(dir)
	assert.True(t, errors.Is(err, errors.NotFound))

	writeFile(t, dir, "ratings.csv", "userId,movieId,rating\n1,1,abc\n")
	_, err = LoadMovieLens(dir)
	assert.ErrorContains(t, err, "ratings.csv:2")
}

func TestParseTitle(t *testing.T) {
	title, year := ParseTitle(" Heat (1995) ")
	assert.Equal(t, "Heat", title)
	assert.Equal(t, 1995, year)
	title, year = ParseTitle("Babylon 5")
	assert.Equal(t, "Babylon 5", title)
	assert.Zero(t, year)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("0")
	assert.NoError(t, err)
	assert.Equal(t, time.Unix(0, 0).UTC(), ts)
	ts, err = ParseTimestamp("")
	assert.NoError(t, err)
	assert.True(t, ts.IsZero())
	_, err = ParseTimestamp("not a date")
	assert.Error(t, err)
}

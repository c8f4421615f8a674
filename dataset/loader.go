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
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"go.uber.org/zap"
)

const noGenres = "(no genres listed)"

var titleYear = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)

// readRecords calls fn for every record of a MovieLens file. Files ending with .dat use
// the "::" separated format of ML-1M, other files are CSV with a header row (ML-25M).
func readRecords(path string, fn func(line int, fields []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()

	if filepath.Ext(path) == ".dat" {
		scanner := bufio.NewScanner(file)
		for line := 1; scanner.Scan(); line++ {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err = fn(line, strings.Split(text, "::")); err != nil {
				return errors.Annotatef(err, "%s:%d", path, line)
			}
		}
		return errors.Trace(scanner.Err())
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// skip header
	if _, err = reader.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Trace(err)
	}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if err = fn(line, record); err != nil {
			return errors.Annotatef(err, "%s:%d", path, line)
		}
	}
}

// ParseTimestamp accepts unix seconds or any date layout known to dateparse.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	return t, nil
}

// LoadRatings reads userId, movieId, rating[, timestamp] records into data.
func LoadRatings(path string, data *Dataset) error {
	n := 0
	err := readRecords(path, func(_ int, fields []string) error {
		if len(fields) < 3 {
			return errors.NotValidf("rating record %v", fields)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return errors.Trace(err)
		}
		interaction := Interaction{
			UserId: strings.TrimSpace(fields[0]),
			ItemId: strings.TrimSpace(fields[1]),
			Value:  value,
		}
		if len(fields) > 3 {
			if interaction.Timestamp, err = ParseTimestamp(fields[3]); err != nil {
				return errors.Trace(err)
			}
		}
		n++
		return data.AddInteraction(interaction)
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("load ratings", zap.String("path", path), zap.Int("n_ratings", n))
	return nil
}

// LoadItems reads movieId, title, genres records into the catalog of data.
// The release year is parsed from the trailing "(yyyy)" of the title.
func LoadItems(path string, data *Dataset) error {
	n := 0
	err := readRecords(path, func(_ int, fields []string) error {
		if len(fields) < 3 {
			return errors.NotValidf("movie record %v", fields)
		}
		item := Item{ItemId: strings.TrimSpace(fields[0])}
		item.Title, item.Year = ParseTitle(fields[1])
		// titles in the .dat format may contain the separator
		genres := strings.TrimSpace(fields[len(fields)-1])
		if genres != "" && genres != noGenres {
			item.Genres = strings.Split(genres, "|")
		}
		if index, ok := data.itemDict.Index(item.ItemId); ok {
			item.Tags = data.items[index].Tags
		}
		data.AddItem(item)
		n++
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("load items", zap.String("path", path), zap.Int("n_items", n))
	return nil
}

// LoadTags reads userId, movieId, tag[, timestamp] records and attaches distinct
// lower-cased tags to catalog items.
func LoadTags(path string, data *Dataset) error {
	n := 0
	err := readRecords(path, func(_ int, fields []string) error {
		if len(fields) < 3 {
			return errors.NotValidf("tag record %v", fields)
		}
		itemId := strings.TrimSpace(fields[1])
		tag := strings.ToLower(strings.TrimSpace(fields[2]))
		if tag == "" {
			return nil
		}
		index, ok := data.itemDict.Index(itemId)
		if !ok {
			index = data.AddItem(Item{ItemId: itemId})
		}
		item := &data.items[index]
		for _, t := range item.Tags {
			if t == tag {
				return nil
			}
		}
		item.Tags = append(item.Tags, tag)
		n++
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("load tags", zap.String("path", path), zap.Int("n_tags", n))
	return nil
}

// ParseTitle splits "Toy Story (1995)" into its title and year.
func ParseTitle(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	matches := titleYear.FindStringSubmatch(raw)
	if matches == nil {
		return raw, 0
	}
	year, err := strconv.Atoi(matches[2])
	if err != nil {
		return raw, 0
	}
	return matches[1], year
}

// LoadMovieLens loads a MovieLens directory already on disk. It looks for
// movies and ratings in either .dat or .csv form, plus optional tags.
func LoadMovieLens(dir string) (*Dataset, error) {
	data := NewDataset()
	find := func(name string) (string, bool) {
		for _, ext := range []string{".csv", ".dat"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
		return "", false
	}
	// items first to keep catalog order
	if path, ok := find("movies"); ok {
		if err := LoadItems(path, data); err != nil {
			return nil, errors.Trace(err)
		}
	}
	path, ok := find("ratings")
	if !ok {
		return nil, errors.NotFoundf("ratings file in %s", dir)
	}
	if err := LoadRatings(path, data); err != nil {
		return nil, errors.Trace(err)
	}
	if path, ok = find("tags"); ok {
		if err := LoadTags(path, data); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return data, nil
}

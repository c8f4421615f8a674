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
	"math"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Interaction is a single explicit rating.
type Interaction struct {
	UserId    string
	ItemId    string
	Value     float64
	Timestamp time.Time
}

// Item is catalog metadata. Items may exist without any interaction.
type Item struct {
	ItemId string
	Title  string
	Year   int
	Genres []string
	Tags   []string
}

// Dataset holds a sparse user-item rating matrix together with the item catalog.
// Users and items are addressed by dense int32 indices assigned in insertion order.
type Dataset struct {
	items          []Item
	userDict       *FreqDict
	itemDict       *FreqDict
	userFeedback   [][]int32
	userValues     [][]float64
	userTimestamps [][]time.Time
	itemFeedback   [][]int32
	itemValues     [][]float64
	// (user, item) -> position in userFeedback and itemFeedback
	positions  map[int64][2]int
	categories mapset.Set[string]
	sum        float64
	count      int
}

func NewDataset() *Dataset {
	return &Dataset{
		userDict:   NewFreqDict(),
		itemDict:   NewFreqDict(),
		positions:  make(map[int64][2]int),
		categories: mapset.NewSet[string](),
	}
}

func pairKey(userIndex, itemIndex int32) int64 {
	return int64(userIndex)<<32 | int64(uint32(itemIndex))
}

// AddUser registers a user without interactions and returns its index.
func (d *Dataset) AddUser(userId string) int32 {
	userIndex := d.userDict.NotCount(userId)
	for len(d.userFeedback) <= int(userIndex) {
		d.userFeedback = append(d.userFeedback, nil)
		d.userValues = append(d.userValues, nil)
		d.userTimestamps = append(d.userTimestamps, nil)
	}
	return userIndex
}

// AddItem registers an item in the catalog. Adding a known item replaces its metadata.
func (d *Dataset) AddItem(item Item) int32 {
	itemIndex := d.itemDict.NotCount(item.ItemId)
	for len(d.items) <= int(itemIndex) {
		d.items = append(d.items, Item{ItemId: item.ItemId})
		d.itemFeedback = append(d.itemFeedback, nil)
		d.itemValues = append(d.itemValues, nil)
	}
	d.items[itemIndex] = item
	d.categories.Append(item.Genres...)
	return itemIndex
}

// AddInteraction inserts a rating. Users and items are registered on the fly.
// Re-adding the same (user, item) pair overwrites the previous value.
func (d *Dataset) AddInteraction(interaction Interaction) error {
	if interaction.UserId == "" || interaction.ItemId == "" {
		return errors.NotValidf("interaction with empty user or item id")
	}
	if math.IsNaN(interaction.Value) || math.IsInf(interaction.Value, 0) {
		return errors.NotValidf("rating %v of (%s, %s)", interaction.Value, interaction.UserId, interaction.ItemId)
	}
	userIndex := d.AddUser(interaction.UserId)
	itemIndex, ok := d.itemDict.Index(interaction.ItemId)
	if !ok {
		itemIndex = d.AddItem(Item{ItemId: interaction.ItemId})
	}
	key := pairKey(userIndex, itemIndex)
	if pos, exist := d.positions[key]; exist {
		d.sum += interaction.Value - d.userValues[userIndex][pos[0]]
		d.userValues[userIndex][pos[0]] = interaction.Value
		d.userTimestamps[userIndex][pos[0]] = interaction.Timestamp
		d.itemValues[itemIndex][pos[1]] = interaction.Value
		return nil
	}
	// count frequencies only for new pairs
	d.userDict.Id(interaction.UserId)
	d.itemDict.Id(interaction.ItemId)
	d.positions[key] = [2]int{len(d.userFeedback[userIndex]), len(d.itemFeedback[itemIndex])}
	d.userFeedback[userIndex] = append(d.userFeedback[userIndex], itemIndex)
	d.userValues[userIndex] = append(d.userValues[userIndex], interaction.Value)
	d.userTimestamps[userIndex] = append(d.userTimestamps[userIndex], interaction.Timestamp)
	d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
	d.itemValues[itemIndex] = append(d.itemValues[itemIndex], interaction.Value)
	d.sum += interaction.Value
	d.count++
	return nil
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

func (d *Dataset) CountInteractions() int {
	return d.count
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

// GetItem returns the metadata of an item.
func (d *Dataset) GetItem(itemId string) (Item, bool) {
	itemIndex, ok := d.itemDict.Index(itemId)
	if !ok {
		return Item{}, false
	}
	return d.items[itemIndex], true
}

// GetItems returns the catalog ordered by item index.
func (d *Dataset) GetItems() []Item {
	return d.items
}

func (d *Dataset) GetCategories() []string {
	return d.categories.ToSlice()
}

// GetUserFeedback returns the item indices and ratings of a user.
func (d *Dataset) GetUserFeedback(userIndex int32) ([]int32, []float64) {
	return d.userFeedback[userIndex], d.userValues[userIndex]
}

// GetItemFeedback returns the user indices and ratings of an item.
func (d *Dataset) GetItemFeedback(itemIndex int32) ([]int32, []float64) {
	return d.itemFeedback[itemIndex], d.itemValues[itemIndex]
}

// GetRating returns the rating of a (user, item) pair if it exists.
func (d *Dataset) GetRating(userIndex, itemIndex int32) (float64, bool) {
	pos, ok := d.positions[pairKey(userIndex, itemIndex)]
	if !ok {
		return 0, false
	}
	return d.userValues[userIndex][pos[0]], true
}

// GlobalMean is the mean of all ratings, 0 for an empty dataset.
func (d *Dataset) GlobalMean() float64 {
	if d.count == 0 {
		return 0
	}
	return d.sum / float64(d.count)
}

// UserMean is the mean rating of a user, falling back to the global mean.
func (d *Dataset) UserMean(userIndex int32) float64 {
	if len(d.userValues[userIndex]) == 0 {
		return d.GlobalMean()
	}
	return lo.Sum(d.userValues[userIndex]) / float64(len(d.userValues[userIndex]))
}

// ItemMean is the mean rating of an item, falling back to the global mean.
func (d *Dataset) ItemMean(itemIndex int32) float64 {
	if len(d.itemValues[itemIndex]) == 0 {
		return d.GlobalMean()
	}
	return lo.Sum(d.itemValues[itemIndex]) / float64(len(d.itemValues[itemIndex]))
}

// GetSeenItems returns the set of item ids a user has rated. Unknown users have no seen items.
func (d *Dataset) GetSeenItems(userId string) mapset.Set[string] {
	seen := mapset.NewSet[string]()
	userIndex, ok := d.userDict.Index(userId)
	if !ok {
		return seen
	}
	for _, itemIndex := range d.userFeedback[userIndex] {
		seen.Add(d.items[itemIndex].ItemId)
	}
	return seen
}

// Interactions returns all ratings ordered by user index then insertion order.
func (d *Dataset) Interactions() []Interaction {
	interactions := make([]Interaction, 0, d.count)
	for userIndex, itemIndices := range d.userFeedback {
		userId := d.userDict.is[userIndex]
		for j, itemIndex := range itemIndices {
			interactions = append(interactions, Interaction{
				UserId:    userId,
				ItemId:    d.items[itemIndex].ItemId,
				Value:     d.userValues[userIndex][j],
				Timestamp: d.userTimestamps[userIndex][j],
			})
		}
	}
	return interactions
}

// cloneIndex creates an empty dataset sharing the same user and item indices.
func (d *Dataset) cloneIndex() *Dataset {
	clone := NewDataset()
	for _, userId := range d.userDict.Strings() {
		clone.AddUser(userId)
	}
	for _, item := range d.items {
		clone.AddItem(item)
	}
	return clone
}

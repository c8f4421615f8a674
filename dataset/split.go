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

	"github.com/juju/errors"
	"github.com/movierec/movierec/base"
)

// Split holds out a random testRatio share of every user's ratings. Each user keeps
// at least one training rating. Both halves share the user and item indices of d.
func (d *Dataset) Split(testRatio float64, seed int64) (*Dataset, *Dataset, error) {
	if math.IsNaN(testRatio) || testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rng := base.NewRandomGenerator(seed)
	train, test := d.cloneIndex(), d.cloneIndex()
	for userIndex, itemIndices := range d.userFeedback {
		n := len(itemIndices)
		numTest := min(int(math.Round(float64(n)*testRatio)), n-1)
		held := make(map[int]struct{}, max(numTest, 0))
		if numTest > 0 {
			for _, pos := range rng.Sample(0, n, numTest) {
				held[pos] = struct{}{}
			}
		}
		userId := d.userDict.is[userIndex]
		for pos, itemIndex := range itemIndices {
			interaction := Interaction{
				UserId:    userId,
				ItemId:    d.items[itemIndex].ItemId,
				Value:     d.userValues[userIndex][pos],
				Timestamp: d.userTimestamps[userIndex][pos],
			}
			target := train
			if _, ok := held[pos]; ok {
				target = test
			}
			if err := target.AddInteraction(interaction); err != nil {
				return nil, nil, errors.Trace(err)
			}
		}
	}
	return train, test, nil
}

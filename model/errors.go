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
	"fmt"

	"github.com/juju/errors"
)

// ErrUnknownItem is returned for queries about an item absent from a model.
const ErrUnknownItem = errors.ConstError("unknown item")

// DimensionMismatchError is returned when two vectors that must share a
// dimension do not.
type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d != %d", e.Left, e.Right)
}

// InsufficientDataError is returned when a model can not be fitted from the
// given data. UserId is empty when the whole dataset is empty.
type InsufficientDataError struct {
	UserId string
}

func (e *InsufficientDataError) Error() string {
	if e.UserId == "" {
		return "insufficient data: no interactions"
	}
	return fmt.Sprintf("insufficient data: user %s has no interactions", e.UserId)
}

// ConvergenceError is returned when fitting diverges or never improves on
// the initial loss before the iteration cap.
type ConvergenceError struct {
	Epochs      int
	InitialLoss float64
	FinalLoss   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d epochs: loss %v (initial %v)", e.Epochs, e.FinalLoss, e.InitialLoss)
}

// UnknownUserError is returned for users absent from a fitted model.
type UnknownUserError struct {
	UserId string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("unknown user %s", e.UserId)
}

// IsUnknownUser reports whether err is caused by an UnknownUserError.
func IsUnknownUser(err error) bool {
	var target *UnknownUserError
	return errors.As(err, &target)
}

// UnknownItem returns an error wrapping ErrUnknownItem.
func UnknownItem(itemId string) error {
	return fmt.Errorf("%w %s", ErrUnknownItem, itemId)
}

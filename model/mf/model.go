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
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/common/floats"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/model"
	"go.uber.org/zap"
)

type FitConfig struct {
	Jobs    int
	Verbose int
	// Tolerance stops fitting once the relative loss improvement of an epoch falls below it.
	Tolerance float64
	// OnEpoch is called after every epoch with the training loss.
	OnEpoch func(epoch int, loss float64)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetTolerance(tolerance float64) *FitConfig {
	config.Tolerance = tolerance
	return config
}

func (config *FitConfig) SetOnEpoch(onEpoch func(epoch int, loss float64)) *FitConfig {
	config.OnEpoch = onEpoch
	return config
}

func (config *FitConfig) fields() []zap.Field {
	return []zap.Field{
		zap.Int("jobs", config.Jobs),
		zap.Int("verbose", config.Verbose),
		zap.Float64("tolerance", config.Tolerance),
	}
}

// MatrixFactorization is a fitted latent factor model.
type MatrixFactorization interface {
	model.Model
	model.Scorer
	model.Predictor
	// Fit a model with a train set.
	Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error
	// GetUserIndex returns user index.
	GetUserIndex() *dataset.FreqDict
	// GetItemIndex returns item index.
	GetItemIndex() *dataset.FreqDict
	// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
	IsItemPredictable(itemIndex int32) bool
	// GetUserFactor returns latent factor of a user.
	GetUserFactor(userIndex int32) []float32
	// GetItemFactor returns latent factor of an item.
	GetItemFactor(itemIndex int32) []float32
	// Invalid returns true if any weight is not finite.
	Invalid() bool
	// SuggestParams samples hyper-parameters for a search trial.
	SuggestParams(trial goptuna.Trial) model.Params
}

// BaseMatrixFactorization holds the weights of a biased latent factor model:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^Tp_u
//
// Items without feedback keep zero factors and biases, so their prediction is μ + b_u.
type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *dataset.FreqDict
	ItemIndex       *dataset.FreqDict
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	GlobalMean float32     // μ
	// Training data kept for excluding seen items
	userFeedback [][]int32
	// Hyper parameters
	nFactors   int
	nEpochs    int
	reg        float32
	initMean   float32
	initStdDev float32
	useBias    bool
}

func (baseModel *BaseMatrixFactorization) SetParams(params model.Params) {
	baseModel.BaseModel.SetParams(params)
	baseModel.nFactors = baseModel.Params.GetInt(model.NFactors, 16)
	baseModel.nEpochs = baseModel.Params.GetInt(model.NEpochs, 20)
	baseModel.reg = baseModel.Params.GetFloat32(model.Reg, 0.06)
	baseModel.initMean = baseModel.Params.GetFloat32(model.InitMean, 0)
	baseModel.initStdDev = baseModel.Params.GetFloat32(model.InitStdDev, 0.1)
	baseModel.useBias = baseModel.Params.GetBool(model.UseBias, true)
}

func (baseModel *BaseMatrixFactorization) validate() error {
	if baseModel.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", baseModel.nFactors)
	}
	if baseModel.nEpochs <= 0 {
		return errors.NotValidf("number of epochs %d", baseModel.nEpochs)
	}
	if baseModel.reg < 0 || math32.IsNaN(baseModel.reg) {
		return errors.NotValidf("regularization %v", baseModel.reg)
	}
	return nil
}

// Init copies indices from the train set and initializes weights. It fails if the
// train set is empty or a user has no feedback.
func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) error {
	// reset random state so that fitting is reproducible
	baseModel.BaseModel.SetParams(baseModel.Params)
	if err := baseModel.validate(); err != nil {
		return errors.Trace(err)
	}
	if trainSet.CountInteractions() == 0 {
		return errors.Trace(&model.InsufficientDataError{})
	}
	baseModel.UserIndex = dataset.NewFreqDict()
	baseModel.userFeedback = make([][]int32, trainSet.CountUsers())
	for userIndex, userId := range trainSet.GetUserDict().Strings() {
		items, _ := trainSet.GetUserFeedback(int32(userIndex))
		if len(items) == 0 {
			return errors.Trace(&model.InsufficientDataError{UserId: userId})
		}
		baseModel.UserIndex.NotCount(userId)
		baseModel.userFeedback[userIndex] = append([]int32(nil), items...)
	}
	baseModel.ItemIndex = dataset.NewFreqDict()
	baseModel.ItemPredictable = bitset.New(uint(trainSet.CountItems()))
	for itemIndex, itemId := range trainSet.GetItemDict().Strings() {
		baseModel.ItemIndex.NotCount(itemId)
		if users, _ := trainSet.GetItemFeedback(int32(itemIndex)); len(users) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
	rng := baseModel.GetRandomGenerator()
	baseModel.UserFactor = rng.NormalMatrix(trainSet.CountUsers(), baseModel.nFactors, baseModel.initMean, baseModel.initStdDev)
	baseModel.ItemFactor = rng.NormalMatrix(trainSet.CountItems(), baseModel.nFactors, baseModel.initMean, baseModel.initStdDev)
	for itemIndex := range baseModel.ItemFactor {
		if !baseModel.ItemPredictable.Test(uint(itemIndex)) {
			floats.Zero(baseModel.ItemFactor[itemIndex])
		}
	}
	baseModel.UserBias = make([]float32, trainSet.CountUsers())
	baseModel.ItemBias = make([]float32, trainSet.CountItems())
	baseModel.GlobalMean = float32(trainSet.GlobalMean())
	return nil
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *dataset.FreqDict {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *dataset.FreqDict {
	return baseModel.ItemIndex
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if baseModel.ItemIndex == nil || int(itemIndex) >= baseModel.ItemIndex.Count() || itemIndex < 0 {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

// GetUserFactor returns the latent factor of a user.
func (baseModel *BaseMatrixFactorization) GetUserFactor(userIndex int32) []float32 {
	return baseModel.UserFactor[userIndex]
}

// GetItemFactor returns the latent factor of an item.
func (baseModel *BaseMatrixFactorization) GetItemFactor(itemIndex int32) []float32 {
	return baseModel.ItemFactor[itemIndex]
}

func (baseModel *BaseMatrixFactorization) lookupUser(userId string) (int32, error) {
	if baseModel.UserIndex == nil {
		return -1, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	userIndex, ok := baseModel.UserIndex.Index(userId)
	if !ok {
		return -1, errors.Trace(&model.UnknownUserError{UserId: userId})
	}
	return userIndex, nil
}

func (baseModel *BaseMatrixFactorization) Predict(userId, itemId string) (float64, error) {
	userIndex, err := baseModel.lookupUser(userId)
	if err != nil {
		return 0, err
	}
	itemIndex, ok := baseModel.ItemIndex.Index(itemId)
	if !ok {
		return 0, errors.Trace(model.UnknownItem(itemId))
	}
	return float64(baseModel.internalPredict(userIndex, itemIndex)), nil
}

func (baseModel *BaseMatrixFactorization) internalPredict(userIndex, itemIndex int32) float32 {
	ret := baseModel.GlobalMean + baseModel.UserBias[userIndex]
	if baseModel.ItemPredictable.Test(uint(itemIndex)) {
		ret += baseModel.ItemBias[itemIndex]
		ret += floats.Dot(baseModel.UserFactor[userIndex], baseModel.ItemFactor[itemIndex])
	}
	return ret
}

// ScoreItems predicts ratings of every item in the catalog.
func (baseModel *BaseMatrixFactorization) ScoreItems(userId string) ([]model.Score, error) {
	userIndex, err := baseModel.lookupUser(userId)
	if err != nil {
		return nil, err
	}
	itemIds := baseModel.ItemIndex.Strings()
	scores := make([]model.Score, len(itemIds))
	for itemIndex, itemId := range itemIds {
		scores[itemIndex] = model.Score{
			ItemId: itemId,
			Score:  float64(baseModel.internalPredict(userIndex, int32(itemIndex))),
		}
	}
	return scores, nil
}

func (baseModel *BaseMatrixFactorization) SeenItems(userId string) mapset.Set[string] {
	seen := mapset.NewSet[string]()
	if baseModel.UserIndex == nil {
		return seen
	}
	if userIndex, ok := baseModel.UserIndex.Index(userId); ok {
		for _, itemIndex := range baseModel.userFeedback[userIndex] {
			itemId, _ := baseModel.ItemIndex.String(itemIndex)
			seen.Add(itemId)
		}
	}
	return seen
}

// Loss is the regularized squared error over the train set:
//
//	\sum_{(u,i)} (r_{ui} - \hat{r}_{ui})^2 + λ (\sum_u ||p_u||^2 + b_u^2 + \sum_i ||q_i||^2 + b_i^2)
func (baseModel *BaseMatrixFactorization) Loss(trainSet *dataset.Dataset) float64 {
	var squaredError, norm float64
	for userIndex := range baseModel.UserFactor {
		items, values := trainSet.GetUserFeedback(int32(userIndex))
		for j, itemIndex := range items {
			diff := values[j] - float64(baseModel.internalPredict(int32(userIndex), itemIndex))
			squaredError += diff * diff
		}
		userNorm := floats.Norm(baseModel.UserFactor[userIndex])
		norm += float64(userNorm*userNorm) + float64(baseModel.UserBias[userIndex]*baseModel.UserBias[userIndex])
	}
	for itemIndex := range baseModel.ItemFactor {
		itemNorm := floats.Norm(baseModel.ItemFactor[itemIndex])
		norm += float64(itemNorm*itemNorm) + float64(baseModel.ItemBias[itemIndex]*baseModel.ItemBias[itemIndex])
	}
	return squaredError + float64(baseModel.reg)*norm
}

// Clear model weights.
func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.ItemPredictable = nil
	baseModel.UserFactor = nil
	baseModel.ItemFactor = nil
	baseModel.UserBias = nil
	baseModel.ItemBias = nil
	baseModel.userFeedback = nil
}

// Invalid returns true if the model is not fitted or any weight is not finite.
func (baseModel *BaseMatrixFactorization) Invalid() bool {
	if baseModel.UserIndex == nil || baseModel.ItemIndex == nil {
		return true
	}
	for _, matrix := range [][][]float32{baseModel.UserFactor, baseModel.ItemFactor, {baseModel.UserBias, baseModel.ItemBias}} {
		for _, row := range matrix {
			for _, x := range row {
				if math32.IsNaN(x) || math32.IsInf(x, 0) {
					return true
				}
			}
		}
	}
	return math32.IsNaN(baseModel.GlobalMean)
}

// lossTracker records losses of a fitting procedure and decides when to stop.
type lossTracker struct {
	name    string
	nEpochs int
	config  *FitConfig
	initial float64
	best    float64
	prev    float64
	epochs  int
}

func newLossTracker(name string, nEpochs int, initial float64, config *FitConfig) (*lossTracker, error) {
	if math.IsNaN(initial) || math.IsInf(initial, 0) {
		return nil, errors.Trace(&model.ConvergenceError{InitialLoss: initial, FinalLoss: initial})
	}
	log.Logger().Debug(fmt.Sprintf("fit %s %v/%v", name, 0, nEpochs), zap.Float64("loss", initial))
	return &lossTracker{name: name, nEpochs: nEpochs, config: config, initial: initial, best: initial, prev: initial}, nil
}

// observe records the loss of an epoch. It returns true if fitting should stop early.
func (tracker *lossTracker) observe(epoch int, loss float64) (bool, error) {
	tracker.epochs = epoch
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return true, errors.Trace(&model.ConvergenceError{Epochs: epoch, InitialLoss: tracker.initial, FinalLoss: loss})
	}
	if tracker.config.OnEpoch != nil {
		tracker.config.OnEpoch(epoch, loss)
	}
	if tracker.config.Verbose > 0 && (epoch%tracker.config.Verbose == 0 || epoch == tracker.nEpochs) {
		log.Logger().Debug(fmt.Sprintf("fit %s %v/%v", tracker.name, epoch, tracker.nEpochs), zap.Float64("loss", loss))
	}
	tracker.best = math.Min(tracker.best, loss)
	improvement := tracker.prev - loss
	stop := tracker.config.Tolerance > 0 && tracker.prev > 0 && improvement/tracker.prev < tracker.config.Tolerance
	tracker.prev = loss
	return stop && tracker.best < tracker.initial, nil
}

// finish fails if the loss never decreased below the initial loss.
func (tracker *lossTracker) finish() error {
	if tracker.best >= tracker.initial {
		return errors.Trace(&model.ConvergenceError{Epochs: tracker.epochs, InitialLoss: tracker.initial, FinalLoss: tracker.prev})
	}
	log.Logger().Info(fmt.Sprintf("fit %s complete", tracker.name),
		zap.Int("n_epochs", tracker.epochs),
		zap.Float64("initial_loss", tracker.initial),
		zap.Float64("loss", tracker.prev))
	return nil
}

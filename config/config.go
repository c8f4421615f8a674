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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/movierec/movierec/model"
	"github.com/movierec/movierec/model/knowledge"
	"github.com/movierec/movierec/model/mf"
	"github.com/spf13/viper"
)

// Config is the configuration of movierec.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	MF        MFConfig        `mapstructure:"mf"`
	KNN       KNNConfig       `mapstructure:"knn"`
	Content   ContentConfig   `mapstructure:"content"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Hybrid    HybridConfig    `mapstructure:"hybrid"`
	Tune      TuneConfig      `mapstructure:"tune"`
}

// DataConfig is the configuration of the dataset.
type DataConfig struct {
	Dir       string  `mapstructure:"dir"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	Seed      int64   `mapstructure:"seed"`
}

// RecommendConfig is the configuration of recommendation.
type RecommendConfig struct {
	TopN           int      `mapstructure:"top_n" validate:"gte=0"`
	ExcludeSeen    bool     `mapstructure:"exclude_seen"`
	EnableFallback bool     `mapstructure:"enable_fallback"`
	Techniques     []string `mapstructure:"techniques" validate:"required,dive,oneof=mf item-knn user-knn content knowledge hybrid"`
	Jobs           int      `mapstructure:"jobs" validate:"gt=0"`
}

// MFConfig is the configuration of matrix factorization.
type MFConfig struct {
	Type        string  `mapstructure:"type" validate:"oneof=als svd"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	Reg         float64 `mapstructure:"reg" validate:"gte=0"`
	Lr          float64 `mapstructure:"lr" validate:"gt=0"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std" validate:"gte=0"`
	UseBias     bool    `mapstructure:"use_bias"`
	RandomState int64   `mapstructure:"random_state"`
	Tolerance   float64 `mapstructure:"tolerance" validate:"gte=0"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=0"`
}

func (c *MFConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Reg:         c.Reg,
		model.Lr:          c.Lr,
		model.InitMean:    c.InitMean,
		model.InitStdDev:  c.InitStdDev,
		model.UseBias:     c.UseBias,
		model.RandomState: c.RandomState,
	}
}

func (c *MFConfig) GetFitConfig(jobs int) *mf.FitConfig {
	return mf.NewFitConfig().
		SetJobs(jobs).
		SetVerbose(c.Verbose).
		SetTolerance(c.Tolerance)
}

// KNNConfig is the configuration of neighborhood models.
type KNNConfig struct {
	Similarity string `mapstructure:"similarity" validate:"oneof=cosine pearson"`
	NNeighbors int    `mapstructure:"n_neighbors" validate:"gt=0"`
	MinCommon  int    `mapstructure:"min_common" validate:"gte=0"`
}

func (c *KNNConfig) GetParams() model.Params {
	return model.Params{
		model.SimilarityMetric: c.Similarity,
		model.NNeighbors:       c.NNeighbors,
		model.MinCommon:        c.MinCommon,
	}
}

// ContentConfig is the configuration of content-based filtering.
type ContentConfig struct {
	MinDF       int `mapstructure:"min_df" validate:"gte=1"`
	MaxFeatures int `mapstructure:"max_features" validate:"gte=0"`
}

func (c *ContentConfig) GetParams() model.Params {
	return model.Params{
		model.MinDF:       c.MinDF,
		model.MaxFeatures: c.MaxFeatures,
	}
}

// KnowledgeConfig is the configuration of knowledge-based filtering.
type KnowledgeConfig struct {
	Name     string  `mapstructure:"name" validate:"required"`
	Score    string  `mapstructure:"score" validate:"required"`
	Filter   string  `mapstructure:"filter"`
	Quantile float64 `mapstructure:"quantile" validate:"gte=0,lte=1"`
}

func (c *KnowledgeConfig) GetConfig() knowledge.Config {
	return knowledge.Config{
		Name:     c.Name,
		Score:    c.Score,
		Filter:   c.Filter,
		Quantile: c.Quantile,
	}
}

// HybridConfig is the configuration of the hybrid of two techniques.
type HybridConfig struct {
	A         string  `mapstructure:"a" validate:"oneof=mf item-knn user-knn content knowledge"`
	B         string  `mapstructure:"b" validate:"oneof=mf item-knn user-knn content knowledge,nefield=A"`
	Weight    float64 `mapstructure:"weight" validate:"gte=0,lte=1"`
	Normalize bool    `mapstructure:"normalize"`
}

// TuneConfig is the configuration of hyper-parameter search.
type TuneConfig struct {
	NTrials int      `mapstructure:"n_trials" validate:"gt=0"`
	Models  []string `mapstructure:"models" validate:"required,dive,oneof=als svd"`
	Seed    int64    `mapstructure:"seed"`
}

func GetDefaultConfig() *Config {
	defaultKnowledge := knowledge.DefaultConfig()
	return &Config{
		Data: DataConfig{
			Dir:       "ml-latest-small",
			TestRatio: 0.2,
		},
		Recommend: RecommendConfig{
			TopN:           10,
			ExcludeSeen:    true,
			EnableFallback: true,
			Techniques:     []string{"mf", "item-knn", "user-knn", "content", "knowledge", "hybrid"},
			Jobs:           1,
		},
		MF: MFConfig{
			Type:       mf.TypeALS,
			NFactors:   16,
			NEpochs:    20,
			Reg:        0.06,
			Lr:         0.005,
			InitStdDev: 0.1,
			UseBias:    true,
			Verbose:    10,
		},
		KNN: KNNConfig{
			Similarity: string(model.Pearson),
			NNeighbors: 40,
			MinCommon:  2,
		},
		Content: ContentConfig{
			MinDF: 1,
		},
		Knowledge: KnowledgeConfig{
			Name:     defaultKnowledge.Name,
			Score:    defaultKnowledge.Score,
			Quantile: defaultKnowledge.Quantile,
		},
		Hybrid: HybridConfig{
			A:         "mf",
			B:         "content",
			Weight:    0.7,
			Normalize: true,
		},
		Tune: TuneConfig{
			NTrials: 20,
			Models:  []string{mf.TypeALS, mf.TypeSVD},
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.dir", defaultConfig.Data.Dir)
	v.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	v.SetDefault("data.seed", defaultConfig.Data.Seed)
	// [recommend]
	v.SetDefault("recommend.top_n", defaultConfig.Recommend.TopN)
	v.SetDefault("recommend.exclude_seen", defaultConfig.Recommend.ExcludeSeen)
	v.SetDefault("recommend.enable_fallback", defaultConfig.Recommend.EnableFallback)
	v.SetDefault("recommend.techniques", defaultConfig.Recommend.Techniques)
	v.SetDefault("recommend.jobs", defaultConfig.Recommend.Jobs)
	// [mf]
	v.SetDefault("mf.type", defaultConfig.MF.Type)
	v.SetDefault("mf.n_factors", defaultConfig.MF.NFactors)
	v.SetDefault("mf.n_epochs", defaultConfig.MF.NEpochs)
	v.SetDefault("mf.reg", defaultConfig.MF.Reg)
	v.SetDefault("mf.lr", defaultConfig.MF.Lr)
	v.SetDefault("mf.init_mean", defaultConfig.MF.InitMean)
	v.SetDefault("mf.init_std", defaultConfig.MF.InitStdDev)
	v.SetDefault("mf.use_bias", defaultConfig.MF.UseBias)
	v.SetDefault("mf.random_state", defaultConfig.MF.RandomState)
	v.SetDefault("mf.tolerance", defaultConfig.MF.Tolerance)
	v.SetDefault("mf.verbose", defaultConfig.MF.Verbose)
	// [knn]
	v.SetDefault("knn.similarity", defaultConfig.KNN.Similarity)
	v.SetDefault("knn.n_neighbors", defaultConfig.KNN.NNeighbors)
	v.SetDefault("knn.min_common", defaultConfig.KNN.MinCommon)
	// [content]
	v.SetDefault("content.min_df", defaultConfig.Content.MinDF)
	v.SetDefault("content.max_features", defaultConfig.Content.MaxFeatures)
	// [knowledge]
	v.SetDefault("knowledge.name", defaultConfig.Knowledge.Name)
	v.SetDefault("knowledge.score", defaultConfig.Knowledge.Score)
	v.SetDefault("knowledge.filter", defaultConfig.Knowledge.Filter)
	v.SetDefault("knowledge.quantile", defaultConfig.Knowledge.Quantile)
	// [hybrid]
	v.SetDefault("hybrid.a", defaultConfig.Hybrid.A)
	v.SetDefault("hybrid.b", defaultConfig.Hybrid.B)
	v.SetDefault("hybrid.weight", defaultConfig.Hybrid.Weight)
	v.SetDefault("hybrid.normalize", defaultConfig.Hybrid.Normalize)
	// [tune]
	v.SetDefault("tune.n_trials", defaultConfig.Tune.NTrials)
	v.SetDefault("tune.models", defaultConfig.Tune.Models)
	v.SetDefault("tune.seed", defaultConfig.Tune.Seed)
}

// newViper creates a viper instance with defaults and environment overrides. For
// example, MOVIEREC_MF_N_FACTORS overrides mf.n_factors.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefault(v)
	v.SetEnvPrefix("MOVIEREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.StringToSliceHookFunc(","))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// LoadConfig loads configuration from a toml file. Missing values are filled with
// defaults and environment variables take precedence over the file. An empty path
// loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	return unmarshal(v)
}

// Validate checks values of the configuration.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

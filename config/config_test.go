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
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/movierec/movierec/model"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) TestDefault() {
	config, err := LoadConfig("")
	suite.NoError(err)
	suite.Equal(GetDefaultConfig(), config)
}

func (suite *ConfigTestSuite) TestTemplate() {
	config, err := LoadConfig("config.toml.template")
	suite.NoError(err)
	// [data]
	suite.Equal("ml-latest-small", config.Data.Dir)
	suite.Equal(0.2, config.Data.TestRatio)
	// [recommend]
	suite.Equal(10, config.Recommend.TopN)
	suite.True(config.Recommend.ExcludeSeen)
	suite.True(config.Recommend.EnableFallback)
	suite.Equal([]string{"mf", "item-knn", "user-knn", "content", "knowledge", "hybrid"}, config.Recommend.Techniques)
	suite.Equal(4, config.Recommend.Jobs)
	// [mf]
	suite.Equal("als", config.MF.Type)
	suite.Equal(16, config.MF.NFactors)
	suite.Equal(0.06, config.MF.Reg)
	suite.Equal(0.1, config.MF.InitStdDev)
	// [knn]
	suite.Equal("pearson", config.KNN.Similarity)
	suite.Equal(40, config.KNN.NNeighbors)
	// [knowledge]
	suite.Equal(0.9, config.Knowledge.Quantile)
	suite.Empty(config.Knowledge.Filter)
	// [hybrid]
	suite.Equal("content", config.Hybrid.B)
	suite.Equal(0.7, config.Hybrid.Weight)
	// [tune]
	suite.Equal([]string{"als", "svd"}, config.Tune.Models)
}

func (suite *ConfigTestSuite) TestPartialFile() {
	path := filepath.Join(suite.T().TempDir(), "config.toml")
	suite.NoError(os.WriteFile(path, []byte(`
[mf]
type = "svd"
n_factors = 8

[knowledge]
filter = '"Comedy" in item.Genres'
`), 0o644))
	config, err := LoadConfig(path)
	suite.NoError(err)
	suite.Equal("svd", config.MF.Type)
	suite.Equal(8, config.MF.NFactors)
	suite.Equal(`"Comedy" in item.Genres`, config.Knowledge.Filter)
	// missing values are filled with defaults
	suite.Equal(20, config.MF.NEpochs)
	suite.Equal(GetDefaultConfig().Knowledge.Score, config.Knowledge.Score)
	suite.Equal(10, config.Recommend.TopN)

	_, err = LoadConfig(filepath.Join(suite.T().TempDir(), "missing.toml"))
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestBindEnv() {
	suite.T().Setenv("MOVIEREC_DATA_DIR", "ml-1m")
	suite.T().Setenv("MOVIEREC_MF_N_FACTORS", "32")
	suite.T().Setenv("MOVIEREC_HYBRID_WEIGHT", "0.5")
	suite.T().Setenv("MOVIEREC_RECOMMEND_TECHNIQUES", "mf,knowledge")
	config, err := LoadConfig("config.toml.template")
	suite.NoError(err)
	suite.Equal("ml-1m", config.Data.Dir)
	suite.Equal(32, config.MF.NFactors)
	suite.Equal(0.5, config.Hybrid.Weight)
	suite.Equal([]string{"mf", "knowledge"}, config.Recommend.Techniques)
}

func (suite *ConfigTestSuite) TestValidate() {
	for _, env := range [][2]string{
		{"MOVIEREC_DATA_TEST_RATIO", "1"},
		{"MOVIEREC_DATA_TEST_RATIO", "0"},
		{"MOVIEREC_RECOMMEND_JOBS", "0"},
		{"MOVIEREC_RECOMMEND_TECHNIQUES", "mf,unknown"},
		{"MOVIEREC_MF_TYPE", "bpr"},
		{"MOVIEREC_KNN_SIMILARITY", "jaccard"},
		{"MOVIEREC_CONTENT_MIN_DF", "0"},
		{"MOVIEREC_KNOWLEDGE_QUANTILE", "1.5"},
		{"MOVIEREC_HYBRID_B", "mf"},
		{"MOVIEREC_HYBRID_WEIGHT", "-1"},
		{"MOVIEREC_TUNE_MODELS", "als,knn"},
	} {
		suite.Run(env[0]+"="+env[1], func() {
			suite.T().Setenv(env[0], env[1])
			_, err := LoadConfig("")
			suite.True(errors.Is(err, errors.NotValid), err)
		})
	}
}

func (suite *ConfigTestSuite) TestGetParams() {
	config := GetDefaultConfig()
	params := config.MF.GetParams()
	suite.Equal(16, params.GetInt(model.NFactors, 0))
	suite.Equal(float32(0.06), params.GetFloat32(model.Reg, 0))
	suite.True(params.GetBool(model.UseBias, false))
	fitConfig := config.MF.GetFitConfig(4)
	suite.Equal(4, fitConfig.Jobs)
	suite.Equal(10, fitConfig.Verbose)

	params = config.KNN.GetParams()
	suite.Equal("pearson", params.GetString(model.SimilarityMetric, ""))
	suite.Equal(40, params.GetInt(model.NNeighbors, 0))
	params = config.Content.GetParams()
	suite.Equal(1, params.GetInt(model.MinDF, 0))

	knowledgeConfig := config.Knowledge.GetConfig()
	suite.Equal("weighted_rating", knowledgeConfig.Name)
	suite.Equal(0.9, knowledgeConfig.Quantile)
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

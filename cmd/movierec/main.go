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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/juju/errors"
	"github.com/movierec/movierec/base/log"
	"github.com/movierec/movierec/cmd/version"
	"github.com/movierec/movierec/config"
	"github.com/movierec/movierec/dataset"
	"github.com/movierec/movierec/logics"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "movierec",
	Short: "Movie recommendation by collaborative, content-based and knowledge-based filtering.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		return nil
	},
	SilenceUsage: true,
}

// showProgress is disabled in tests.
var showProgress = true

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show the version of movierec",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().StringP("data", "d", "", "directory of MovieLens files (overrides data.dir)")
	rootCommand.PersistentFlags().IntP("jobs", "j", 0, "number of workers (overrides recommend.jobs)")
	rootCommand.AddCommand(versionCommand)
}

// loadConfig loads the configuration with command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cmd.Flags().Changed("data") {
		conf.Data.Dir, _ = cmd.Flags().GetString("data")
	}
	if cmd.Flags().Changed("jobs") {
		conf.Recommend.Jobs, _ = cmd.Flags().GetInt("jobs")
	}
	if err = conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

func loadDataset(conf *config.Config) (*dataset.Dataset, error) {
	data, err := dataset.LoadMovieLens(conf.Data.Dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load dataset",
		zap.String("dir", conf.Data.Dir),
		zap.Int("n_users", data.CountUsers()),
		zap.Int("n_items", data.CountItems()),
		zap.Int("n_ratings", data.CountInteractions()))
	return data, nil
}

// fit fits techniques while showing progress of matrix factorization epochs.
func fit(ctx context.Context, conf *config.Config, trainSet *dataset.Dataset, techniques ...string) (*logics.Recommender, error) {
	bar := progressbar.NewOptions(conf.MF.NEpochs,
		progressbar.OptionSetDescription("fit "+conf.MF.Type),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(showProgress),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
	recommender, err := logics.Fit(ctx, conf, trainSet, func(epoch int, loss float64) {
		bar.Describe(fmt.Sprintf("fit %s (loss = %.4f)", conf.MF.Type, loss))
		_ = bar.Set(epoch)
	}, techniques...)
	_ = bar.Finish()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return recommender, nil
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(header...)
	return table
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Error("movierec failed", zap.Error(err))
		os.Exit(1)
	}
}

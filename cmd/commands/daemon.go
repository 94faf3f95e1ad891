/*
Copyright 2024 The Statscache Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"github.com/spf13/cobra"

	"github.com/vivekanand1101/statscache/pkg/daemon"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	"github.com/vivekanand1101/statscache/pkg/shared/signals"
	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
)

// NewDaemonCommand returns the command running the whole daemon.
func NewDaemonCommand() *cobra.Command {
	var configPath string
	command := &cobra.Command{
		Use:   "daemon",
		Short: "Run the statscache daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("statscache")
			ctx := logging.WithLogger(signals.SetupSignalHandler(), logger)
			return daemon.New(configPath).Run(ctx)
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c",
		sharedutil.LookupEnvStringOr("STATSCACHE_CONFIG", "statscache.yaml"),
		"Path to the configuration file")
	return command
}

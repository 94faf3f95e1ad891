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

	"github.com/vivekanand1101/statscache/pkg/plugin"
	_ "github.com/vivekanand1101/statscache/pkg/plugin/builtin" // register builtin plugin builders
)

// NewPluginsCommand returns the command listing the registered plugin kinds.
func NewPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the registered plugin kinds",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range plugin.BuilderNames() {
				cmd.Println(name)
			}
		},
	}
}

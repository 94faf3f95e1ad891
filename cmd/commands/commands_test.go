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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Commands(t *testing.T) {
	t.Run("root execute", func(t *testing.T) {
		assert.NotPanics(t, Execute, "help")
	})

	t.Run("test root", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		Execute()
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
	})

	t.Run("daemon", func(t *testing.T) {
		cmd := NewDaemonCommand()
		assert.Equal(t, "daemon", cmd.Use)
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "string", cmd.Flag("config").Value.Type())
		assert.Equal(t, "statscache.yaml", cmd.Flag("config").DefValue)
	})

	t.Run("daemon config path from env", func(t *testing.T) {
		t.Setenv("STATSCACHE_CONFIG", "/etc/statscache/statscache.yaml")
		cmd := NewDaemonCommand()
		assert.Equal(t, "/etc/statscache/statscache.yaml", cmd.Flag("config").DefValue)
	})

	t.Run("plugins", func(t *testing.T) {
		cmd := NewPluginsCommand()
		b := bytes.NewBufferString("")
		cmd.SetOut(b)
		assert.NoError(t, cmd.Execute())
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "volume")
		assert.Contains(t, string(output), "topics")
		assert.Contains(t, string(output), "latency")
	})

	t.Run("version", func(t *testing.T) {
		cmd := NewVersionCommand()
		b := bytes.NewBufferString("")
		cmd.SetOut(b)
		assert.NoError(t, cmd.Execute())
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Version:")
	})
}

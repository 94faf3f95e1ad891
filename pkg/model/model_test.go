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

package model

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{Timestamp: time.Unix(1651129200, 0).UTC(), Category: "git.commit", Value: 42},
		{Timestamp: time.Unix(1651132800, 0).UTC(), Value: 0.5},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Equal(t,
		"timestamp,category,value\n"+
			"2022-04-28T07:00:00Z,git.commit,42\n"+
			"2022-04-28T08:00:00Z,,0.5\n",
		buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "timestamp,category,value\n", buf.String())
}

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout("volume", "messages per window")
	assert.Equal(t, "volume", l.Title)
	require.Len(t, l.Columns, 3)
	assert.Equal(t, "timestamp", l.Columns[0].Name)
}

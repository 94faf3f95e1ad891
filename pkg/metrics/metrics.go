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

// Package metrics holds the label names shared by the per-package
// prometheus collectors.
package metrics

const (
	// LabelPlugin is the plugin ident label
	LabelPlugin = "plugin"
	// LabelTopic is the bus topic label
	LabelTopic = "topic"
	// LabelSource is the source kind label
	LabelSource = "source"
)

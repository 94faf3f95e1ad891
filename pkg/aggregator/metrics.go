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

package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vivekanand1101/statscache/pkg/metrics"
)

// processedCount is used to indicate the number of messages handed to a plugin
var processedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "processed_total",
	Help:      "Total number of messages processed",
}, []string{metrics.LabelPlugin})

// droppedDuplicateCount is used to indicate the number of messages dropped by dedup
var droppedDuplicateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "dropped_duplicate_total",
	Help:      "Total number of duplicate messages dropped",
}, []string{metrics.LabelPlugin})

// droppedOverflowCount is used to indicate the number of messages dropped
// because a runner's buffer stayed full past the send wait
var droppedOverflowCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "dropped_overflow_total",
	Help:      "Total number of messages dropped on a full runner buffer",
}, []string{metrics.LabelPlugin})

// updateCount is used to indicate the number of successful plugin commits
var updateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "update_total",
	Help:      "Total number of plugin updates committed",
}, []string{metrics.LabelPlugin})

// updateErrorCount is used to indicate the number of failed plugin commits
var updateErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "update_error_total",
	Help:      "Total number of plugin update errors",
}, []string{metrics.LabelPlugin})

// revertCount is used to indicate the number of reverts issued against the store
var revertCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "revert_total",
	Help:      "Total number of reverts issued",
}, []string{metrics.LabelPlugin})

// processingRate is the smoothed per-plugin message rate
var processingRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "aggregator",
	Name:      "processing_rate",
	Help:      "Messages processed per second, smoothed",
}, []string{metrics.LabelPlugin})

// watermarkGauge tracks the per-plugin watermark in unix milliseconds
var watermarkGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "aggregator",
	Name:      "watermark",
	Help:      "Plugin watermark in unix milliseconds",
}, []string{metrics.LabelPlugin})

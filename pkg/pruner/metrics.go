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

package pruner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vivekanand1101/statscache/pkg/metrics"
)

// prunedRowsCount is used to indicate the number of expired rows removed
var prunedRowsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "pruner",
	Name:      "pruned_rows_total",
	Help:      "Total number of expired rows pruned",
}, []string{metrics.LabelPlugin})

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

// Package ewma implements the Exponentially Weighted Moving Average (EWMA)
// It is used to calculate the moving average of a series of numbers
// EWMA is a type of infinite impulse response filter that applies weighting factors which decrease exponentially.
// The weighting for each older datum decreases exponentially, never reaching zero.
// The EWMA can be used to smooth the processing rates published by the aggregator.
package ewma

// EWMA is the interface for Exponentially Weighted Moving Average
// It is used to calculate the moving average with a given smoothing factor
type EWMA interface {
	// Add adds a new value to the EWMA
	Add(float64)
	// Get returns the current value of the EWMA
	Get() float64
	// Reset resets the EWMA to the initial value
	Reset()
	// Set sets the EWMA to the given value
	Set(float64)
}

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

package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vivekanand1101/statscache/pkg/window"
)

// Builder constructs a plugin instance from a validated spec and its
// schedule.
type Builder func(spec Spec, sched *window.Schedule, opts ...Option) (Plugin, error)

var (
	buildersLock sync.RWMutex
	builders     = make(map[string]Builder)
)

// RegisterBuilder makes a plugin kind available for configuration under the
// given name. It panics on duplicate registration, which is a programming
// error.
func RegisterBuilder(kind string, b Builder) {
	buildersLock.Lock()
	defer buildersLock.Unlock()
	if _, ok := builders[kind]; ok {
		panic(fmt.Sprintf("plugin builder %q registered twice", kind))
	}
	builders[kind] = b
}

// GetBuilder returns the builder registered under the given name.
func GetBuilder(kind string) (Builder, bool) {
	buildersLock.RLock()
	defer buildersLock.RUnlock()
	b, ok := builders[kind]
	return b, ok
}

// BuilderNames returns the registered plugin kinds, sorted.
func BuilderNames() []string {
	buildersLock.RLock()
	defer buildersLock.RUnlock()
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

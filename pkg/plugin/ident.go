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
	"strings"
)

// characters stripped from plugin names when building idents
const strippedChars = `"'()*&?,`

// SanitizeName normalizes a plugin name into an identifier that is safe to
// use in URLs and as a storage key: lower-cased, spaces replaced with
// dashes, a fixed set of punctuation stripped. It is deterministic and
// total, any input yields a usable identifier.
func SanitizeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(strippedChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import "strings"

// ExtractSignature splits a compact token into its signed part and its
// signature. Exactly three non-empty segments are required.
func ExtractSignature(token string) (Segments, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Segments{}, &MalformedTokenError{Segments: len(parts)}
	}
	for _, p := range parts {
		if p == "" {
			return Segments{}, &MalformedTokenError{Segments: nonEmpty(parts)}
		}
	}

	return Segments{
		SignedPayload: parts[0] + "." + parts[1],
		Signature:     parts[2],
	}, nil
}

func nonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if p != "" {
			n++
		}
	}
	return n
}

/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Digest is the hex-encoded sha256 of the JSON form of results. Two runs
// producing the same sections have the same digest.
func Digest(results []SectionResult) string {
	raw, err := json.Marshal(results)
	if err != nil {
		// ParsedData that cannot be encoded still hashes by section text
		raw = digestFallback(results)
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

func digestFallback(results []SectionResult) []byte {
	var raw []byte
	for _, r := range results {
		raw = append(raw, r.Name...)
		raw = append(raw, 0)
		raw = append(raw, r.Data...)
		raw = append(raw, 0)
	}
	return raw
}

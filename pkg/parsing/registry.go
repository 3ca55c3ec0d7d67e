// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package parsing

import "log/slog"

// DefaultPool returns a Pool with the languages this core ships a parser
// for pre-registered. Additional languages are added by calling Register
// on the returned Pool; no existing registration needs to change.
func DefaultPool(skipParseErrors bool, logger *slog.Logger) *Pool {
	p := NewPool(skipParseErrors, logger)
	p.Register("go", NewGoParser)
	return p
}

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

package main

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// resolveHeadSnapshot returns the repository's current git HEAD as its
// snapshot ID, falling back to a timestamp for non-git repositories
// (grounded on pkg/change.Detector.resolveRef's own "git rev-parse" call).
func resolveHeadSnapshot(repoPath string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return fmt.Sprintf("snap-%d", time.Now().Unix())
	}
	return strings.TrimSpace(string(out))
}

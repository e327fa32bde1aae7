/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui hosts the desktop front end. It is only built with -tags fyne;
// other builds get a stub so headless CI needs neither Fyne nor a display.
package ui

import (
	"talkflow/internal/feed"
	"talkflow/internal/workspace"
)

// Options configure the desktop window.
type Options struct {
	Workspace *workspace.Workspace
	Follow    <-chan feed.Event // optional live transcript
	ExportDir string
}

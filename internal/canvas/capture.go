/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

// CaptureScope widens pointer delivery to the whole surface for the duration
// of a gesture. The controller calls Acquire when a drag, resize or pan
// starts and Release exactly once when it ends, whichever way it ends.
// Surfaces that lose capture report it through Controller.PointerCancel.
type CaptureScope interface {
	Acquire()
	Release()
}

// NopCapture is used by surfaces that already deliver every pointer event.
type NopCapture struct{}

func (NopCapture) Acquire() {}
func (NopCapture) Release() {}

// CaptureFuncs adapts two functions to CaptureScope.
type CaptureFuncs struct {
	OnAcquire func()
	OnRelease func()
}

func (c CaptureFuncs) Acquire() {
	if c.OnAcquire != nil {
		c.OnAcquire()
	}
}

func (c CaptureFuncs) Release() {
	if c.OnRelease != nil {
		c.OnRelease()
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import (
	"fmt"
	"math"

	"talkflow/internal/vector"
)

// LayoutParams holds the placement constants for every view mode.
type LayoutParams struct {
	MindmapCenter     vector.Pt `yaml:"mindmap_center"`
	MindmapRadius     float32   `yaml:"mindmap_radius"`
	MindmapRadiusStep float32   `yaml:"mindmap_radius_step"`
	MindmapAngleStep  float32   `yaml:"mindmap_angle_step"` // degrees
	MindmapLevelGroup int       `yaml:"mindmap_level_group"`

	FlowCenterX        float32 `yaml:"flow_center_x"`
	FlowStartY         float32 `yaml:"flow_start_y"`
	FlowStepY          float32 `yaml:"flow_step_y"`
	FlowDecisionOffset float32 `yaml:"flow_decision_offset"`
	FlowProcessOffset  float32 `yaml:"flow_process_offset"`

	OutlineX      float32 `yaml:"outline_x"`
	OutlineStartY float32 `yaml:"outline_start_y"`
	OutlineStepY  float32 `yaml:"outline_step_y"`
}

// DefaultLayoutParams returns the stock constants.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		MindmapCenter:     vector.Pt{X: 400, Y: 300},
		MindmapRadius:     200,
		MindmapRadiusStep: 50,
		MindmapAngleStep:  60,
		MindmapLevelGroup: 3,

		FlowCenterX:        500,
		FlowStartY:         100,
		FlowStepY:          180,
		FlowDecisionOffset: 300,
		FlowProcessOffset:  200,

		OutlineX:      100,
		OutlineStartY: 100,
		OutlineStepY:  100,
	}
}

// Layout places the transcript with the default constants.
func Layout(transcript []string, mode ViewMode) ([]Node, error) {
	return DefaultLayoutParams().Layout(transcript, mode)
}

// Layout produces one node per transcript line. It is pure: the same input
// always yields the same nodes and nothing from a previous layout is read.
func (p LayoutParams) Layout(transcript []string, mode ViewMode) ([]Node, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("layout: %w: %d", ErrUnsupportedViewMode, uint8(mode))
	}
	nodes := make([]Node, len(transcript))
	for i, line := range transcript {
		n := Node{
			ID:   NodeID(i),
			Text: line,
			Size: DefaultSize,
			Prev: NodeID(i - 1),
		}
		switch mode {
		case Mindmap:
			p.placeMindmap(&n, i)
		case Flowchart:
			p.placeFlowchart(&n, i, len(transcript))
		case Outline:
			p.placeOutline(&n, i)
		}
		n.Position = n.Position.Round(3)
		nodes[i] = n
	}
	return nodes, nil
}

func (p LayoutParams) placeMindmap(n *Node, i int) {
	deg := math.Mod(float64(i)*float64(p.MindmapAngleStep), 360)
	rad := deg * math.Pi / 180
	r := float64(p.MindmapRadius) + float64(i)*float64(p.MindmapRadiusStep)
	n.Position = vector.Pt{
		X: p.MindmapCenter.X + float32(r*math.Cos(rad)),
		Y: p.MindmapCenter.Y + float32(r*math.Sin(rad)),
	}
	n.Kind = KindProcess
	if p.MindmapLevelGroup > 0 {
		n.Level = i / p.MindmapLevelGroup
	}
}

func (p LayoutParams) placeFlowchart(n *Node, i, total int) {
	y := p.FlowStartY + float32(i)*p.FlowStepY
	side := float32(1)
	if (i/2)%2 != 0 {
		side = -1
	}
	switch {
	case i == 0:
		n.Kind = KindStart
		n.Position = vector.Pt{X: p.FlowCenterX, Y: y}
	case i == total-1:
		n.Kind = KindEnd
		n.Position = vector.Pt{X: p.FlowCenterX, Y: y}
	case IsDecision(n.Text):
		n.Kind = KindDecision
		n.Size = DecisionSize
		n.Position = vector.Pt{X: p.FlowCenterX + side*p.FlowDecisionOffset, Y: y}
	default:
		n.Kind = KindProcess
		n.Position = vector.Pt{X: p.FlowCenterX + side*p.FlowProcessOffset, Y: y}
	}
	n.Level = mainIdeaLevel(n.Text)
}

func (p LayoutParams) placeOutline(n *Node, i int) {
	n.Position = vector.Pt{X: p.OutlineX, Y: p.OutlineStartY + float32(i)*p.OutlineStepY}
	n.Kind = KindProcess
	n.Level = mainIdeaLevel(n.Text)
}

// mainIdeaLevel is 0 for headline lines and 1 for details.
func mainIdeaLevel(text string) int {
	if IsMainIdea(text) {
		return 0
	}
	return 1
}

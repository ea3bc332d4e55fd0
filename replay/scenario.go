// ABOUTME: YAML-scripted stream scenarios for the replay server.
// ABOUTME: Each step is one SSE frame with an optional delay, so bursty and slow streams can both be simulated.

package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Step is one scripted frame. Data may be a YAML mapping (serialized to
// JSON when served) or a plain string for free-text events like keepalive.
type Step struct {
	Event   string `yaml:"event"`
	Data    any    `yaml:"data"`
	DelayMS int    `yaml:"delay_ms"`
}

// Scenario is an ordered script of frames served to each stream subscriber.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// LoadScenario reads a scenario script from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &sc, nil
}

// Delay returns the step's pre-send delay.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// EncodeData renders the step's data as the SSE payload string.
func (s Step) EncodeData() (string, error) {
	switch v := s.Data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding step data: %w", err)
		}
		return string(raw), nil
	}
}

// DemoScenario returns a built-in script exercising the full pipeline: one
// remote task progressing through all six lanes across two thoughts, ending
// in a terminal action.
func DemoScenario() *Scenario {
	step := func(event string, data map[string]any, delayMS int) Step {
		return Step{Event: event, Data: data, DelayMS: delayMS}
	}
	update := func(thoughtID, currentStep string) map[string]any {
		return map[string]any{
			"updated_thoughts": []any{
				map[string]any{"thought_id": thoughtID, "task_id": "demo-task", "current_step": currentStep},
			},
		}
	}

	return &Scenario{
		Name: "demo",
		Steps: []Step{
			step("thought_start", map[string]any{
				"thought_id":       "demo-thought-1",
				"task_id":          "demo-task",
				"task_description": "Summarize **today's** agent activity",
			}, 100),
			step("step_update", update("demo-thought-1", "gather_context"), 150),
			step("step_update", update("demo-thought-1", "perform_dmas"), 150),
			step("step_update", update("demo-thought-1", "recursive_aspdma"), 150),
			{Event: "keepalive", Data: "ping", DelayMS: 100},
			step("thought_start", map[string]any{
				"thought_id":       "demo-thought-2",
				"task_id":          "demo-task",
				"task_description": "",
			}, 100),
			step("step_update", update("demo-thought-2", "conscience_execution"), 150),
			step("step_update", map[string]any{
				"events": []any{
					map[string]any{
						"task_id":          "demo-task",
						"thought_id":       "demo-thought-2",
						"stage":            "ACTION_RESULT",
						"action_executed":  "task_complete",
						"action_rationale": "done",
					},
				},
			}, 200),
		},
	}
}

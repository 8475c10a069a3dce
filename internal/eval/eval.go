// Package eval replays a fixed tool-calling case suite through the hybrid
// router and scores the outcome on three axes: call accuracy (F1), response
// latency, and the share of requests served on-device.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Call is an expected or predicted tool invocation with decoded arguments.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Case is one scenario: a single user turn, the tools offered for it, and
// the calls a correct answer makes.
type Case struct {
	Name          string         `json:"name"`
	Difficulty    string         `json:"difficulty"`
	Message       string         `json:"message"`
	Tools         []backend.Tool `json:"tools"`
	ExpectedCalls []Call         `json:"expected_calls"`
}

// Result is the outcome of one replayed case.
type Result struct {
	Case    Case
	F1      float64
	Latency time.Duration
	Source  backend.Source
	Err     error
}

// difficultyWeights skew the total score toward the hard cases.
var difficultyWeights = map[string]float64{"easy": 0.20, "medium": 0.30, "hard": 0.50}

// latencyBaseline is the response time that still earns full latency marks.
const latencyBaseline = 500 * time.Millisecond

// LoadCases reads and validates a JSON case file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read %q: %w", path, err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("eval: parse %q: %w", path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("eval: %q contains no cases", path)
	}
	for i, c := range cases {
		if c.Name == "" || c.Message == "" {
			return nil, fmt.Errorf("eval: case %d needs a name and a message", i)
		}
		if _, ok := difficultyWeights[c.Difficulty]; !ok {
			return nil, fmt.Errorf("eval: case %q difficulty %q is not one of easy, medium, hard", c.Name, c.Difficulty)
		}
	}
	return cases, nil
}

// Run replays the cases through the router sequentially, one fresh user turn
// each. A routing error zeroes the case's accuracy but never aborts the
// suite.
func Run(ctx context.Context, r *router.Router, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		res := Result{Case: c}
		resp, err := r.Chat(ctx, router.Request{
			Messages: []backend.Message{{Role: "user", Content: c.Message}},
			Tools:    c.Tools,
		})
		if err != nil {
			res.Err = err
			if resp != nil {
				res.Latency = resp.LocalLatency
			}
			results = append(results, res)
			continue
		}
		res.F1 = callF1(predictedCalls(resp.Calls), c.ExpectedCalls)
		res.Latency = resp.Latency
		res.Source = resp.Source
		results = append(results, res)
	}
	return results
}

// predictedCalls converts the router's validated calls into the comparison
// form.
func predictedCalls(calls []router.Call) []Call {
	out := make([]Call, 0, len(calls))
	for _, c := range calls {
		out = append(out, Call{Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

// callF1 scores predicted against expected calls: precision over the
// predictions, recall over the expectations, harmonic mean. Order does not
// matter; each prediction matches at most one expectation.
func callF1(predicted, expected []Call) float64 {
	if len(predicted) == 0 && len(expected) == 0 {
		return 1
	}
	if len(predicted) == 0 || len(expected) == 0 {
		return 0
	}
	matched := 0
	used := make(map[int]bool)
	for _, exp := range expected {
		for i, pred := range predicted {
			if !used[i] && callMatches(pred, exp) {
				matched++
				used[i] = true
				break
			}
		}
	}
	precision := float64(matched) / float64(len(predicted))
	recall := float64(matched) / float64(len(expected))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// callMatches requires the same tool name and, for every expected argument,
// a predicted value that normalises equal. Extra predicted arguments are
// tolerated.
func callMatches(pred, exp Call) bool {
	if pred.Name != exp.Name {
		return false
	}
	for key, want := range exp.Arguments {
		got, ok := pred.Arguments[key]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// normalize folds strings for comparison and widens numbers to the float64
// form JSON decoding produces.
func normalize(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return v
}

// LevelSummary aggregates the results of one difficulty level.
type LevelSummary struct {
	Difficulty string
	Cases      int
	AvgF1      float64
	AvgLatency time.Duration
	OnDevice   int
}

// Summarize groups results per difficulty level, in easy/medium/hard order.
func Summarize(results []Result) []LevelSummary {
	var out []LevelSummary
	for _, difficulty := range []string{"easy", "medium", "hard"} {
		var group []Result
		for _, r := range results {
			if r.Case.Difficulty == difficulty {
				group = append(group, r)
			}
		}
		if len(group) == 0 {
			continue
		}
		s := LevelSummary{Difficulty: difficulty, Cases: len(group)}
		var latSum time.Duration
		for _, r := range group {
			s.AvgF1 += r.F1
			latSum += r.Latency
			if r.Source == backend.SourceLocal {
				s.OnDevice++
			}
		}
		s.AvgF1 /= float64(len(group))
		s.AvgLatency = latSum / time.Duration(len(group))
		out = append(out, s)
	}
	return out
}

// TotalScore folds the results into a 0-100 score. Each difficulty level
// contributes 60% call accuracy, 15% latency under the baseline, and 25%
// on-device share; levels weigh easy 20%, medium 30%, hard 50%.
func TotalScore(results []Result) float64 {
	total := 0.0
	for _, s := range Summarize(results) {
		avgMS := float64(s.AvgLatency) / float64(time.Millisecond)
		timeScore := max(0, 1-avgMS/float64(latencyBaseline/time.Millisecond))
		onDeviceRatio := float64(s.OnDevice) / float64(s.Cases)
		level := 0.60*s.AvgF1 + 0.15*timeScore + 0.25*onDeviceRatio
		total += difficultyWeights[s.Difficulty] * level
	}
	return total * 100
}

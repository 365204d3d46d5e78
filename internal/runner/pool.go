package runner

import (
	"context"
	"sync"

	"github.com/metalagman/goalpilot/internal/model"
	"github.com/metalagman/goalpilot/internal/scenario"
)

// Pool runs many scenarios in bounded worker slots. Workers share only the
// runner's goroutine-safe collaborators; every execution gets its own
// tracker and synthesizer inside RunTest.
type Pool struct {
	runner      *Runner
	concurrency int
}

// NewPool wraps a runner. concurrency below 1 is treated as 1.
func NewPool(r *Runner, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{runner: r, concurrency: concurrency}
}

// Run executes every scenario and returns results in input order.
func (p *Pool) Run(ctx context.Context, scenarios []scenario.Scenario) []model.GoalTestResult {
	results := make([]model.GoalTestResult, len(scenarios))
	slots := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		wg.Add(1)
		go func(i int, sc scenario.Scenario) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()
			results[i] = p.runner.RunTest(ctx, sc)
		}(i, sc)
	}
	wg.Wait()
	return results
}

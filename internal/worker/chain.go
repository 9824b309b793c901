package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/event-etl/internal/pkg/logger"
)

// TaskChain is the task type carrying one step of a chain.
const TaskChain = "chain"

// StepFunc runs one chain step. Its output is the next step's input.
type StepFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// ChainResult describes how a chain ended.
type ChainResult struct {
	ChainID   string
	Name      string
	Completed []string
	// FailedStep is empty when every step succeeded.
	FailedStep string
	Err        error
	Output     json.RawMessage
}

// FinalizeFunc runs once when a chain ends, whether or not it succeeded.
type FinalizeFunc func(ctx context.Context, res ChainResult)

type chainPayload struct {
	ChainID   string          `json:"chain_id"`
	Name      string          `json:"name"`
	Steps     []string        `json:"steps"`
	Index     int             `json:"index"`
	Input     json.RawMessage `json:"input,omitempty"`
	Completed []string        `json:"completed,omitempty"`
}

// Chains runs ordered, failure-coupled sequences of steps. Each step is
// its own queued task, so steps of one chain may run on different
// workers. A failed step ends the chain: later steps never run.
type Chains struct {
	queue *Queue

	mu         sync.RWMutex
	steps      map[string]StepFunc
	finalizers map[string]FinalizeFunc
}

// NewChains creates a chain runner that enqueues steps on queue.
func NewChains(queue *Queue) *Chains {
	return &Chains{
		queue:      queue,
		steps:      make(map[string]StepFunc),
		finalizers: make(map[string]FinalizeFunc),
	}
}

// RegisterStep makes fn available as a step called name.
func (c *Chains) RegisterStep(name string, fn StepFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[name] = fn
}

// OnFinish sets the finalizer for chains called chainName.
func (c *Chains) OnFinish(chainName string, fn FinalizeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizers[chainName] = fn
}

// Start enqueues the first step of a new chain and returns its id.
func (c *Chains) Start(ctx context.Context, name string, steps []string, input any) (string, error) {
	if len(steps) == 0 {
		return "", errors.New("chain has no steps")
	}
	c.mu.RLock()
	for _, s := range steps {
		if _, ok := c.steps[s]; !ok {
			c.mu.RUnlock()
			return "", fmt.Errorf("chain %s: unknown step %s", name, s)
		}
	}
	c.mu.RUnlock()

	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode chain input: %w", err)
	}
	p := chainPayload{ChainID: uuid.NewString(), Name: name, Steps: steps, Input: raw}
	if err := c.enqueue(ctx, p); err != nil {
		return "", err
	}
	logger.Info("[Chain] started", "chain", name, "chain_id", p.ChainID, "steps", steps)
	return p.ChainID, nil
}

func (c *Chains) enqueue(ctx context.Context, p chainPayload) error {
	t, err := NewTask(TaskChain, p)
	if err != nil {
		return err
	}
	return c.queue.Enqueue(ctx, t)
}

// Handle is the Pool handler for TaskChain.
func (c *Chains) Handle(ctx context.Context, task Task) error {
	var p chainPayload
	if err := task.Decode(&p); err != nil {
		return Fatal(err)
	}
	if p.Index < 0 || p.Index >= len(p.Steps) {
		err := fmt.Errorf("chain %s: step index %d out of range", p.Name, p.Index)
		if p.Name != "" {
			c.finish(ctx, p, "", err, nil)
		}
		return Fatal(err)
	}
	step := p.Steps[p.Index]

	c.mu.RLock()
	fn, ok := c.steps[step]
	c.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: chain step %s", ErrUnknownTask, step)
		c.finish(ctx, p, step, err, nil)
		return err
	}

	logger.Info("[Chain] running step", "chain", p.Name, "chain_id", p.ChainID, "step", step, "index", p.Index)
	out, err := runStep(ctx, fn, p.Input)
	if err != nil {
		c.finish(ctx, p, step, err, nil)
		return fmt.Errorf("chain %s step %s: %w", p.Name, step, err)
	}

	p.Completed = append(p.Completed, step)
	if p.Index == len(p.Steps)-1 {
		c.finish(ctx, p, "", nil, out)
		return nil
	}

	next := p
	next.Index++
	next.Input = out
	if err := c.enqueue(ctx, next); err != nil {
		c.finish(ctx, p, p.Steps[next.Index], err, nil)
		return fmt.Errorf("chain %s: enqueue next step: %w", p.Name, err)
	}
	return nil
}

func runStep(ctx context.Context, fn StepFunc, input json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return fn(ctx, input)
}

func (c *Chains) finish(ctx context.Context, p chainPayload, failedStep string, err error, out json.RawMessage) {
	res := ChainResult{
		ChainID:    p.ChainID,
		Name:       p.Name,
		Completed:  p.Completed,
		FailedStep: failedStep,
		Err:        err,
		Output:     out,
	}
	if err != nil {
		logger.Error("[Chain] failed", "chain", p.Name, "chain_id", p.ChainID, "step", failedStep, "error", err)
	} else {
		logger.Info("[Chain] completed", "chain", p.Name, "chain_id", p.ChainID, "steps", len(p.Completed))
	}

	c.mu.RLock()
	fn, ok := c.finalizers[p.Name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Chain] finalizer panicked", "chain", p.Name, "panic", r)
		}
	}()
	fn(ctx, res)
}

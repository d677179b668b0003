// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"github.com/joeycumines/procx/internal/rtlog"
	"github.com/joeycumines/procx/internal/runtime"
)

// schedulerOptions holds configuration for Runtime construction.
type schedulerOptions struct {
	workers    int
	logger     rtlog.Logger
	spinBudget int
}

// SchedulerOption configures a Runtime instance.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions) error
}

type schedulerOptionFunc func(*schedulerOptions) error

func (f schedulerOptionFunc) applyScheduler(opts *schedulerOptions) error { return f(opts) }

// WithWorkers sets the total number of OS-thread-locked workers, including
// the one that calls Run. n<=0 means runtime.NumCPU().
func WithWorkers(n int) SchedulerOption {
	return schedulerOptionFunc(func(opts *schedulerOptions) error {
		opts.workers = n
		return nil
	})
}

// WithLogger installs a structured logger the scheduler reports lifecycle
// events through (see SetLogger). Defaults to a no-op logger.
func WithLogger(l rtlog.Logger) SchedulerOption {
	return schedulerOptionFunc(func(opts *schedulerOptions) error {
		opts.logger = l
		return nil
	})
}

// WithSpinBudget records n as the runtime Config's SpinBudget. No
// spinlock or scheduler code reads that value, so it does not change
// runtime behavior; the spinlock's wait bound is fixed in internal/sync.
func WithSpinBudget(n int) SchedulerOption {
	return schedulerOptionFunc(func(opts *schedulerOptions) error {
		opts.spinBudget = n
		return nil
	})
}

func resolveSchedulerOptions(opts []SchedulerOption) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *schedulerOptions) toRuntimeConfig() runtime.Config {
	return runtime.Config{
		Workers:    cfg.workers,
		SpinBudget: cfg.spinBudget,
	}
}

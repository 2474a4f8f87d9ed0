package sandbox

import (
	"context"
	"fmt"
	"sync"
)

/*
Session executes statements against an isolated database clone. Exec applies
DDL or configuration changes; Time measures a statement's execution latency
in milliseconds. Implementations must never point at the monitored
production database.
*/
type Session interface {
	Exec(ctx context.Context, sql string) error
	Time(ctx context.Context, sql string) (float64, error)
}

/*
Instance serializes access to one sandbox session. Benchmarks against the
same instance never interleave, so an applied fix cannot contaminate a
concurrent baseline measurement.
*/
type Instance struct {
	mu      sync.Mutex
	session Session
}

/*
NewInstance wraps a session in a serialized instance.
*/
func NewInstance(session Session) *Instance {
	return &Instance{session: session}
}

func (i *Instance) Exec(ctx context.Context, sql string) error {
	return i.session.Exec(ctx, sql)
}

func (i *Instance) Time(ctx context.Context, sql string) (float64, error) {
	return i.session.Time(ctx, sql)
}

// lock is held for the duration of one benchmark.
func (i *Instance) lock() {
	i.mu.Lock()
}

func (i *Instance) unlock() {
	i.mu.Unlock()
}

/*
Pool hands out sandbox instances to concurrent validators. Acquire blocks
until an instance is free or the context expires.
*/
type Pool struct {
	instances chan *Instance
}

/*
NewPool creates a pool over the given instances.
*/
func NewPool(instances ...*Instance) *Pool {
	pool := &Pool{
		instances: make(chan *Instance, len(instances)),
	}
	for _, instance := range instances {
		pool.instances <- instance
	}
	return pool
}

/*
Acquire returns a free instance, blocking until one is available.
*/
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	select {
	case instance := <-p.instances:
		return instance, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire sandbox instance: %w", ctx.Err())
	}
}

/*
Release returns an instance to the pool.
*/
func (p *Pool) Release(instance *Instance) {
	p.instances <- instance
}

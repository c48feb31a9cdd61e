// Package workers holds the specialised step workers and the registry the
// engine looks them up in.
//
// A worker receives a Query built by the engine from case fields and answers
// with raw text that is expected to contain a JSON record. Workers keep no
// state between invocations.
package workers

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a worker capability.
type Kind string

const (
	KindExtraction    Kind = "extraction"
	KindScreening     Kind = "screening"
	KindRisk          Kind = "risk"
	KindMatching      Kind = "matching"
	KindNotification  Kind = "notification"
	KindSummarization Kind = "summarization"
)

// AllKinds lists every worker the engine needs.
var AllKinds = []Kind{KindExtraction, KindScreening, KindRisk, KindMatching, KindNotification, KindSummarization}

var ErrNotRegistered = errors.New("worker not registered")

// Query is one invocation request.
type Query struct {
	Kind  Kind
	Input Input
}

// Text renders the user message sent to the worker.
func (q Query) Text() string {
	if q.Input == nil {
		return ""
	}
	return q.Input.Prompt()
}

type Worker interface {
	Invoke(ctx context.Context, q Query) (string, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, q Query) (string, error)

func (f WorkerFunc) Invoke(ctx context.Context, q Query) (string, error) {
	return f(ctx, q)
}

// Static returns a worker that always answers raw.
func Static(raw string) Worker {
	return WorkerFunc(func(context.Context, Query) (string, error) { return raw, nil })
}

// Registry is the capability set handed to the engine.
type Registry struct {
	workers map[Kind]Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[Kind]Worker)}
}

func (r *Registry) Register(kind Kind, w Worker) *Registry {
	r.workers[kind] = w
	return r
}

func (r *Registry) Get(kind Kind) (Worker, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}
	w, ok := r.workers[kind]
	if !ok || w == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}
	return w, nil
}

// Missing lists the kinds that have no worker.
func (r *Registry) Missing() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if _, err := r.Get(k); err != nil {
			out = append(out, k)
		}
	}
	return out
}

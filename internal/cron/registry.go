package cron

import "context"

// Job is one unit of scheduled maintenance. Names label logs and metrics and
// must be unique within a Registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order.
type Registry struct {
	order []Job
	names map[string]struct{}
}

// NewRegistry ignores nil jobs and any job whose name is already taken.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register reports whether job was added.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, taken := r.names[job.Name()]; taken {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.order = append(r.order, job)
	return true
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.order...)
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, job := range r.order {
		out[i] = job.Name()
	}
	return out
}

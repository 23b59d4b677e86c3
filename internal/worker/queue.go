package worker

import "github.com/cuongbtq/chat-transcoder/internal/worker/domain"

// Queue is an unbounded FIFO of pending jobs.
// It is not safe for concurrent use; Pipeline guards it with its own mutex.
type Queue struct {
	jobs []*domain.Job
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Append adds a job to the tail
func (q *Queue) Append(job *domain.Job) {
	q.jobs = append(q.jobs, job)
}

// PopFront removes and returns the head, or false when the queue is empty
func (q *Queue) PopFront() (*domain.Job, bool) {
	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.jobs = nil
	}
	return job, true
}

// Len returns the number of pending jobs
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Snapshot returns copies of the pending jobs in processing order
func (q *Queue) Snapshot() []domain.Job {
	out := make([]domain.Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

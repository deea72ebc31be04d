package main

import (
	"context"
	"fmt"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/protocol"
)

// Pipeline: a batch of puts, a batch of reserves and a batch of deletes,
// one flush each. Jobs of equal priority are reserved in put order.
func (b *bench) pipeline(ctx context.Context, w *worker, c *counters) {
	conn := w.client.Connection()
	config := w.client.Config()

	puts := make([]protocol.Command, depth)
	for i := range puts {
		puts[i] = protocol.Put.CommandWithPayload(newPayload(payloadSize),
			fmt.Sprint(config.Priority), "0", fmt.Sprint(int64(config.TTR.Seconds())))
	}

	var put []beanstalk.Job
	err := b.timed(ctx, c, "put", depth, func() error {
		reqs, err := conn.Execute(ctx, puts...)
		if err != nil {
			return err
		}
		put, err = b.waitAll(reqs)
		return err
	})
	if err != nil {
		return
	}

	reserves := make([]protocol.Command, depth)
	for i := range reserves {
		reserves[i] = protocol.ReserveWithTimeout.Command("0")
	}

	var reserved []beanstalk.Job
	err = b.timed(context.Background(), c, "reserve", depth, func() error {
		reqs, err := conn.Execute(context.Background(), reserves...)
		if err != nil {
			return err
		}
		reserved, err = b.waitAll(reqs)
		return err
	})

	deletes := make([]protocol.Command, 0, depth)
	for i, job := range reserved {
		if job.ID == 0 {
			continue
		}
		if err == nil {
			b.verify(c, put[i].ID, job)
		}
		deletes = append(deletes, protocol.Delete.Command(fmt.Sprint(job.ID)))
	}
	if len(deletes) == 0 {
		return
	}

	b.timed(context.Background(), c, "delete", len(deletes), func() error {
		reqs, err := conn.Execute(context.Background(), deletes...)
		if err != nil {
			return err
		}
		_, err = b.waitDone(reqs)
		return err
	})
}

// waitDone waits for responses without a job.
func (b *bench) waitDone(reqs []*beanstalk.Request) (int, error) {
	ok := 0
	var first error
	for _, req := range reqs {
		if _, err := req.Wait(context.Background()); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		ok++
	}
	return ok, first
}

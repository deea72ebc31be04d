// Package beanstalk is a pipelined client for the beanstalkd work queue.
//
// A Connection sends any number of commands without waiting and matches
// each response to the oldest outstanding request: beanstalkd answers in
// order, one response per command. Responses are parsed incrementally as
// bytes arrive, so results never depend on how the network splits them.
//
//	conn, err := beanstalk.Dial(ctx, "127.0.0.1:11300", beanstalk.ConnectionOptions{})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	reqs, err := conn.Execute(ctx,
//	    protocol.Use.Command("emails"),
//	    protocol.Put.CommandWithPayload([]byte("hello"), "1024", "0", "60"),
//	)
//	for _, req := range reqs {
//	    frame, err := req.Wait(ctx)
//	    ...
//	}
//
// Client wraps a Connection with one method per command:
//
//	client, err := beanstalk.NewClient(ctx, beanstalk.DefaultConfig())
//	id, err := client.Put(ctx, []byte("hello"))
//	job, err := client.Reserve(ctx)
//	err = client.Delete(ctx, job.ID)
//
// # Errors
//
// A server answering with another status than the command expects (for
// example NOT_FOUND or TIMED_OUT) rejects that request only, with a
// protocol.StatusError whose message is the status token. Framing
// violations and network errors close the connection: every pending request
// is rejected with an error matching ErrConnectionClosed, and so is every
// later request.
package beanstalk

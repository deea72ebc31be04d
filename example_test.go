package beanstalk_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/protocol"
)

func ExampleNewClient() {
	ctx := context.Background()

	client, err := beanstalk.NewClient(ctx, beanstalk.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Use(ctx, "emails"); err != nil {
		log.Fatal(err)
	}

	id, err := client.Put(ctx, []byte("hello"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Inserted job %d\n", id)
}

func ExampleClient_ReserveWithTimeout() {
	ctx := context.Background()

	client, err := beanstalk.NewClient(ctx, beanstalk.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	job, err := client.ReserveWithTimeout(ctx, 5*time.Second)
	if errors.Is(err, protocol.ErrTimedOut) {
		fmt.Println("No job ready")
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Processing job %d: %s\n", job.ID, job.Body)

	if err := client.Delete(ctx, job.ID); err != nil {
		log.Fatal(err)
	}
}

// Commands sent with Execute share a single flush. Responses are matched in
// send order.
func ExampleConnection_Execute() {
	ctx := context.Background()

	conn, err := beanstalk.Dial(ctx, protocol.DefaultAddr, beanstalk.ConnectionOptions{})
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	reqs, err := conn.Execute(ctx,
		protocol.Use.Command("emails"),
		protocol.Put.CommandWithPayload([]byte("first"), "1000", "0", "60"),
		protocol.Put.CommandWithPayload([]byte("second"), "1000", "0", "60"),
	)
	if err != nil {
		log.Fatal(err)
	}

	for _, req := range reqs {
		frame, err := req.Wait(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(frame.Status, frame.Args)
	}
}

func ExampleNewCircuitBreakerConfig() {
	config := beanstalk.DefaultConfig()
	config.NewCircuitBreaker = beanstalk.NewCircuitBreakerConfig(
		1,              // requests allowed while half-open
		time.Minute,    // period clearing the counts while closed
		10*time.Second, // time spent open before half-open
	)

	client, err := beanstalk.NewClient(context.Background(), config)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	fmt.Println(client.Stats().CircuitBreakerState)
}

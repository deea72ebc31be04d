package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/protocol"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run commands interactively on one connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The session outlives any single command
		timeout = 0
		return withSession(cmd, runShell)
	},
}

func runShell(ctx context.Context, s *session) error {
	fmt.Println("Beanstalk CLI Tool")
	fmt.Println("==================")
	fmt.Println("Commands: use, put, reserve, delete, release, bury, touch, kick, peek, watch, ignore, tubes, stats, quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		if command == "quit" || command == "exit" {
			handleQuit(ctx, s.client)
			return nil
		}
		runLine(ctx, s.client, command, parts[1:])
	}

	return scanner.Err()
}

func runLine(ctx context.Context, client *beanstalk.Client, command string, args []string) {
	start := time.Now()
	var (
		out string
		err error
	)

	switch command {
	case "use":
		if len(args) != 1 {
			fmt.Println("Usage: use <tube>")
			return
		}
		out, err = client.Use(ctx, args[0])

	case "watch", "ignore":
		if len(args) != 1 {
			fmt.Printf("Usage: %s <tube>\n", command)
			return
		}
		var n int
		if command == "watch" {
			n, err = client.Watch(ctx, args[0])
		} else {
			n, err = client.Ignore(ctx, args[0])
		}
		out = fmt.Sprintf("Watching %d tubes", n)

	case "put":
		if len(args) == 0 {
			fmt.Println("Usage: put <body>")
			return
		}
		var id uint64
		id, err = client.Put(ctx, []byte(strings.Join(args, " ")))
		out = fmt.Sprintf("Inserted job %d", id)

	case "reserve":
		var job beanstalk.Job
		if len(args) == 1 {
			secs, perr := strconv.Atoi(args[0])
			if perr != nil {
				fmt.Printf("Invalid timeout: %v\n", perr)
				return
			}
			job, err = client.ReserveWithTimeout(ctx, time.Duration(secs)*time.Second)
		} else {
			job, err = client.Reserve(ctx)
		}
		out = formatJob(job)

	case "peek":
		if len(args) != 1 {
			fmt.Println("Usage: peek <id|ready|delayed|buried>")
			return
		}
		var job beanstalk.Job
		switch args[0] {
		case "ready":
			job, err = client.PeekReady(ctx)
		case "delayed":
			job, err = client.PeekDelayed(ctx)
		case "buried":
			job, err = client.PeekBuried(ctx)
		default:
			id, perr := strconv.ParseUint(args[0], 10, 64)
			if perr != nil {
				fmt.Printf("Invalid job id: %v\n", perr)
				return
			}
			job, err = client.Peek(ctx, id)
		}
		out = formatJob(job)

	case "delete", "release", "bury", "touch", "kick-job":
		if len(args) != 1 {
			fmt.Printf("Usage: %s <id>\n", command)
			return
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil {
			fmt.Printf("Invalid job id: %v\n", perr)
			return
		}
		err = jobAction(ctx, client, command, id)
		out = "OK"

	case "kick":
		bound := 1
		if len(args) == 1 {
			var perr error
			if bound, perr = strconv.Atoi(args[0]); perr != nil {
				fmt.Printf("Invalid bound: %v\n", perr)
				return
			}
		}
		var n int
		n, err = client.Kick(ctx, bound)
		out = fmt.Sprintf("Kicked %d jobs", n)

	case "tubes":
		var tubes []string
		tubes, err = client.ListTubes(ctx)
		out = strings.Join(tubes, "\n")

	case "stats":
		handleStats(ctx, client, args)
		return

	case "help":
		fmt.Println("Commands:")
		fmt.Println("  use <tube>                      - Put new jobs into tube")
		fmt.Println("  watch <tube> / ignore <tube>    - Change the reserved tubes")
		fmt.Println("  put <body>                      - Put a job")
		fmt.Println("  reserve [timeout_seconds]       - Reserve a job")
		fmt.Println("  delete|release|bury|touch <id>  - Act on a reserved job")
		fmt.Println("  kick [bound] / kick-job <id>    - Kick buried or delayed jobs")
		fmt.Println("  peek <id|ready|delayed|buried>  - Show a job")
		fmt.Println("  tubes                           - List tubes")
		fmt.Println("  stats [job <id> | tube <name>]  - Show statistics")
		fmt.Println("  quit                            - Exit the CLI")
		return

	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", command)
		return
	}

	duration := time.Since(start)
	if err != nil {
		printError(err, duration)
		return
	}
	fmt.Printf("%s (took %v)\n", out, duration)
}

func jobAction(ctx context.Context, client *beanstalk.Client, command string, id uint64) error {
	switch command {
	case "delete":
		return client.Delete(ctx, id)
	case "release":
		return client.Release(ctx, id, client.Config().Priority, 0)
	case "bury":
		return client.Bury(ctx, id, client.Config().Priority)
	case "touch":
		return client.Touch(ctx, id)
	default:
		return client.KickJob(ctx, id)
	}
}

func handleStats(ctx context.Context, client *beanstalk.Client, args []string) {
	start := time.Now()
	var (
		stats map[string]any
		err   error
	)

	switch {
	case len(args) == 0:
		stats, err = client.ServerStats(ctx)
	case len(args) == 2 && args[0] == "job":
		id, perr := strconv.ParseUint(args[1], 10, 64)
		if perr != nil {
			fmt.Printf("Invalid job id: %v\n", perr)
			return
		}
		stats, err = client.StatsJob(ctx, id)
	case len(args) == 2 && args[0] == "tube":
		stats, err = client.StatsTube(ctx, args[1])
	default:
		fmt.Println("Usage: stats [job <id> | tube <name>]")
		return
	}

	duration := time.Since(start)
	if err != nil {
		printError(err, duration)
		return
	}
	printStats(stats)

	s := client.Stats()
	fmt.Printf("Client: sent=%d completed=%d rejected=%d failed=%d breaker=%s (took %v)\n",
		s.Connection.Sent, s.Connection.Completed, s.Connection.Rejected, s.Connection.Failed,
		s.CircuitBreakerState, duration)
}

func handleQuit(ctx context.Context, client *beanstalk.Client) {
	if err := client.Quit(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Goodbye!")
}

func printError(err error, duration time.Duration) {
	var statusErr protocol.StatusError
	if errors.As(err, &statusErr) {
		fmt.Printf("%s (took %v)\n", string(statusErr), duration)
		return
	}
	fmt.Printf("Error: %v (took %v)\n", err, duration)
}

func formatJob(job beanstalk.Job) string {
	return fmt.Sprintf("Job %d (%d bytes): %s", job.ID, len(job.Body), job.Body)
}

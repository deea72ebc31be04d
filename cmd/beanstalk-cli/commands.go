package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/beanstalk"
)

var (
	priority     uint32
	putDelay     time.Duration
	releaseDelay time.Duration
	pauseDelay   time.Duration
	ttr          time.Duration
	wait         time.Duration
	peekKind     string
)

func init() {
	putCmd.Flags().Uint32Var(&priority, "priority", 1000, "Job priority, lower is more urgent")
	putCmd.Flags().DurationVar(&putDelay, "delay", 0, "Delay before the job is ready")
	putCmd.Flags().DurationVar(&ttr, "ttr", time.Minute, "Time to run once reserved")

	reserveCmd.Flags().DurationVar(&wait, "wait", -1, "Wait at most this long for a job (default: forever)")

	releaseCmd.Flags().Uint32Var(&priority, "priority", 1000, "New job priority")
	releaseCmd.Flags().DurationVar(&releaseDelay, "delay", 0, "Delay before the job is ready again")
	buryCmd.Flags().Uint32Var(&priority, "priority", 1000, "New job priority")

	peekCmd.Flags().StringVar(&peekKind, "state", "", "Peek the next job in a state instead of by id: ready, delayed or buried")

	pauseTubeCmd.Flags().DurationVar(&pauseDelay, "delay", time.Minute, "Pause duration")
}

var putCmd = &cobra.Command{
	Use:   "put [body]",
	Short: "Put a job, reading the body from stdin when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body []byte
		if len(args) == 1 {
			body = []byte(args[0])
		} else {
			var err error
			if body, err = io.ReadAll(os.Stdin); err != nil {
				return err
			}
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := s.client.PutWithOptions(ctx, body, beanstalk.PutOptions{Priority: priority, Delay: putDelay, TTR: ttr})
			if err != nil {
				return err
			}
			fmt.Printf("INSERTED %d\n", id)
			return nil
		})
	},
}

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Reserve a job and print its body",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			var (
				job beanstalk.Job
				err error
			)
			if wait >= 0 {
				job, err = s.client.ReserveWithTimeout(ctx, wait)
			} else {
				job, err = s.client.Reserve(ctx)
			}
			if err != nil {
				return err
			}
			printJob(job)
			return nil
		})
	},
}

var deleteCmd = jobCommand("delete", "Delete a job", func(ctx context.Context, c *beanstalk.Client, id uint64) error {
	return c.Delete(ctx, id)
})

var releaseCmd = jobCommand("release", "Release a reserved job", func(ctx context.Context, c *beanstalk.Client, id uint64) error {
	return c.Release(ctx, id, priority, releaseDelay)
})

var buryCmd = jobCommand("bury", "Bury a reserved job", func(ctx context.Context, c *beanstalk.Client, id uint64) error {
	return c.Bury(ctx, id, priority)
})

var touchCmd = jobCommand("touch", "Extend the time to run of a reserved job", func(ctx context.Context, c *beanstalk.Client, id uint64) error {
	return c.Touch(ctx, id)
})

var kickJobCmd = jobCommand("kick-job", "Kick a buried or delayed job", func(ctx context.Context, c *beanstalk.Client, id uint64) error {
	return c.KickJob(ctx, id)
})

// jobCommand builds a command taking a job id and printing the status.
func jobCommand(name, short string, fn func(ctx context.Context, c *beanstalk.Client, id uint64) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := fn(ctx, s.client, id); err != nil {
					return err
				}
				fmt.Println("OK")
				return nil
			})
		},
	}
}

var kickCmd = &cobra.Command{
	Use:   "kick <bound>",
	Short: "Kick up to bound jobs of the tube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bound, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bound: %w", err)
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			n, err := s.client.Kick(ctx, bound)
			if err != nil {
				return err
			}
			fmt.Printf("KICKED %d\n", n)
			return nil
		})
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek [id]",
	Short: "Show a job without reserving it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (peekKind != "") {
			return fmt.Errorf("pass either a job id or --state")
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			var (
				job beanstalk.Job
				err error
			)
			switch peekKind {
			case "":
				var id uint64
				if id, err = strconv.ParseUint(args[0], 10, 64); err != nil {
					return fmt.Errorf("invalid job id: %w", err)
				}
				job, err = s.client.Peek(ctx, id)
			case "ready":
				job, err = s.client.PeekReady(ctx)
			case "delayed":
				job, err = s.client.PeekDelayed(ctx)
			case "buried":
				job, err = s.client.PeekBuried(ctx)
			default:
				return fmt.Errorf("unknown state %q", peekKind)
			}
			if err != nil {
				return err
			}
			printJob(job)
			return nil
		})
	},
}

var pauseTubeCmd = &cobra.Command{
	Use:   "pause-tube <tube>",
	Short: "Pause reservations from a tube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			if err := s.client.PauseTube(ctx, args[0], pauseDelay); err != nil {
				return err
			}
			fmt.Println("PAUSED")
			return nil
		})
	},
}

var listTubesCmd = listCommand("list-tubes", "List all tubes", (*beanstalk.Client).ListTubes)

var listTubesWatchedCmd = listCommand("list-tubes-watched", "List the watched tubes", (*beanstalk.Client).ListTubesWatched)

func listCommand(name, short string, fn func(*beanstalk.Client, context.Context) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tubes, err := fn(s.client, ctx)
				if err != nil {
					return err
				}
				for _, t := range tubes {
					fmt.Println(t)
				}
				return nil
			})
		},
	}
}

var listTubeUsedCmd = &cobra.Command{
	Use:   "list-tube-used",
	Short: "Show the used tube",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			used, err := s.client.ListTubeUsed(ctx)
			if err != nil {
				return err
			}
			fmt.Println(used)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			stats, err := s.client.ServerStats(ctx)
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		})
	},
}

var statsJobCmd = &cobra.Command{
	Use:   "stats-job <id>",
	Short: "Show job statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id: %w", err)
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			stats, err := s.client.StatsJob(ctx, id)
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		})
	},
}

var statsTubeCmd = &cobra.Command{
	Use:   "stats-tube <tube>",
	Short: "Show tube statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			stats, err := s.client.StatsTube(ctx, args[0])
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		})
	},
}

func printJob(job beanstalk.Job) {
	fmt.Printf("id: %d\n", job.ID)
	fmt.Printf("size: %d\n", len(job.Body))
	fmt.Printf("%s\n", job.Body)
}

func printStats(stats map[string]any) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%s: %v\n", k, stats[k])
	}
}

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/internal/env"
)

var (
	// Overrides of the BEANSTALK_* environment
	addr    string
	tube    string
	timeout time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&addr, "addr", "a", "", "The beanstalkd server address (default $BEANSTALK_ADDR)")
	flags.StringVarP(&tube, "tube", "t", "", "The tube to use and watch (default $BEANSTALK_TUBE)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Maximum duration of a command, 0 for none")

	rootCmd.AddCommand(
		putCmd,
		reserveCmd,
		deleteCmd,
		releaseCmd,
		buryCmd,
		touchCmd,
		kickCmd,
		kickJobCmd,
		peekCmd,
		pauseTubeCmd,
		listTubesCmd,
		listTubesWatchedCmd,
		listTubeUsedCmd,
		statsCmd,
		statsJobCmd,
		statsTubeCmd,
		shellCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:   "beanstalk-cli",
	Short: "Run beanstalkd commands",
	Long: `Run beanstalkd commands

The connection is configured with BEANSTALK_* environment variables, read
from .env.local when present, and the flags below.

Usage
	beanstalk-cli put "hello" --tube emails
	beanstalk-cli reserve --tube emails

`,
	SilenceUsage: true,
}

// session is a client bound to the selected tube.
type session struct {
	client *beanstalk.Client
	log    *zap.Logger
}

// withSession connects, selects the tube and runs fn with a context bounded
// by --timeout. A zero timeout means no bound.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) (err error) {
	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if addr != "" {
		conf.Addr = addr
	}
	if tube != "" {
		conf.Tube = tube
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	clientConfig := conf.ClientConfig()
	clientConfig.Logger = log

	client, err := beanstalk.NewClient(ctx, clientConfig)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, client.Close())
	}()

	if conf.Tube != "default" {
		if err := selectTube(ctx, client, conf.Tube); err != nil {
			return err
		}
	}

	return fn(ctx, &session{client: client, log: log})
}

// selectTube uses and watches tube, and stops watching the default tube.
func selectTube(ctx context.Context, client *beanstalk.Client, tube string) error {
	if _, err := client.Use(ctx, tube); err != nil {
		return err
	}
	if _, err := client.Watch(ctx, tube); err != nil {
		return err
	}
	_, err := client.Ignore(ctx, "default")
	return err
}

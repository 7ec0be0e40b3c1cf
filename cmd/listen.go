package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen [frequency_khz]",
	Short: "Tune a station and print its RDS data until interrupted.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func listen(_ *cobra.Command, args []string) error {
	freq := cfg.Receiver.Frequency
	if len(args) == 1 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		freq = uint32(v)
	}

	status := newStatusPrinter(os.Stdout)
	s, err := newStation(status.event)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.receiver.Close(); err != nil {
			log.Warnw("closing receiver", "error", err)
		}
	}()

	work := func() {
		s.startPolling()
		if err := s.tune(context.Background(), freq); err != nil {
			log.Errorw("tuning failed", "frequency", freq, "error", err)
		}
	}

	robot := s.robot(work)
	err = robot.Start()
	if s.poller != nil {
		s.poller.Stop()
	}
	return err
}

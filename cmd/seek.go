package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fmreceiver/radio"
)

// oneShotTimeout bounds a seek or a complete scan.
const oneShotTimeout = 2 * time.Minute

var seekFlags = struct {
	down *bool
}{}

var seekCmd = &cobra.Command{
	Use:   "seek",
	Short: "Seek the next station from the configured frequency.",
	Args:  cobra.NoArgs,
	RunE:  seek,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the band and list every valid channel.",
	Args:  cobra.NoArgs,
	RunE:  scan,
}

func init() {
	seekFlags.down = seekCmd.Flags().Bool("down", false, "Seek towards lower frequencies")
	rootCmd.AddCommand(seekCmd, scanCmd)
}

// oneShot powers the receiver on, runs f and powers it off again.
func oneShot(f func(ctx context.Context, s *station) error) (err error) {
	status := newStatusPrinter(os.Stdout)
	s, err := newStation(status.event)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := s.stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	if err = s.start(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()
	return f(ctx, s)
}

func seek(*cobra.Command, []string) error {
	dir := radio.SeekUp
	if *seekFlags.down {
		dir = radio.SeekDown
	}
	return oneShot(func(ctx context.Context, s *station) error {
		if err := s.tune(ctx, cfg.Receiver.Frequency); err != nil {
			return err
		}
		p, err := s.receiver.Seek(dir)
		if err != nil {
			return err
		}
		ev, err := p.Wait(ctx)
		if err != nil {
			return err
		}
		switch ev.Status {
		case radio.StatusSuccess:
			return nil
		case radio.StatusSeekReachedBandLimit:
			fmt.Println("no station before the band limit")
			return nil
		}
		return fmt.Errorf("seek: %s", ev.Status)
	})
}

func scan(*cobra.Command, []string) error {
	return oneShot(func(ctx context.Context, s *station) error {
		_, err := wait(ctx, s.receiver.CompleteScan)
		return err
	})
}

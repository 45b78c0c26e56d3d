package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
)

func parseDayArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || !stage.Valid(n) {
		return 0, fmt.Errorf("day must be a number between %d and %d", stage.MinStage, stage.MaxStage)
	}
	return n, nil
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local progress and the server's unlocked day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				unlocked, err := s.journey.Sync(ctx)
				if err != nil {
					fmt.Fprintf(out, "server: unreachable (%v)\n", err)
				} else {
					fmt.Fprintf(out, "server: day %d unlocked\n", unlocked)
				}
				rec, err := s.journey.Record(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "local: current day %d, completed %v\n", rec.CurrentDay, rec.CompletedDays)
				for n := stage.MinStage; n <= stage.MaxStage; n++ {
					open, err := s.journey.CanAccess(ctx, n)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %d %-16s %s\n", n, stage.Name(n), dayState(rec.IsDayCompleted(n), open))
				}
				return nil
			})
		},
	}
}

func dayState(done, open bool) string {
	switch {
	case done:
		return "completed"
	case open:
		return "open"
	default:
		return "locked"
	}
}

func newCompleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <day>",
		Short: "Mark a day complete and unlock the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDayArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				if _, err := s.journey.CompleteDay(ctx, day); err != nil {
					return err
				}
				unlocked, _ := s.journey.ServerUnlocked()
				fmt.Fprintf(cmd.OutOrStdout(), "completed day %d (%s), day %d unlocked\n", day, stage.Name(day), unlocked)
				return nil
			})
		},
	}
}

func newCanAccessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "can-access <day>",
		Short: "Report whether a day can be opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDayArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				// Unknown server state leaves the local record in charge.
				_, _ = s.journey.Sync(ctx)
				open, err := s.journey.CanAccess(ctx, day)
				if err != nil {
					return err
				}
				state := "locked"
				if open {
					state = "open"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "day %d: %s\n", day, state)
				return nil
			})
		},
	}
}

func newDaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "days",
		Short: "List the days of the journey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today := stage.CalendarDay(time.Now())
			for n := stage.MinStage; n <= stage.MaxStage; n++ {
				marker := ""
				if n == today {
					marker = "  <- today"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %-12s %s%s\n", n, stage.Date(n), stage.Name(n), marker)
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/luciancaetano/socialnet"
)

// drain prints every element of s until it ends, fails or ctx is done.
func drain[T any](ctx context.Context, p *printer, s socialnet.Stream[T], err error) (any, error) {
	if err != nil {
		return nil, err
	}
	for v, err := range socialnet.All(ctx, s) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, nil
			}
			return nil, err
		}
		if err := p.print(v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live updates until interrupted",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "connectivity",
			Short: "Watch friends going online and offline",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
					s, err := c.SubscribeToFriendConnectivityUpdates(ctx)
					return drain(ctx, a.printer, s, err)
				})
			},
		},
		&cobra.Command{
			Use:   "friendships",
			Short: "Watch friendship requests and transitions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
					s, err := c.SubscribeToFriendshipUpdates(ctx)
					return drain(ctx, a.printer, s, err)
				})
			},
		},
		&cobra.Command{
			Use:   "blocks",
			Short: "Watch users blocking and unblocking you",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
					s, err := c.SubscribeToBlockUpdates(ctx)
					return drain(ctx, a.printer, s, err)
				})
			},
		},
	)
	return cmd
}

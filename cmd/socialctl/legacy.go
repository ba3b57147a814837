package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/friendships"
)

// collect reads every page of a users stream.
func collect(ctx context.Context, s socialnet.Stream[[]contract.User], err error) (any, error) {
	if err != nil {
		return nil, err
	}
	users := []contract.User{}
	for page, err := range socialnet.All(ctx, s) {
		if err != nil {
			return nil, err
		}
		users = append(users, page...)
	}
	return users, nil
}

type legacyTransition func(socialnet.LegacyClient, context.Context, string) (friendships.FriendshipEventResponse, error)

func (a *app) legacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Operations of the bearer-token friendships contract",
		Long: `The legacy contract logs in to the synapse server first and attaches the
resulting token to every request. It needs --synapse-url.`,
	}

	transition := func(use, short string, fn legacyTransition) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <address>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
					return fn(c, ctx, args[0])
				})
			},
		}
	}

	var message string
	request := &cobra.Command{
		Use:   "request <address>",
		Short: "Send a friendship request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
				return c.RequestFriendship(ctx, args[0], message)
			})
		},
	}
	request.Flags().StringVarP(&message, "message", "m", "", "message attached to the request")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "friends",
			Short: "List your friends",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
					s, err := c.GetFriends(ctx)
					return collect(ctx, s, err)
				})
			},
		},
		&cobra.Command{
			Use:   "mutual <address>",
			Short: "List the friends you share with address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
					s, err := c.GetMutualFriends(ctx, args[0])
					return collect(ctx, s, err)
				})
			},
		},
		&cobra.Command{
			Use:   "requests",
			Short: "List incoming and outgoing friendship requests",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
					return c.GetRequestEvents(ctx)
				})
			},
		},
		request,
		transition("accept", "Accept a friendship request", socialnet.LegacyClient.AcceptFriendshipRequest),
		transition("reject", "Reject a friendship request", socialnet.LegacyClient.RejectFriendshipRequest),
		transition("cancel", "Cancel a friendship request you sent", socialnet.LegacyClient.CancelFriendshipRequest),
		&cobra.Command{
			Use:   "watch",
			Short: "Print friendship events until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLegacy(cmd.Context(), func(ctx context.Context, c socialnet.LegacyClient) (any, error) {
					s, err := c.SubscribeToFriendshipRequests(ctx)
					return drain(ctx, a.printer, s, err)
				})
			},
		},
	)
	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/socialv2"
)

type pageFlags struct {
	limit  int
	offset int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.limit, "limit", 0, "page size, 0 returns everything")
	cmd.Flags().IntVar(&p.offset, "offset", 0, "index of the first result")
}

func (p *pageFlags) pagination() *contract.Pagination {
	if p.limit <= 0 {
		return nil
	}
	return &contract.Pagination{Limit: p.limit, Offset: p.offset}
}

func (a *app) friendsCmd() *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "List your friends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetFriends(ctx, page.pagination())
			})
		},
	}
	page.register(cmd)
	return cmd
}

func (a *app) mutualCmd() *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "mutual <address>",
		Short: "List the friends you share with address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetMutualFriends(ctx, args[0], page.pagination())
			})
		},
	}
	page.register(cmd)
	return cmd
}

func (a *app) requestsCmd() *cobra.Command {
	var (
		page pageFlags
		sent bool
	)
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List pending friendship requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				if sent {
					return c.GetSentFriendshipRequests(ctx, page.pagination())
				}
				return c.GetPendingFriendshipRequests(ctx, page.pagination())
			})
		},
	}
	page.register(cmd)
	cmd.Flags().BoolVar(&sent, "sent", false, "list the requests you sent instead of the ones you received")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <address>",
		Short: "Show the friendship status with address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetFriendshipStatus(ctx, args[0])
			})
		},
	}
}

func (a *app) requestCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "request <address>",
		Short: "Send a friendship request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.RequestFriendship(ctx, args[0], message)
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message attached to the request")
	return cmd
}

type transition func(socialnet.SocialClient, context.Context, string) (socialv2.UpsertFriendshipAccepted, error)

func (a *app) transitionCmd(use, short string, fn transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return fn(c, ctx, args[0])
			})
		},
	}
}

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and update social settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show your social settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetSocialSettings(ctx)
			})
		},
	}

	var privateMessages, blockedMessages string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update your social settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := settingsPayload(privateMessages, blockedMessages)
			if err != nil {
				return err
			}
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.UpsertSocialSettings(ctx, payload)
			})
		},
	}
	set.Flags().StringVar(&privateMessages, "private-messages", "", "who may message you: all, friends")
	set.Flags().StringVar(&blockedMessages, "blocked-messages", "", "messages of blocked users: show, hide")

	private := &cobra.Command{
		Use:   "private-messages <address>...",
		Short: "Show the private message settings of users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetPrivateMessagesSettings(ctx, args)
			})
		},
	}

	cmd.AddCommand(get, set, private)
	return cmd
}

func settingsPayload(privateMessages, blockedMessages string) (socialv2.UpsertSocialSettingsPayload, error) {
	var payload socialv2.UpsertSocialSettingsPayload

	switch privateMessages {
	case "":
	case "all":
		v := socialv2.PrivateMessagesAll
		payload.PrivateMessagesPrivacy = &v
	case "friends":
		v := socialv2.PrivateMessagesOnlyFriends
		payload.PrivateMessagesPrivacy = &v
	default:
		return payload, fmt.Errorf("invalid --private-messages %q", privateMessages)
	}

	switch blockedMessages {
	case "":
	case "show":
		v := socialv2.ShowMessages
		payload.BlockedUsersMessagesVisibility = &v
	case "hide":
		v := socialv2.DoNotShowMessages
		payload.BlockedUsersMessagesVisibility = &v
	default:
		return payload, fmt.Errorf("invalid --blocked-messages %q", blockedMessages)
	}

	if payload.PrivateMessagesPrivacy == nil && payload.BlockedUsersMessagesVisibility == nil {
		return payload, fmt.Errorf("nothing to update")
	}
	return payload, nil
}

func (a *app) blockingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage blocked users",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show who you block and who blocks you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetBlockingStatus(ctx)
			})
		},
	}

	var page pageFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List the profiles you block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.GetBlockedUsers(ctx, page.pagination())
			})
		},
	}
	page.register(list)

	block := &cobra.Command{
		Use:   "add <address>",
		Short: "Block a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.BlockUser(ctx, args[0])
			})
		},
	}

	unblock := &cobra.Command{
		Use:   "remove <address>",
		Short: "Unblock a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSocial(cmd.Context(), func(ctx context.Context, c socialnet.SocialClient) (any, error) {
				return c.UnblockUser(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(status, list, block, unblock)
	return cmd
}

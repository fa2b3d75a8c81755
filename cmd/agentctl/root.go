package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rental-agents-service/internal/pkg/jwt"

	"github.com/spf13/cobra"
)

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "agentctl",
		Short:         "Operate on rental agent accounts",
		Long:          "agentctl runs maintenance jobs against the agent store: subscription expiry, referral code backfill and eligibility checks.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newExpireCmd(open),
		newBackfillCmd(open),
		newEligibilityCmd(open),
		newIssueTokenCmd(open),
	)
	return rootCmd
}

func withRuntime(open opener, fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, rt, args)
	}
}

func newExpireCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-subscriptions",
		Short: "Restamp lapsed trials and subscriptions as expired",
		Args:  cobra.NoArgs,
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			n, err := rt.services.Subscriptions.ExpireLapsed(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "expired %d subscriptions\n", n)
			return err
		}),
	}
}

func newBackfillCmd(open opener) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "backfill-referral-codes",
		Short: "Assign referral codes to accounts created without one",
		Args:  cobra.NoArgs,
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			n, err := rt.services.Referrals.BackfillReferralCodes(cmd.Context(), batch)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "assigned %d referral codes\n", n)
			return err
		}),
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "accounts loaded per batch")
	return cmd
}

func newEligibilityCmd(open opener) *cobra.Command {
	var (
		at     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "eligibility <agent-id>",
		Short: "Explain whether an agent may list right now",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *runtime, args []string) error {
			agentID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || agentID <= 0 {
				return fmt.Errorf("invalid agent id %q", args[0])
			}

			when := time.Now().UTC()
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			result, err := rt.services.Agents.EligibilityAt(cmd.Context(), agentID, when)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			verdict := "denied"
			if result.Allowed {
				verdict = "allowed"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "agent %d: %s (%s) %s\n", result.AgentID, verdict, result.Reason, result.Message)
			return err
		}),
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// newIssueTokenCmd mints an access token for local testing. It needs
// JWT_PRIVATE_KEY_PATH, which production deployments do not set.
func newIssueTokenCmd(open opener) *cobra.Command {
	var (
		userID int64
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint an access token signed with the configured private key",
		Args:  cobra.NoArgs,
		RunE: withRuntime(open, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id is required")
			}
			if rt.cfg.JWT.PrivPath == "" {
				return fmt.Errorf("JWT_PRIVATE_KEY_PATH is not set")
			}
			signer, err := jwt.LoadSigner(rt.cfg.JWT)
			if err != nil {
				return err
			}
			token, _, err := signer.AccessToken(userID, roles, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		}),
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "identity the token is issued to")
	cmd.Flags().StringSliceVar(&roles, "role", []string{jwt.RoleAgent}, "roles to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/usecase"
)

func createCmd() *cobra.Command {
	var (
		days  int
		uses  int
		notes string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key (0 days or 0 uses means unlimited)",
		Args:  cobra.NoArgs,
		RunE: runWithEnv(func(ctx context.Context, e *env, _ []string) error {
			rec, err := e.credentials.Create(ctx, usecase.CreateParams{
				Days:      days,
				MaxUses:   uses,
				Notes:     notes,
				CreatedBy: model.CreatedByAdminAPI,
			})
			if err != nil {
				return err
			}
			if e.asJSON {
				return e.printJSON(rec)
			}
			fmt.Fprintln(e.out, rec.Key)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "validity in days")
	cmd.Flags().IntVarP(&uses, "uses", "u", 0, "maximum verifications")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free-form note")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keys newest first with stats",
		Args:  cobra.NoArgs,
		RunE: runWithEnv(func(ctx context.Context, e *env, _ []string) error {
			recs, stats, err := e.credentials.List(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(recs) > limit {
				recs = recs[:limit]
			}
			if e.asJSON {
				return e.printJSON(map[string]interface{}{"keys": recs, "stats": stats})
			}
			w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tACTIVE\tEXPIRES\tUSES\tCREATED BY")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", r.Key, r.Active, expiryText(r.ExpiresAt), usesText(r), r.CreatedBy)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "\ntotal=%d active=%d inactive=%d expired=%d uses=%d\n",
				stats.Total, stats.Active, stats.Inactive, stats.Expired, stats.TotalUses)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show at most N keys (0 = all)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: runWithEnv(func(ctx context.Context, e *env, args []string) error {
			rec, err := e.credentials.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, "deleted", rec.Key)
			return nil
		}),
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke KEY",
		Short: "Deactivate a key without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: runWithEnv(func(ctx context.Context, e *env, args []string) error {
			rec, err := e.credentials.Revoke(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, "revoked", rec.Key)
			return nil
		}),
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify KEY",
		Short: "Redeem one use of a key",
		Args:  cobra.ExactArgs(1),
		RunE: runWithEnv(func(ctx context.Context, e *env, args []string) error {
			res, err := e.credentials.Verify(ctx, args[0])
			if err != nil {
				return err
			}
			if e.asJSON {
				return e.printJSON(res)
			}
			remaining := "unlimited"
			if res.RemainingUses != nil {
				remaining = strconv.Itoa(*res.RemainingUses)
			}
			fmt.Fprintf(e.out, "valid: remaining=%s expires=%s\n", remaining, expiryText(res.ExpiresAt))
			return nil
		}),
	}
}

func expiryText(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func usesText(r *model.CredentialRecord) string {
	if r.MaxUses == nil {
		return strconv.Itoa(r.CurrentUses) + "/∞"
	}
	return strconv.Itoa(r.CurrentUses) + "/" + strconv.Itoa(*r.MaxUses)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vip-key-shop/internal/domain/model"
)

func vpnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpn",
		Short: "Manage the VPN profile stock",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stock",
		Short: "Show available and sold counts",
		Args:  cobra.NoArgs,
		RunE: runWithEnv(func(ctx context.Context, e *env, _ []string) error {
			st, err := e.vpn.Stock(ctx)
			if err != nil {
				return err
			}
			if e.asJSON {
				return e.printJSON(st)
			}
			fmt.Fprintf(e.out, "available=%d sold=%d\n", st.Available, st.Sold)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Append profiles from a JSON array of {id, qr_image, conf}",
		Args:  cobra.ExactArgs(1),
		RunE: runWithEnv(func(ctx context.Context, e *env, args []string) error {
			items, err := readVPNItems(args[0])
			if err != nil {
				return err
			}
			n, err := e.vpn.Import(ctx, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "imported %d profiles\n", n)
			return nil
		}),
	})
	return cmd
}

func readVPNItems(path string) ([]*model.VPNItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []*model.VPNItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return items, nil
}

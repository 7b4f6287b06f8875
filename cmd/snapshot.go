package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/pkg/clients/ethereum"
	"github.com/propshare-labs/distributor/pkg/eligibility"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/numbers"
	"github.com/propshare-labs/distributor/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type snapshotHolderRow struct {
	Holder string `csv:"holder"`
}

// snapshotCmd reads holder balances from the token contract at a pinned
// block, derives the proportional eligibility set and prints the Merkle
// commitment. The candidate holder list comes from a CSV with a `holder`
// column; zero-balance holders are dropped by the snapshotter.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Snapshot on-chain balances and build a Merkle commitment",
	RunE: func(cmd *cobra.Command, args []string) error {
		initSnapshotCmd(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		//nolint:errcheck
		defer l.Sync()

		tokenAddress := viper.GetString("token")
		holdersPath := viper.GetString("holders")
		totalString := viper.GetString("amount")
		blockNumber := viper.GetUint64("block_number")

		if !utils.IsValidHexAddress(tokenAddress) {
			return fmt.Errorf("invalid token address '%s'", tokenAddress)
		}
		if holdersPath == "" || totalString == "" {
			return fmt.Errorf("both --holders and --amount are required")
		}
		total, err := numbers.NumericStringToBig(totalString)
		if err != nil || total.Sign() <= 0 {
			return fmt.Errorf("amount '%s' must be a positive integer", totalString)
		}
		if cfg.EthereumRpcConfig.BaseUrl == "" {
			return fmt.Errorf("ethereum rpc url is required")
		}

		file, err := os.Open(holdersPath)
		if err != nil {
			return err
		}
		defer file.Close()

		rows := make([]*snapshotHolderRow, 0)
		if err := gocsv.UnmarshalFile(file, &rows); err != nil {
			return err
		}
		holders := make([]gethcommon.Address, 0, len(rows))
		for i, row := range rows {
			if !utils.IsValidHexAddress(row.Holder) {
				return fmt.Errorf("row %d: invalid holder address '%s'", i+1, row.Holder)
			}
			holders = append(holders, gethcommon.HexToAddress(row.Holder))
		}

		client, err := ethereum.NewClient(cfg.EthereumRpcConfig.BaseUrl, l)
		if err != nil {
			return err
		}

		snapshotter := eligibility.NewSnapshotter(client, l)
		snapshot, err := snapshotter.TakeSnapshot(ctx, gethcommon.HexToAddress(tokenAddress), holders, blockNumber)
		if err != nil {
			return err
		}

		entries, err := eligibility.ComputeEntries(snapshot, total)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no holders held a positive balance at block %d", blockNumber)
		}

		tree, err := merkle.NewTree(entries)
		if err != nil {
			return err
		}

		l.Sugar().Infow("Built distribution tree from on-chain snapshot",
			zap.String("token", tokenAddress),
			zap.Uint64("blockNumber", blockNumber),
			zap.Int("holders", len(entries)),
		)

		output := &treeOutput{
			MerkleRoot:  utils.ConvertBytesToString(tree.Root()),
			TotalAmount: total.String(),
			Entries:     make([]treeOutputEntry, 0, len(entries)),
		}
		for _, entry := range entries {
			output.Entries = append(output.Entries, treeOutputEntry{
				Holder: entry.Holder.Hex(),
				Amount: entry.Amount.String(),
			})
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	},
}

func initSnapshotCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/pkg/eligibility"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/numbers"
	"github.com/propshare-labs/distributor/pkg/utils"
	progressbar "github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func initTreeCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

type treeOutputEntry struct {
	Holder string   `json:"holder"`
	Amount string   `json:"amount"`
	Proof  []string `json:"proof"`
}

type treeOutput struct {
	MerkleRoot  string            `json:"merkleRoot"`
	TotalAmount string            `json:"totalAmount"`
	Entries     []treeOutputEntry `json:"entries"`
}

// treeCmd builds the eligibility set and Merkle commitment offline from a
// holder balance CSV, so the root can be reviewed before a distribution is
// created against it.
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Build a Merkle commitment from a holder balance CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		initTreeCmd(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			log.Fatalln(err)
		}
		//nolint:errcheck
		defer l.Sync()

		inputPath := viper.GetString("input")
		totalString := viper.GetString("amount")
		if inputPath == "" || totalString == "" {
			return fmt.Errorf("both --input and --amount are required")
		}

		total, err := numbers.NumericStringToBig(totalString)
		if err != nil || total.Sign() <= 0 {
			return fmt.Errorf("amount '%s' must be a positive integer", totalString)
		}

		snapshot, err := eligibility.LoadSnapshotFromCsv(inputPath)
		if err != nil {
			return err
		}

		entries, err := eligibility.ComputeEntries(snapshot, total)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("snapshot '%s' contains no holders with a positive balance", inputPath)
		}

		tree, err := merkle.NewTree(entries)
		if err != nil {
			return err
		}

		l.Sugar().Infow("Built distribution tree",
			zap.String("input", inputPath),
			zap.Int("holders", len(entries)),
			zap.String("totalAmount", total.String()),
		)

		output := &treeOutput{
			MerkleRoot:  utils.ConvertBytesToString(tree.Root()),
			TotalAmount: total.String(),
			Entries:     make([]treeOutputEntry, 0, len(entries)),
		}

		bar := progressbar.Default(int64(len(entries)), "generating proofs")
		for _, entry := range entries {
			proof, err := tree.Proof(entry.Holder)
			if err != nil {
				return err
			}
			output.Entries = append(output.Entries, treeOutputEntry{
				Holder: strings.ToLower(entry.Holder.Hex()),
				Amount: entry.Amount.String(),
				Proof: utils.Map(proof, func(sibling []byte, i uint64) string {
					return utils.ConvertBytesToString(sibling)
				}),
			})
			//nolint:errcheck
			bar.Add(1)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	},
}

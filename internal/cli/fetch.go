package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/provider"
)

func newBlockCmd() *cobra.Command {
	var partial bool
	cmd := &cobra.Command{
		Use:   "block <number>",
		Short: "Show a block",
		Long: `Show a block by number. By default the block is fetched with full transaction
bodies; --partial fetches only transaction hashes. The two forms are cached
separately.`,
		Example: `  chaincache block 19000000
  chaincache block 0x121eac0 --partial -o json`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseUint("block", args[0])
			if err != nil {
				return err
			}
			q := chaindata.BlockQuery{BlockNo: n}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				if partial {
					b, err := p.GetPartialBlock(ctx, q)
					if err != nil {
						return view{}, err
					}
					return partialBlockView(b), nil
				}
				b, err := p.GetFullBlock(ctx, q)
				if err != nil {
					return view{}, err
				}
				return blockView(b), nil
			})
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "fetch transaction hashes only")
	return cmd
}

func newReceiptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipts <block>",
		Short: "Show every receipt of a block",
		Long:  `Show the receipts of every transaction in a block.`,
		Example: `  chaincache receipts 19000000
  chaincache receipts 19000000 -o json`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseUint("block", args[0])
			if err != nil {
				return err
			}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				r, err := p.GetBlockReceipts(ctx, chaindata.BlockQuery{BlockNo: n})
				if err != nil {
					return view{}, err
				}
				return receiptsView(r), nil
			})
		},
	}
}

func newTxCmd() *cobra.Command {
	var block string
	cmd := &cobra.Command{
		Use:   "tx <hash>",
		Short: "Show a transaction",
		Long: `Show a transaction by hash.

With --block, the block is looked up first (from the cache, or fetched and
cached) and searched for the transaction, which avoids a separate lookup when
the block is already known.`,
		Example: `  chaincache tx 0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060
  chaincache tx 0x5c50...2060 --block 46147`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseHash("hash", args[0])
			if err != nil {
				return err
			}
			q := chaindata.TxQuery{TxHash: hash}
			if cmd.Flags().Changed("block") {
				n, err := parseUint("block", block)
				if err != nil {
					return err
				}
				q = chaindata.TxInBlock(hash, n)
			}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				tx, err := p.GetTransaction(ctx, q)
				if err != nil {
					return view{}, err
				}
				return txView(tx), nil
			})
		},
	}
	cmd.Flags().StringVar(&block, "block", "", "block expected to contain the transaction")
	return cmd
}

// newAccountCmd builds the commands that read one account field at a block.
func newAccountCmd(use, short, long, example string, get func(context.Context, provider.Provider, chaindata.AccountQuery) (view, error)) *cobra.Command {
	var block string
	cmd := &cobra.Command{
		Use:     use + " <address>",
		Short:   short,
		Long:    long,
		Example: example,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			n, err := parseUint("block", block)
			if err != nil {
				return err
			}
			q := chaindata.AccountQuery{Address: addr, BlockNo: n}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				return get(ctx, p, q)
			})
		},
	}
	cmd.Flags().StringVar(&block, "block", "", "block number to read the account at")
	_ = cmd.MarkFlagRequired("block")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	return newAccountCmd("balance", "Show an account balance",
		`Show the balance of an account at a block, in wei and ether.`,
		`  chaincache balance 0x742d35Cc6634C0532925a3b844Bc454e4438f44e --block 19000000`,
		func(ctx context.Context, p provider.Provider, q chaindata.AccountQuery) (view, error) {
			wei, err := p.GetBalance(ctx, q)
			if err != nil {
				return view{}, err
			}
			return balanceView(q, wei), nil
		})
}

func newNonceCmd() *cobra.Command {
	return newAccountCmd("nonce", "Show an account transaction count",
		`Show the number of transactions sent from an account as of a block.`,
		`  chaincache nonce 0x742d35Cc6634C0532925a3b844Bc454e4438f44e --block 19000000`,
		func(ctx context.Context, p provider.Provider, q chaindata.AccountQuery) (view, error) {
			n, err := p.GetTransactionCount(ctx, q)
			if err != nil {
				return view{}, err
			}
			return nonceView(q, n), nil
		})
}

func newCodeCmd() *cobra.Command {
	return newAccountCmd("code", "Show contract code",
		`Show the code deployed at an address as of a block. Accounts without code
print 0x.`,
		`  chaincache code 0xdAC17F958D2ee523a2206206994597C13D831ec7 --block 19000000`,
		func(ctx context.Context, p provider.Provider, q chaindata.AccountQuery) (view, error) {
			code, err := p.GetCode(ctx, q)
			if err != nil {
				return view{}, err
			}
			return codeView(q, code), nil
		})
}

func newStorageCmd() *cobra.Command {
	var block string
	cmd := &cobra.Command{
		Use:     "storage <address> <slot>",
		Short:   "Show a storage slot",
		Long:    `Show the 32-byte value of a contract storage slot as of a block.`,
		Example: `  chaincache storage 0xdAC17F958D2ee523a2206206994597C13D831ec7 0x0 --block 19000000`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			slot, err := parseWord("slot", args[1])
			if err != nil {
				return err
			}
			n, err := parseUint("block", block)
			if err != nil {
				return err
			}
			q := chaindata.StorageQuery{Address: addr, Slot: slot, BlockNo: n}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				v, err := p.GetStorage(ctx, q)
				if err != nil {
					return view{}, err
				}
				return storageView(q, v), nil
			})
		},
	}
	cmd.Flags().StringVar(&block, "block", "", "block number to read the slot at")
	_ = cmd.MarkFlagRequired("block")
	return cmd
}

func newProofCmd() *cobra.Command {
	var (
		block string
		slots []string
	)
	cmd := &cobra.Command{
		Use:   "proof <address>",
		Short: "Show an account proof",
		Long: `Show the Merkle proof of an account and, for each --slot, of that storage
slot. Slot order and duplicates do not matter.`,
		Example: `  chaincache proof 0xdAC17F958D2ee523a2206206994597C13D831ec7 --block 19000000
  chaincache proof 0xdAC1...1ec7 --block 19000000 --slot 0x0 --slot 0x1`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			n, err := parseUint("block", block)
			if err != nil {
				return err
			}
			q := chaindata.ProofQuery{BlockNo: n, Address: addr}
			for _, s := range slots {
				slot, err := parseWord("slot", s)
				if err != nil {
					return err
				}
				q.Indices = append(q.Indices, slot)
			}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				proof, err := p.GetProof(ctx, q)
				if err != nil {
					return view{}, err
				}
				return view{data: proof}, nil
			})
		},
	}
	cmd.Flags().StringVar(&block, "block", "", "block number to prove against")
	cmd.Flags().StringArrayVar(&slots, "slot", nil, "storage slot to include (repeatable)")
	_ = cmd.MarkFlagRequired("block")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var (
		address  string
		from, to string
		topics   []string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show logs emitted by a contract",
		Long: `Show the logs emitted by an address in an inclusive block range.

Each --topic is one topic position; separate alternatives with "|" and use
"*" to match any value at that position.`,
		Example: `  chaincache logs --address 0xdAC1...1ec7 --from 19000000 --to 19000010
  chaincache logs --address 0xdAC1...1ec7 --from 19000000 --to 19000010 \
    --topic 0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef`,
		GroupID: groupQuery,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := parseAddress("address", address)
			if err != nil {
				return err
			}
			fromBlock, err := parseUint("from", from)
			if err != nil {
				return err
			}
			toBlock, err := parseUint("to", to)
			if err != nil {
				return err
			}
			if toBlock < fromBlock {
				return invalidInput("to", to, "--to must not be below --from")
			}
			parsedTopics, err := parseTopics(topics)
			if err != nil {
				return err
			}
			q := chaindata.LogsQuery{Address: addr, FromBlock: fromBlock, ToBlock: toBlock, Topics: parsedTopics}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				logs, err := p.GetLogs(ctx, q)
				if err != nil {
					return view{}, err
				}
				return logsView(logs), nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "emitting contract address")
	cmd.Flags().StringVar(&from, "from", "", "first block of the range")
	cmd.Flags().StringVar(&to, "to", "", "last block of the range (inclusive)")
	cmd.Flags().StringArrayVar(&topics, "topic", nil, "topic filter for the next position (repeatable)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newBlobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blobs <block-id>",
		Short: "Show the blob sidecars of a beacon block",
		Long: `Show the blob sidecars of a beacon block (slot). Requires a beacon API
endpoint via --beacon-url or CHAINCACHE_BEACON_URL.`,
		Example: `  chaincache blobs 8626178 --beacon-url http://localhost:5052`,
		GroupID: groupQuery,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint("block-id", args[0])
			if err != nil {
				return err
			}
			return runFetch(cmd, func(ctx context.Context, p provider.Provider) (view, error) {
				blobs, err := p.GetBlobData(ctx, chaindata.BlobQuery{BlockID: id})
				if err != nil {
					return view{}, err
				}
				return blobsView(blobs), nil
			})
		},
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(
		newBlockCmd(),
		newReceiptsCmd(),
		newTxCmd(),
		newBalanceCmd(),
		newNonceCmd(),
		newCodeCmd(),
		newStorageCmd(),
		newProofCmd(),
		newLogsCmd(),
		newBlobsCmd(),
	)
}

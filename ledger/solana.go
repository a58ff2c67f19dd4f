package ledger

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/vitwit/paygate/types"
)

// SolanaClient reads transaction records from a Solana RPC node
type SolanaClient struct {
	network types.Network
	rpcURL  string
	client  *rpc.Client
}

var _ Client = (*SolanaClient)(nil)

// NewSolanaClient connects to the given RPC endpoint. An empty rpcURL
// falls back to the network's public endpoint.
func NewSolanaClient(network types.Network, rpcURL string) (*SolanaClient, error) {
	if !network.Valid() {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	if rpcURL == "" {
		rpcURL = network.DefaultRPCURL()
	}

	return &SolanaClient{
		network: network,
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
	}, nil
}

// Network returns the cluster this client reads from.
func (c *SolanaClient) Network() types.Network { return c.network }

// Close releases the underlying RPC connection.
func (c *SolanaClient) Close() {
	_ = c.client.Close()
}

// FetchTransaction fetches the transaction behind a proof at confirmed
// commitment and decodes its transfer instructions in recorded order.
func (c *SolanaClient) FetchTransaction(ctx context.Context, proofID string) (*types.TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(proofID)
	if err != nil {
		// A string that does not parse as a signature can never resolve
		return nil, fmt.Errorf("%w: %q is not a transaction signature", ErrNotFound, proofID)
	}

	maxVersion := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction %s: %w", proofID, err)
	}
	if out == nil {
		return nil, ErrNotFound
	}

	record := &types.TransactionRecord{
		Signature: proofID,
		Slot:      out.Slot,
	}

	if out.BlockTime != nil {
		record.BlockTime = out.BlockTime.Time()
	}

	if out.Meta != nil {
		record.HasMeta = true
		if out.Meta.Err != nil {
			record.Err = fmt.Sprintf("%v", out.Meta.Err)
		}
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", proofID, err)
	}

	record.Transfers = decodeTransfers(tx)
	return record, nil
}

// ReceivingAccount derives where a payment of the asset must land. The
// native asset is received on the wallet itself; token assets on the
// wallet's associated token account for the mint.
func (c *SolanaClient) ReceivingAccount(wallet string, asset types.Asset) (string, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}

	if asset.Native() {
		return owner.String(), nil
	}

	mint, err := solana.PublicKeyFromBase58(asset.Mint)
	if err != nil {
		return "", fmt.Errorf("invalid mint %q: %w", asset.Mint, err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return "", fmt.Errorf("derive associated token account: %w", err)
	}

	return ata.String(), nil
}

// VerifyAssetDecimals fetches the asset's mint account and checks the
// on-ledger decimals against the configured ones. Used as a best-effort
// startup sanity check; native assets always pass.
func (c *SolanaClient) VerifyAssetDecimals(ctx context.Context, asset types.Asset) error {
	if asset.Native() {
		return nil
	}

	mint, err := solana.PublicKeyFromBase58(asset.Mint)
	if err != nil {
		return fmt.Errorf("invalid mint %q: %w", asset.Mint, err)
	}

	info, err := c.client.GetAccountInfo(ctx, mint)
	if err != nil {
		return fmt.Errorf("get mint account %s: %w", asset.Mint, err)
	}

	owner := info.Value.Owner
	if !owner.Equals(solana.TokenProgramID) && !owner.Equals(solana.Token2022ProgramID) {
		return fmt.Errorf("account %s was not created by a known token program", asset.Mint)
	}

	var mintData token.Mint
	if err := bin.NewBinDecoder(info.Value.Data.GetBinary()).Decode(&mintData); err != nil {
		return fmt.Errorf("decode mint account %s: %w", asset.Mint, err)
	}

	if int(mintData.Decimals) != asset.Decimals {
		return fmt.Errorf("mint %s has %d decimals on ledger, configured with %d",
			asset.Mint, mintData.Decimals, asset.Decimals)
	}

	return nil
}

// decodeTransfers extracts every recognizable transfer instruction from the
// transaction message, preserving recorded order. Unrecognized programs and
// non-transfer instructions are skipped.
func decodeTransfers(tx *solana.Transaction) []types.TransferInstruction {
	msg := &tx.Message

	var transfers []types.TransferInstruction
	for _, inst := range msg.Instructions {
		if int(inst.ProgramIDIndex) >= len(msg.AccountKeys) {
			continue
		}
		prog := msg.AccountKeys[inst.ProgramIDIndex]

		metas, ok := instructionMetas(msg, inst)
		if !ok {
			continue
		}

		switch {
		case prog.Equals(solana.SystemProgramID):
			if t, ok := decodeSystemTransfer(metas, inst.Data); ok {
				transfers = append(transfers, t)
			}
		case prog.Equals(solana.TokenProgramID), prog.Equals(solana.Token2022ProgramID):
			if t, ok := decodeTokenTransfer(metas, inst.Data); ok {
				transfers = append(transfers, t)
			}
		}
	}

	return transfers
}

// instructionMetas rebuilds the account metas a compiled instruction refers
// to, which the program decoders need to resolve roles.
func instructionMetas(msg *solana.Message, inst solana.CompiledInstruction) ([]*solana.AccountMeta, bool) {
	metas := make([]*solana.AccountMeta, len(inst.Accounts))
	for i, idx := range inst.Accounts {
		if int(idx) >= len(msg.AccountKeys) {
			return nil, false
		}
		pub := msg.AccountKeys[idx]

		writable, err := msg.IsWritable(pub)
		if err != nil {
			return nil, false
		}

		metas[i] = &solana.AccountMeta{
			PublicKey:  pub,
			IsSigner:   msg.IsSigner(pub),
			IsWritable: writable,
		}
	}
	return metas, true
}

func decodeSystemTransfer(metas []*solana.AccountMeta, data []byte) (types.TransferInstruction, bool) {
	if len(metas) < 2 {
		return types.TransferInstruction{}, false
	}

	decoded, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return types.TransferInstruction{}, false
	}

	transfer, ok := decoded.Impl.(*system.Transfer)
	if !ok || transfer.Lamports == nil {
		return types.TransferInstruction{}, false
	}

	// Native moves carry no asset identifier
	return types.TransferInstruction{
		Source:      transfer.GetFundingAccount().PublicKey.String(),
		Destination: transfer.GetRecipientAccount().PublicKey.String(),
		Amount:      *transfer.Lamports,
	}, true
}

func decodeTokenTransfer(metas []*solana.AccountMeta, data []byte) (types.TransferInstruction, bool) {
	decoded, err := token.DecodeInstruction(metas, data)
	if err != nil {
		return types.TransferInstruction{}, false
	}

	switch transfer := decoded.Impl.(type) {
	case *token.Transfer:
		// Transfer does not name its mint, so the instruction is untyped
		if len(metas) < 2 || transfer.Amount == nil {
			return types.TransferInstruction{}, false
		}
		return types.TransferInstruction{
			Source:      transfer.GetSourceAccount().PublicKey.String(),
			Destination: transfer.GetDestinationAccount().PublicKey.String(),
			Amount:      *transfer.Amount,
		}, true

	case *token.TransferChecked:
		if len(metas) < 3 || transfer.Amount == nil {
			return types.TransferInstruction{}, false
		}
		return types.TransferInstruction{
			Source:      transfer.GetSourceAccount().PublicKey.String(),
			Destination: transfer.GetDestinationAccount().PublicKey.String(),
			Mint:        transfer.GetMintAccount().PublicKey.String(),
			Amount:      *transfer.Amount,
		}, true
	}

	return types.TransferInstruction{}, false
}

package app

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/shopspring/decimal"
)

// Balance queries and prints the owner's SOL and token balances.
func (a *App) Balance(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}

	client := a.newLedger()

	lamports, err := client.GetBalance(ctx, id.Owner)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	sol := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
	fmt.Fprintf(os.Stdout, "Owner: %s\nSOL:   %s\n", id.Owner, sol.StringFixed(9))

	raw, decimals, err := client.GetTokenBalance(ctx, id.Owner, id.Mint)
	if err != nil {
		// A missing holding account is normal before the first claim.
		a.Logger.Warn().Err(err).Msg("token balance unavailable")
		return nil
	}
	tokens := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
	fmt.Fprintf(os.Stdout, "Tokens: %s\n", tokens.String())

	return nil
}

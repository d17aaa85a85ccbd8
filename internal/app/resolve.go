package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"heartbeat-beacon/internal/accounts"
)

// Resolve performs a one-shot account resolution with the standard retry
// budget and prints the derived addresses. Useful to verify a deployment
// before flashing a unit.
func (a *App) Resolve(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}

	resolver := accounts.New(accounts.Options{}, a.newLedger(), a.Logger)
	set, state := resolver.Resolve(ctx, id.Owner, id.Signer, id.ProgramID, id.Mint)
	if state != accounts.Resolved {
		return fmt.Errorf("resolution %s after %d attempts", state, resolver.Attempts())
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Owner\t%s\n", set.Owner)
	fmt.Fprintf(writer, "Program\t%s\n", set.ProgramID)
	fmt.Fprintf(writer, "Data account\t%s\n", set.DataAccount)
	fmt.Fprintf(writer, "Authority\t%s\n", set.AuthorityAccount)
	fmt.Fprintf(writer, "Holding account\t%s\n", set.HoldingAccount)
	return writer.Flush()
}

package submitter

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"heartbeat-beacon/internal/accounts"
)

// Template selects the account shape of the log-reading instruction. The
// on-chain program dictates the correct shape per deployment: some
// deployments pay out on every reading and need the token accounts, others
// log against the data account alone.
type Template int

const (
	// TemplateFull attaches the mint, holding, and token-program accounts.
	TemplateFull Template = iota
	// TemplateMinimal carries only the data account and system program.
	TemplateMinimal
)

// ParseTemplate maps a config string onto a Template.
func ParseTemplate(s string) (Template, error) {
	switch s {
	case "", "full":
		return TemplateFull, nil
	case "minimal":
		return TemplateMinimal, nil
	default:
		return TemplateFull, fmt.Errorf("unknown instruction template %q", s)
	}
}

func (t Template) String() string {
	if t == TemplateMinimal {
		return "minimal"
	}
	return "full"
}

func (t Template) readingMetas(set *accounts.AccountSet) solana.AccountMetaSlice {
	if t == TemplateMinimal {
		return minimalMetas(set)
	}
	return fullMetas(set)
}

func fullMetas(set *accounts.AccountSet) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(set.Owner).SIGNER(),
		solana.Meta(set.DataAccount).WRITE(),
		solana.Meta(set.AuthorityAccount),
		solana.Meta(set.Mint).WRITE(),
		solana.Meta(set.HoldingAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}
}

func minimalMetas(set *accounts.AccountSet) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(set.Owner).SIGNER(),
		solana.Meta(set.DataAccount).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent submission outcomes from the telemetry store.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show submissions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentSubmissions(ctx, a.Config.Device.Name, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no submissions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKind\tOK\tSignature\tReason")

	for _, record := range records {
		sig := ""
		if record.Signature != nil {
			sig = *record.Signature
		}
		reason := ""
		if record.Reason != nil {
			reason = sanitizeInline(*record.Reason)
		}
		ok := "no"
		if record.Success {
			ok = "yes"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			record.At.UTC().Format(time.RFC3339),
			record.Kind,
			ok,
			sig,
			reason,
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

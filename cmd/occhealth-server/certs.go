package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/occhealth/occhealth/internal/config"
	"github.com/occhealth/occhealth/internal/platform/registry"
)

func certsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Query the external certificate registry",
	}

	var documentID string
	lookup := &cobra.Command{
		Use:   "lookup",
		Short: "Show the registry record for a certificate document id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.RegistryEnabled() {
				return fmt.Errorf("CERT_REGISTRY_TABLE is not configured")
			}
			ctx := context.Background()
			reg, err := registry.Connect(ctx, registry.Options{
				Table:    cfg.CertRegistryTable,
				Region:   cfg.AWSRegion,
				Endpoint: cfg.AWSEndpointURL,
			})
			if err != nil {
				return err
			}
			rec, err := reg.Get(ctx, documentID)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	lookup.Flags().StringVar(&documentID, "document", "", "certificate document id")
	_ = lookup.MarkFlagRequired("document")

	cmd.AddCommand(lookup)
	return cmd
}

func printRecord(w io.Writer, rec *registry.Record) {
	fmt.Fprintf(w, "%-18s %s\n", "DOCUMENT", rec.DocumentID)
	fmt.Fprintf(w, "%-18s %s\n", "STATUS", rec.Status)
	fmt.Fprintf(w, "%-18s %s\n", "VERDICT", rec.Verdict)
	fmt.Fprintf(w, "%-18s %s (%s)\n", "PATIENT", rec.PatientName, rec.PatientDocument)
	fmt.Fprintf(w, "%-18s %s\n", "COMPANY", rec.CompanyName)
	fmt.Fprintf(w, "%-18s %s\n", "ISSUED", rec.IssuedAt.Format("2006-01-02"))
	fmt.Fprintf(w, "%-18s %s\n", "EXPIRES", rec.ExpiresAt.Format("2006-01-02"))
	if rec.Restrictions != "" {
		fmt.Fprintf(w, "%-18s %s\n", "RESTRICTIONS", rec.Restrictions)
	}
	if rec.SupersededBy != "" {
		fmt.Fprintf(w, "%-18s %s\n", "SUPERSEDED BY", rec.SupersededBy)
	}
}

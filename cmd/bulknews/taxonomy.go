// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Look up taxonomy categories, codes, and companies",
	Long: `Taxonomy lists the archive's taxonomy categories, dumps the codes of a
category, and resolves company codes (ISINs, tickers, CUSIPs) to company
metadata.`,
}

func taxonomyClient(cmd *cobra.Command) (*taxonomy.Client, error) {
	cfg, err := apiConfig(cmd)
	if err != nil {
		return nil, err
	}
	return taxonomy.NewClient(newHTTPClient(cfg), cfg), nil
}

// --- categories subcommand ---

var taxonomyCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the available taxonomy categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := taxonomyClient(cmd)
		if err != nil {
			return err
		}
		categories, err := client.Categories(context.Background())
		if err != nil {
			return err
		}
		for _, category := range categories {
			fmt.Fprintln(os.Stdout, category)
		}
		return nil
	},
}

// --- codes subcommand ---

var taxonomyCodesCmd = &cobra.Command{
	Use:   "codes [category]",
	Short: "List the codes of a taxonomy category",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaxonomyCodes,
}

func runTaxonomyCodes(cmd *cobra.Command, args []string) error {
	client, err := taxonomyClient(cmd)
	if err != nil {
		return err
	}
	codes, err := client.CategoryCodes(context.Background(), args[0])
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(codes)
	}

	for _, code := range codes {
		fmt.Fprintf(os.Stdout, "%-16s  %s\n", code.Code, code.Description)
	}
	fmt.Fprintf(os.Stdout, "\n%d codes\n", len(codes))
	return nil
}

// --- company subcommand ---

var taxonomyCompanyCmd = &cobra.Command{
	Use:   "company [code-type] [codes...]",
	Short: "Resolve company codes to company metadata",
	Long: `Company resolves one or more company codes of the given type (isin,
ticker, cusip, sedol) to company metadata. With several codes the lookup
is batched; codes the archive does not know are reported separately.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTaxonomyCompany,
}

func runTaxonomyCompany(cmd *cobra.Command, args []string) error {
	client, err := taxonomyClient(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	codeType, codes := args[0], args[1:]

	if len(codes) == 1 {
		company, err := client.Company(ctx, codeType, codes[0])
		if err != nil {
			return err
		}
		printCompany(company)
		return nil
	}

	batch, err := client.Companies(ctx, codeType, codes)
	if err != nil {
		return err
	}
	for _, company := range batch.Companies {
		printCompany(company)
	}
	if len(batch.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "not found: %v\n", batch.Failed)
		return fmt.Errorf("%d code(s) not resolved", len(batch.Failed))
	}
	return nil
}

func printCompany(company taxonomy.Company) {
	fmt.Fprintf(os.Stdout, "%-16s  %-10s  %s\n", company.ID, company.FCode, company.CommonName)
}

func init() {
	taxonomyCodesCmd.Flags().Bool("json", false, "output codes as JSON")

	taxonomyCmd.AddCommand(taxonomyCategoriesCmd)
	taxonomyCmd.AddCommand(taxonomyCodesCmd)
	taxonomyCmd.AddCommand(taxonomyCompanyCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

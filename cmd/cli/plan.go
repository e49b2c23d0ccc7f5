package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/money"
	previewsvc "github.com/coletivobank/coletivo/pkg/service/preview"
	"github.com/spf13/cobra"
)

func planCmd() *cobra.Command {
	var (
		amount   string
		currency string
		count    int
		interval string
		start    string
	)
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Preview an automatic repayment schedule",
		Example: `  coletivo plan preview --amount 1000.00 --installments 12 --interval mensal
  coletivo plan preview --amount 250 --installments 4 --interval weekly --start 2026-11-02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, err := money.Parse(amount, money.Code(strings.ToUpper(currency)))
			if err != nil {
				return err
			}
			every, err := accounting.ParseInterval(interval)
			if err != nil {
				return err
			}
			startDate := time.Now().UTC()
			if start != "" {
				if startDate, err = time.Parse(time.DateOnly, start); err != nil {
					return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
				}
			}
			p, err := previewsvc.New(slog.New(slog.DiscardHandler)).Plan(total, accounting.Plan{
				Mode:      accounting.PlanAutomatic,
				StartDate: startDate,
				Count:     count,
				Interval:  every,
			})
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), p)
			return nil
		},
	}
	preview.Flags().StringVar(&amount, "amount", "", "Total to repay, e.g. 1500.00")
	preview.Flags().StringVar(&currency, "currency", string(money.DefaultCode), "ISO 4217 currency code")
	preview.Flags().IntVar(&count, "installments", 1, "Number of installments")
	preview.Flags().StringVar(&interval, "interval", string(accounting.IntervalMonthly), "Spacing between installments")
	preview.Flags().StringVar(&start, "start", "", "First due date, YYYY-MM-DD (defaults to today)")
	_ = preview.MarkFlagRequired("amount")

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Repayment plan tools",
	}
	cmd.AddCommand(preview)
	return cmd
}

func printPreview(w io.Writer, p *previewsvc.Preview) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d installments totalling %s", len(p.Installments), p.Total)))
	for _, it := range p.Installments {
		fmt.Fprintf(w, "%3d  %s  %s\n", it.Number, it.DueDate.Format(time.DateOnly), it.Amount)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/spf13/cobra"
)

func eligibilityCmd() *cobra.Command {
	var (
		currency    string
		contributed string
		credit      string
		reserved    string
		available   string
		ratePercent string
	)
	cmd := &cobra.Command{
		Use:     "eligibility",
		Short:   "Compute how much a member could request",
		Example: `  coletivo eligibility --contributed 100 --rate 200 --available 180`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code := money.Code(strings.ToUpper(currency))
			parse := func(flag, v string) (money.Money, error) {
				m, err := money.Parse(v, code)
				if err != nil {
					return money.Money{}, fmt.Errorf("--%s: %w", flag, err)
				}
				return m, nil
			}
			var pos accounting.Position
			var avail money.Money
			var err error
			if pos.TotalContributed, err = parse("contributed", contributed); err != nil {
				return err
			}
			if pos.CapacityCredit, err = parse("credit", credit); err != nil {
				return err
			}
			if pos.Reserved, err = parse("reserved", reserved); err != nil {
				return err
			}
			if avail, err = parse("available", available); err != nil {
				return err
			}
			rate, err := accounting.ParseRate(ratePercent)
			if err != nil {
				return fmt.Errorf("--rate: %w", err)
			}

			e, err := accounting.ComputeEligibility(pos, rate, avail)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, headerStyle.Render("eligible "+e.Eligible.String()))
			if e.Capacity.Unlimited {
				fmt.Fprintln(w, mutedStyle.Render("no contribution required; capped by the fund balance"))
				return nil
			}
			fmt.Fprintf(w, "max requestable at %s: %s\n", rate, e.Capacity.Max)
			if e.CappedByBalance {
				fmt.Fprintln(w, mutedStyle.Render("capped by the fund balance"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", string(money.DefaultCode), "ISO 4217 currency code")
	cmd.Flags().StringVar(&contributed, "contributed", "0", "Member's lifetime contributions")
	cmd.Flags().StringVar(&credit, "credit", "0", "Capacity credit from retributions")
	cmd.Flags().StringVar(&reserved, "reserved", "0", "Capacity held by open requests")
	cmd.Flags().StringVar(&available, "available", "", "Fund balance not yet reserved")
	cmd.Flags().StringVar(&ratePercent, "rate", "100", "Contribution rate in percent")
	_ = cmd.MarkFlagRequired("available")
	return cmd
}

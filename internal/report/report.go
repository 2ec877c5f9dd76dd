// Package report renders plain-text summaries of archived periods.
package report

import (
	"fmt"
	"sort"
	"strings"

	"kharcha/internal/core"
)

const divider = "--------------------"

// Render produces the monthly summary for an archived period: category
// totals, per-person balances and a detailed expense breakdown, newest
// expense first.
func Render(a *core.Archive) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Monthly Summary %s\n", a.Ledger.Period)
	b.WriteString("====================\n\n")

	b.WriteString("Category-wise Expenses:\n")
	b.WriteString(divider + "\n")
	for _, category := range sortedNames(a.Summary.CategoryTotals) {
		fmt.Fprintf(&b, "%s: %s\n", category, a.Summary.CategoryTotals[category])
	}
	fmt.Fprintf(&b, "Total: %s (%d expenses)\n", a.Summary.Total, a.Summary.ExpenseCount)

	b.WriteString("\nPer Person Balances:\n")
	b.WriteString(divider + "\n")
	for _, name := range sortedNames(a.Summary.FinalBalances) {
		balance := a.Summary.FinalBalances[name]
		status := "to receive"
		if balance.Cents < 0 {
			status = "to pay"
		} else if balance.Cents == 0 {
			status = "settled"
		}
		abs := balance
		if abs.Cents < 0 {
			abs.Cents = -abs.Cents
		}
		fmt.Fprintf(&b, "%s: %s (%s)\n", name, abs, status)
	}

	b.WriteString("\nDetailed Expense Breakdown:\n")
	b.WriteString(divider + "\n")
	expenses := append([]core.Expense(nil), a.Ledger.Expenses...)
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[j].At.Before(expenses[i].At)
	})
	for _, e := range expenses {
		fmt.Fprintf(&b, "\nDate: %s\n", e.At.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "Category: %s\n", e.Category)
		fmt.Fprintf(&b, "Description: %s\n", e.Description)
		fmt.Fprintf(&b, "Amount: %s\n", e.Amount)
		fmt.Fprintf(&b, "Paid by: %s\n", e.Payer)
		fmt.Fprintf(&b, "Shared between: %s\n", strings.Join(e.Sharers, ", "))
	}

	return b.String()
}

func sortedNames(m map[string]core.Money) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

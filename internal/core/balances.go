package core

import "sort"

// ComputeBalances derives the net balance per participant: everything they
// paid minus their share of every expense they appear in. Positive means the
// participant is owed money, negative means they owe.
//
// It covers the union of the roster and every name referenced by an expense,
// so participants removed from the roster mid-month keep their residual
// balance and the total still sums to zero. Cent remainders of an uneven
// split are charged one cent each to the first sharers in name order, which
// keeps the zero-sum property exact rather than approximate.
func ComputeBalances(l *Ledger) map[string]Money {
	balances := make(map[string]Money, len(l.Roster))
	for _, name := range l.Roster {
		balances[name] = Money{}
	}

	for _, e := range l.Expenses {
		// A record with no sharers cannot be split; skip it whole, payer
		// credit included, so the zero-sum property still holds.
		k := int64(len(e.Sharers))
		if k == 0 {
			continue
		}

		payer := balances[e.Payer]
		payer.Cents += e.Amount.Cents
		balances[e.Payer] = payer

		share := e.Amount.Cents / k
		rem := e.Amount.Cents % k

		sharers := append([]string(nil), e.Sharers...)
		sort.Strings(sharers)
		for i, name := range sharers {
			owed := share
			if int64(i) < rem {
				owed++
			}
			b := balances[name]
			b.Cents -= owed
			balances[name] = b
		}
	}

	return balances
}

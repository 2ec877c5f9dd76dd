package core

import "sort"

// Transfer is a proposed payment that reduces outstanding balances.
type Transfer struct {
	From   string
	To     string
	Amount Money
}

// PlanSettlement turns a balances mapping into an ordered list of transfers
// that clears all debts. It greedily matches the largest debtor against the
// largest creditor; the result is deterministic (ties broken by name) and
// fully settles any zero-sum input, though it is not guaranteed to be the
// globally minimal number of transfers.
//
// If the input does not sum to zero the unmatched residue is simply left
// unsettled: the plan covers what it can and never errors.
func PlanSettlement(balances map[string]Money) []Transfer {
	type party struct {
		name  string
		cents int64 // always positive: debt for debtors, credit for creditors
	}

	var debtors, creditors []party
	for name, b := range balances {
		switch {
		case b.Cents < 0:
			debtors = append(debtors, party{name: name, cents: -b.Cents})
		case b.Cents > 0:
			creditors = append(creditors, party{name: name, cents: b.Cents})
		}
	}

	byMagnitude := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if ps[i].cents != ps[j].cents {
				return ps[i].cents > ps[j].cents
			}
			return ps[i].name < ps[j].name
		}
	}
	sort.Slice(debtors, byMagnitude(debtors))
	sort.Slice(creditors, byMagnitude(creditors))

	var plan []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].cents
		if creditors[j].cents < amount {
			amount = creditors[j].cents
		}

		if amount > 0 && debtors[i].name != creditors[j].name {
			plan = append(plan, Transfer{
				From:   debtors[i].name,
				To:     creditors[j].name,
				Amount: Money{Cents: amount},
			})
		}

		debtors[i].cents -= amount
		creditors[j].cents -= amount
		if debtors[i].cents == 0 {
			i++
		}
		if creditors[j].cents == 0 {
			j++
		}
	}

	return plan
}

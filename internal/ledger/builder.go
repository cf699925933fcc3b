package ledger

import "sort"

// Obligation is a pairwise debtor → creditor debt emitted by the builder,
// before persistence assigns it an entry ID.
type Obligation struct {
	DebtorID    int64
	CreditorID  int64
	AmountCents int64
}

// BuildObligations converts per-user net positions (positive = owes,
// negative = is owed) into a minimal list of pairwise obligations using a
// greedy two-pointer walk. Both sides are ordered by ascending user ID so
// the output is deterministic: same input, same sequence.
//
// When the net positions balance, at most debtors+creditors-1 entries are
// emitted. If they do not sum to zero the walk simply terminates when one
// side runs out; the caller treats that as an upstream validation failure.
func BuildObligations(net map[int64]int64) []Obligation {
	type position struct {
		userID int64
		amount int64
	}

	var debtors, creditors []position
	for userID, amount := range net {
		switch {
		case amount > 0:
			debtors = append(debtors, position{userID, amount})
		case amount < 0:
			creditors = append(creditors, position{userID, -amount})
		}
	}

	sort.Slice(debtors, func(a, b int) bool { return debtors[a].userID < debtors[b].userID })
	sort.Slice(creditors, func(a, b int) bool { return creditors[a].userID < creditors[b].userID })

	var obligations []Obligation
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := debtor.amount
		if creditor.amount < amount {
			amount = creditor.amount
		}

		obligations = append(obligations, Obligation{
			DebtorID:    debtor.userID,
			CreditorID:  creditor.userID,
			AmountCents: amount,
		})

		debtor.amount -= amount
		creditor.amount -= amount

		if debtor.amount == 0 {
			i++
		}
		if creditor.amount == 0 {
			j++
		}
	}

	return obligations
}

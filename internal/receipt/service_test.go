package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malnajdi/fatoora/internal/ledger"
	"github.com/malnajdi/fatoora/internal/user"
)

// fakeStore is an in-memory Store with the same conditional-write
// semantics as the Postgres repository.
type fakeStore struct {
	receipts    map[int64]*Receipt
	entries     map[int64][]*ledger.Entry
	nextID      int64
	nextEntryID int64

	// saveConflicts makes the next N conditional writes report a lost
	// race, simulating a concurrent writer.
	saveConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		receipts: make(map[int64]*Receipt),
		entries:  make(map[int64][]*ledger.Entry),
	}
}

func cloneReceipt(r *Receipt) *Receipt {
	c := *r
	c.Participants = append([]Participant(nil), r.Participants...)
	c.Items = append([]Item(nil), r.Items...)
	c.Charges = append([]Charge(nil), r.Charges...)
	c.Payments = append([]Payment(nil), r.Payments...)
	c.SettleSummary = append([]SettleEntry(nil), r.SettleSummary...)
	return &c
}

func (s *fakeStore) Insert(ctx context.Context, rcpt *Receipt) (*Receipt, error) {
	s.nextID++
	rcpt.ID = s.nextID
	rcpt.Version = 1
	rcpt.CreatedAt = time.Now().UTC()
	rcpt.UpdatedAt = rcpt.CreatedAt
	s.receipts[rcpt.ID] = cloneReceipt(rcpt)
	return cloneReceipt(rcpt), nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*Receipt, error) {
	stored, ok := s.receipts[id]
	if !ok || stored.IsDeleted {
		return nil, nil
	}
	return cloneReceipt(stored), nil
}

func (s *fakeStore) ListByParticipant(ctx context.Context, userID int64, limit, offset int) ([]*Receipt, int, error) {
	var out []*Receipt
	for _, stored := range s.receipts {
		if !stored.IsDeleted && stored.IsParticipant(userID) {
			out = append(out, cloneReceipt(stored))
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) SaveDraft(ctx context.Context, rcpt *Receipt, expectedVersion int64) (*Receipt, error) {
	if s.saveConflicts > 0 {
		s.saveConflicts--
		return nil, nil
	}

	stored, ok := s.receipts[rcpt.ID]
	if !ok || stored.IsDeleted || stored.Status != StatusDraft || stored.Version != expectedVersion {
		return nil, nil
	}

	saved := cloneReceipt(rcpt)
	saved.Version = expectedVersion + 1
	saved.UpdatedAt = time.Now().UTC()
	s.receipts[rcpt.ID] = saved
	return cloneReceipt(saved), nil
}

func (s *fakeStore) Finalize(ctx context.Context, rcpt *Receipt, expectedVersion int64, obligations []ledger.Obligation) (*Receipt, []*ledger.Entry, error) {
	stored, ok := s.receipts[rcpt.ID]
	if !ok || stored.IsDeleted || stored.Status != StatusDraft || stored.Version != expectedVersion {
		return nil, nil, nil
	}

	saved := cloneReceipt(rcpt)
	saved.Status = StatusFinalized
	saved.Version = expectedVersion + 1
	s.receipts[rcpt.ID] = saved

	var entries []*ledger.Entry
	for _, o := range obligations {
		s.nextEntryID++
		entries = append(entries, &ledger.Entry{
			ID:          s.nextEntryID,
			ReceiptID:   rcpt.ID,
			DebtorID:    o.DebtorID,
			CreditorID:  o.CreditorID,
			AmountCents: o.AmountCents,
			Status:      ledger.EntryStatusPending,
		})
	}
	s.entries[rcpt.ID] = entries

	return cloneReceipt(saved), entries, nil
}

func (s *fakeStore) Unfinalize(ctx context.Context, rcpt *Receipt) (*Receipt, error) {
	for _, e := range s.entries[rcpt.ID] {
		if !e.IsDeleted && e.SettledAmountCents > 0 {
			return nil, ErrAlreadySettled
		}
	}
	for _, e := range s.entries[rcpt.ID] {
		e.IsDeleted = true
	}

	stored := s.receipts[rcpt.ID]
	if stored == nil || stored.Status != StatusFinalized {
		return nil, nil
	}

	saved := cloneReceipt(rcpt)
	saved.Status = StatusDraft
	saved.Version = stored.Version + 1
	s.receipts[rcpt.ID] = saved
	return cloneReceipt(saved), nil
}

func (s *fakeStore) UpdateSettleSummary(ctx context.Context, id int64, summary []SettleEntry) error {
	stored := s.receipts[id]
	stored.SettleSummary = append([]SettleEntry(nil), summary...)
	return nil
}

func (s *fakeStore) SoftDelete(ctx context.Context, id, updatedBy int64) error {
	s.receipts[id].IsDeleted = true
	return nil
}

func (s *fakeStore) ListByReceiptID(ctx context.Context, receiptID int64) ([]*ledger.Entry, error) {
	var out []*ledger.Entry
	for _, e := range s.entries[receiptID] {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) SettledByDebtor(ctx context.Context, receiptID int64) (map[int64]int64, error) {
	settled := make(map[int64]int64)
	for _, e := range s.entries[receiptID] {
		if !e.IsDeleted && e.SettledAmountCents > 0 {
			settled[e.DebtorID] += e.SettledAmountCents
		}
	}
	return settled, nil
}

type fakeDirectory struct {
	byEmail map[string]*user.User
}

func (d *fakeDirectory) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return d.byEmail[email], nil
}

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	dir := &fakeDirectory{byEmail: map[string]*user.User{
		"bob@example.com":   {ID: 2, Username: "bob", Email: "bob@example.com"},
		"carol@example.com": {ID: 3, Username: "carol", Email: "carol@example.com"},
	}}
	return NewService(store, dir, store), store
}

// draftWithMembers creates a draft owned by user 1 with users 2 and 3
// added, ready for items.
func draftWithMembers(t *testing.T, svc *Service) *Receipt {
	t.Helper()

	ctx := context.Background()
	rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Dinner"})
	require.NoError(t, err)

	rcpt, err = svc.AddMember(ctx, 1, rcpt.ID, "bob@example.com")
	require.NoError(t, err)
	rcpt, err = svc.AddMember(ctx, 1, rcpt.ID, "carol@example.com")
	require.NoError(t, err)

	return rcpt
}

func itemsPatch(items []ItemInput) *[]ItemInput      { return &items }
func paymentsPatch(p []PaymentInput) *[]PaymentInput { return &p }
func chargesPatch(c []ChargeInput) *[]ChargeInput    { return &c }

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()

	rcpt, err := svc.Create(context.Background(), 1, &CreateReceiptRequest{Title: "Lunch"})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, rcpt.Status)
	assert.Equal(t, int64(1), rcpt.Version)
	require.Len(t, rcpt.Participants, 1)
	assert.Equal(t, int64(1), rcpt.Participants[0].UserID)
	assert.Equal(t, RoleOwner, rcpt.Participants[0].Role)
}

func TestService_Get_NonParticipantSeesNotFound(t *testing.T) {
	svc, _ := newTestService()
	rcpt, err := svc.Create(context.Background(), 1, &CreateReceiptRequest{Title: "Lunch"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 99, rcpt.ID)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService()
	rcpt := draftWithMembers(t, svc)

	updated, err := svc.Update(context.Background(), 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Items: itemsPatch([]ItemInput{
			{Name: "Pizza", UnitPriceCents: 1000, Quantity: 3, Splits: []SplitInput{
				{UserID: 1, ShareQuantity: 1},
				{UserID: 2, ShareQuantity: 1},
				{UserID: 3, ShareQuantity: 1},
			}},
		}),
		Payments: paymentsPatch([]PaymentInput{{UserID: 1, AmountPaidCents: 3000}}),
	})
	require.NoError(t, err)

	assert.Equal(t, rcpt.Version+1, updated.Version)
	assert.Equal(t, int64(3000), updated.SubtotalCents)
	assert.Equal(t, int64(3000), updated.TotalCents)
	require.Len(t, updated.Items, 1)
	assert.NotEmpty(t, updated.Items[0].ItemID)

	require.Len(t, updated.SettleSummary, 3)
	assert.Equal(t, SummaryStatusCreditor, updated.SettleSummary[0].Status)
	assert.Equal(t, int64(1000), updated.SettleSummary[1].AmountCents)
	assert.Equal(t, int64(1000), updated.SettleSummary[2].AmountCents)
}

func TestService_Update_StaleVersion(t *testing.T) {
	svc, _ := newTestService()
	rcpt := draftWithMembers(t, svc)

	title := "New title"
	_, err := svc.Update(context.Background(), 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version - 1,
		Title:   &title,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestService_Update_LostConditionalWrite(t *testing.T) {
	svc, store := newTestService()
	rcpt := draftWithMembers(t, svc)

	store.saveConflicts = 1

	title := "New title"
	_, err := svc.Update(context.Background(), 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Title:   &title,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestService_Update_OnlyOwnerAndDraft(t *testing.T) {
	svc, _ := newTestService()
	rcpt := draftWithMembers(t, svc)

	title := "Nope"
	_, err := svc.Update(context.Background(), 2, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Title:   &title,
	})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestService_Update_RejectsBadSplitSum(t *testing.T) {
	svc, _ := newTestService()
	rcpt := draftWithMembers(t, svc)

	_, err := svc.Update(context.Background(), 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Items: itemsPatch([]ItemInput{
			{Name: "Pizza", UnitPriceCents: 1000, Quantity: 2, Splits: []SplitInput{
				{UserID: 1, ShareQuantity: 1},
				{UserID: 2, ShareQuantity: 0.5},
			}},
		}),
	})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_AddMember(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Dinner"})
	require.NoError(t, err)

	updated, err := svc.AddMember(ctx, 1, rcpt.ID, "bob@example.com")
	require.NoError(t, err)

	require.Len(t, updated.Participants, 2)
	assert.Equal(t, RoleMember, updated.Participants[1].Role)
	assert.Equal(t, rcpt.Version+1, updated.Version)

	_, err = svc.AddMember(ctx, 1, rcpt.ID, "bob@example.com")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(ctx, 1, rcpt.ID, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUnknownEmail)
}

func TestService_AddMember_RefreshesEqualChargeSplits(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Dinner"})
	require.NoError(t, err)

	rcpt, err = svc.Update(ctx, 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Charges: chargesPatch([]ChargeInput{{Name: "Tax", UnitPriceCents: 100}}),
	})
	require.NoError(t, err)

	// Alone, the owner carries the whole charge.
	require.Len(t, rcpt.SettleSummary, 1)
	assert.Equal(t, int64(100), rcpt.SettleSummary[0].NetCents)

	rcpt, err = svc.AddMember(ctx, 1, rcpt.ID, "bob@example.com")
	require.NoError(t, err)

	require.Len(t, rcpt.SettleSummary, 2)
	assert.Equal(t, int64(50), rcpt.SettleSummary[0].NetCents)
	assert.Equal(t, int64(50), rcpt.SettleSummary[1].NetCents)
}

func TestService_RemoveMember(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rcpt := draftWithMembers(t, svc)

	_, err := svc.RemoveMember(ctx, 1, rcpt.ID, 1)
	assert.ErrorIs(t, err, ErrCannotRemoveOwner)

	_, err = svc.RemoveMember(ctx, 1, rcpt.ID, 42)
	assert.ErrorIs(t, err, ErrNotMember)

	updated, err := svc.RemoveMember(ctx, 1, rcpt.ID, 3)
	require.NoError(t, err)
	assert.False(t, updated.IsParticipant(3))
	assert.Len(t, updated.Participants, 2)
}

func TestService_RemoveMember_BlockedByObligations(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rcpt := draftWithMembers(t, svc)

	rcpt, err := svc.Update(ctx, 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Items: itemsPatch([]ItemInput{
			{Name: "Pizza", UnitPriceCents: 1000, Quantity: 1, Splits: []SplitInput{
				{UserID: 2, ShareQuantity: 1},
			}},
		}),
	})
	require.NoError(t, err)

	_, err = svc.RemoveMember(ctx, 1, rcpt.ID, 2)
	assert.ErrorIs(t, err, ErrMemberHasObligations)
}

// finalizableDraft builds a draft where user 1 paid 3000 for a pizza
// split three ways.
func finalizableDraft(t *testing.T, svc *Service) *Receipt {
	t.Helper()

	rcpt := draftWithMembers(t, svc)
	rcpt, err := svc.Update(context.Background(), 1, rcpt.ID, &UpdateReceiptRequest{
		Version: rcpt.Version,
		Items: itemsPatch([]ItemInput{
			{Name: "Pizza", UnitPriceCents: 1000, Quantity: 3, Splits: []SplitInput{
				{UserID: 1, ShareQuantity: 1},
				{UserID: 2, ShareQuantity: 1},
				{UserID: 3, ShareQuantity: 1},
			}},
		}),
		Payments: paymentsPatch([]PaymentInput{{UserID: 1, AmountPaidCents: 3000}}),
	})
	require.NoError(t, err)
	return rcpt
}

func TestService_Finalize(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rcpt := finalizableDraft(t, svc)

	finalized, entries, err := svc.Finalize(ctx, 1, rcpt.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusFinalized, finalized.Status)
	assert.Equal(t, rcpt.Version+1, finalized.Version)

	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].DebtorID)
	assert.Equal(t, int64(1), entries[0].CreditorID)
	assert.Equal(t, int64(1000), entries[0].AmountCents)
	assert.Equal(t, int64(3), entries[1].DebtorID)

	listed, err := svc.ListEntries(ctx, 2, rcpt.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	// Finalizing twice fails on state.
	_, _, err = svc.Finalize(ctx, 1, rcpt.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestService_Finalize_Guards(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	t.Run("empty receipt", func(t *testing.T) {
		rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Empty"})
		require.NoError(t, err)

		_, _, err = svc.Finalize(ctx, 1, rcpt.ID)
		assert.ErrorIs(t, err, ErrEmptyReceipt)
	})

	t.Run("unassigned items", func(t *testing.T) {
		rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Unassigned"})
		require.NoError(t, err)

		rcpt, err = svc.Update(ctx, 1, rcpt.ID, &UpdateReceiptRequest{
			Version: rcpt.Version,
			Items: itemsPatch([]ItemInput{
				{Name: "Pizza", UnitPriceCents: 1000, Quantity: 1},
			}),
			Payments: paymentsPatch([]PaymentInput{{UserID: 1, AmountPaidCents: 1000}}),
		})
		require.NoError(t, err)

		_, _, err = svc.Finalize(ctx, 1, rcpt.ID)
		assert.ErrorIs(t, err, ErrUnassignedItems)
	})

	t.Run("payment mismatch", func(t *testing.T) {
		rcpt, err := svc.Create(ctx, 1, &CreateReceiptRequest{Title: "Short"})
		require.NoError(t, err)

		rcpt, err = svc.Update(ctx, 1, rcpt.ID, &UpdateReceiptRequest{
			Version: rcpt.Version,
			Items: itemsPatch([]ItemInput{
				{Name: "Pizza", UnitPriceCents: 1000, Quantity: 1, Splits: []SplitInput{
					{UserID: 1, ShareQuantity: 1},
				}},
			}),
			Payments: paymentsPatch([]PaymentInput{{UserID: 1, AmountPaidCents: 900}}),
		})
		require.NoError(t, err)

		_, _, err = svc.Finalize(ctx, 1, rcpt.ID)
		assert.ErrorIs(t, err, ErrPaymentMismatch)
	})
}

func TestService_Unfinalize(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	rcpt := finalizableDraft(t, svc)

	_, err := svc.Unfinalize(ctx, 1, rcpt.ID)
	assert.ErrorIs(t, err, ErrNotFinalized)

	finalized, _, err := svc.Finalize(ctx, 1, rcpt.ID)
	require.NoError(t, err)

	reverted, err := svc.Unfinalize(ctx, 1, finalized.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, reverted.Status)

	entries, err := store.ListByReceiptID(ctx, rcpt.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_Unfinalize_BlockedBySettlement(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	rcpt := finalizableDraft(t, svc)

	_, _, err := svc.Finalize(ctx, 1, rcpt.ID)
	require.NoError(t, err)

	store.entries[rcpt.ID][0].SettledAmountCents = 500

	_, err = svc.Unfinalize(ctx, 1, rcpt.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestService_ReconcileSettleSummary(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	rcpt := finalizableDraft(t, svc)

	_, _, err := svc.Finalize(ctx, 1, rcpt.ID)
	require.NoError(t, err)

	// Debtor 2 fully settled, debtor 3 halfway.
	store.entries[rcpt.ID][0].SettledAmountCents = 1000
	store.entries[rcpt.ID][1].SettledAmountCents = 500

	require.NoError(t, svc.ReconcileSettleSummary(ctx, rcpt.ID))

	current, err := svc.Get(ctx, 1, rcpt.ID)
	require.NoError(t, err)
	require.Len(t, current.SettleSummary, 3)

	assert.Equal(t, SummaryStatusCreditor, current.SettleSummary[0].Status)

	assert.Equal(t, SummaryStatusSettled, current.SettleSummary[1].Status)
	assert.True(t, current.SettleSummary[1].IsSettled)
	assert.NotNil(t, current.SettleSummary[1].SettledAt)

	assert.Equal(t, SummaryStatusPartiallySettled, current.SettleSummary[2].Status)
	assert.Equal(t, int64(500), current.SettleSummary[2].SettledAmountCents)
}

func TestService_SoftDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rcpt := draftWithMembers(t, svc)

	err := svc.SoftDelete(ctx, 2, rcpt.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, svc.SoftDelete(ctx, 1, rcpt.ID))

	_, err = svc.Get(ctx, 1, rcpt.ID)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

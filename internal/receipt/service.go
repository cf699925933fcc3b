package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/malnajdi/fatoora/internal/ledger"
	"github.com/malnajdi/fatoora/internal/user"
)

// Common errors
var (
	ErrReceiptNotFound      = errors.New("receipt not found")
	ErrNotOwner             = errors.New("only the owner can perform this action")
	ErrNotDraft             = errors.New("receipt is not in draft state")
	ErrNotFinalized         = errors.New("receipt is not finalized")
	ErrVersionConflict      = errors.New("receipt was modified concurrently, re-read and retry")
	ErrUnknownEmail         = errors.New("no user with that email")
	ErrAlreadyMember        = errors.New("user is already a participant")
	ErrNotMember            = errors.New("user is not a participant")
	ErrCannotRemoveOwner    = errors.New("the owner cannot be removed")
	ErrMemberHasObligations = errors.New("participant appears in splits or payments")
	ErrEmptyReceipt         = errors.New("receipt total must be greater than zero")
	ErrPaymentMismatch      = errors.New("payments do not cover the receipt total")
	ErrUnassignedItems      = errors.New("every item must be split before finalizing")
	ErrAlreadySettled       = errors.New("receipt has settled ledger entries")
)

// Store is the persistence contract the service needs. Implemented by
// *Repository; faked in tests.
type Store interface {
	Insert(ctx context.Context, rcpt *Receipt) (*Receipt, error)
	GetByID(ctx context.Context, id int64) (*Receipt, error)
	ListByParticipant(ctx context.Context, userID int64, limit, offset int) ([]*Receipt, int, error)
	SaveDraft(ctx context.Context, rcpt *Receipt, expectedVersion int64) (*Receipt, error)
	Finalize(ctx context.Context, rcpt *Receipt, expectedVersion int64, obligations []ledger.Obligation) (*Receipt, []*ledger.Entry, error)
	Unfinalize(ctx context.Context, rcpt *Receipt) (*Receipt, error)
	UpdateSettleSummary(ctx context.Context, id int64, summary []SettleEntry) error
	SoftDelete(ctx context.Context, id, updatedBy int64) error
}

// UserDirectory resolves member emails to users. Implemented by
// user.Repository.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// EntryReader is the slice of the ledger store the receipt side needs:
// listing a receipt's entries and reading settlement progress.
type EntryReader interface {
	ListByReceiptID(ctx context.Context, receiptID int64) ([]*ledger.Entry, error)
	SettledByDebtor(ctx context.Context, receiptID int64) (map[int64]int64, error)
}

// Service handles receipt business logic
type Service struct {
	store   Store
	users   UserDirectory
	entries EntryReader
}

// NewService creates a new receipt service with dependencies injected
func NewService(store Store, users UserDirectory, entries EntryReader) *Service {
	return &Service{store: store, users: users, entries: entries}
}

// Create creates a draft receipt owned by the caller, who becomes the
// first participant.
func (s *Service) Create(ctx context.Context, callerID int64, req *CreateReceiptRequest) (*Receipt, error) {
	rcpt := &Receipt{
		OwnerID:     callerID,
		FolderID:    req.FolderID,
		Title:       req.Title,
		Description: req.Description,
		Comments:    req.Comments,
		Status:      StatusDraft,
		Participants: []Participant{
			{UserID: callerID, Role: RoleOwner, JoinedAt: time.Now().UTC()},
		},
		SettleSummary: []SettleEntry{},
		CreatedBy:     callerID,
		UpdatedBy:     callerID,
	}

	return s.store.Insert(ctx, rcpt)
}

// Get retrieves a receipt visible to the caller. Non-participants and
// deleted receipts both come back as not found.
func (s *Service) Get(ctx context.Context, callerID, id int64) (*Receipt, error) {
	rcpt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rcpt == nil || !rcpt.IsParticipant(callerID) {
		return nil, ErrReceiptNotFound
	}
	return rcpt, nil
}

// List retrieves the caller's receipts, newest first
func (s *Service) List(ctx context.Context, callerID int64, page, perPage int) ([]*Receipt, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.store.ListByParticipant(ctx, callerID, perPage, offset)
}

// Update applies a partial patch against a draft receipt under the
// optimistic lock. The effective (patched plus unchanged) fields are
// validated, totals and settle summary recomputed, then written
// conditionally on the version the client read.
func (s *Service) Update(ctx context.Context, callerID, id int64, req *UpdateReceiptRequest) (*Receipt, error) {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !rcpt.IsOwner(callerID) {
		return nil, ErrNotOwner
	}
	if rcpt.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	if req.Version != rcpt.Version {
		return nil, ErrVersionConflict
	}

	if req.Title != nil {
		rcpt.Title = *req.Title
	}
	if req.Description != nil {
		rcpt.Description = *req.Description
	}
	if req.Comments != nil {
		rcpt.Comments = *req.Comments
	}
	if req.FolderID != nil {
		rcpt.FolderID = req.FolderID
	}
	if req.Items != nil {
		rcpt.Items = toItems(*req.Items)
	}
	if req.Charges != nil {
		rcpt.Charges = toCharges(*req.Charges)
	}
	if req.Payments != nil {
		rcpt.Payments = toPayments(*req.Payments)
	}

	if err := ValidateItems(rcpt.Items); err != nil {
		return nil, err
	}
	if err := ValidateCharges(rcpt.Charges); err != nil {
		return nil, err
	}
	if err := ValidatePayments(rcpt.Payments); err != nil {
		return nil, err
	}

	if err := s.refreshDerivedState(rcpt); err != nil {
		return nil, err
	}
	rcpt.UpdatedBy = callerID

	updated, err := s.store.SaveDraft(ctx, rcpt, req.Version)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// A concurrent writer won the conditional write.
		return nil, ErrVersionConflict
	}

	return updated, nil
}

// AddMember appends a participant resolved by email to a draft receipt
func (s *Service) AddMember(ctx context.Context, callerID, id int64, email string) (*Receipt, error) {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !rcpt.IsOwner(callerID) {
		return nil, ErrNotOwner
	}
	if rcpt.Status != StatusDraft {
		return nil, ErrNotDraft
	}

	member, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrUnknownEmail
	}
	if rcpt.IsParticipant(member.ID) {
		return nil, ErrAlreadyMember
	}

	expectedVersion := rcpt.Version
	rcpt.Participants = append(rcpt.Participants, Participant{
		UserID:   member.ID,
		Role:     RoleMember,
		JoinedAt: time.Now().UTC(),
	})

	// Equal charge splits depend on the participant list, so derived
	// state must be refreshed on membership changes too.
	if err := s.refreshDerivedState(rcpt); err != nil {
		return nil, err
	}
	rcpt.UpdatedBy = callerID

	updated, err := s.store.SaveDraft(ctx, rcpt, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrVersionConflict
	}

	return updated, nil
}

// RemoveMember drops a participant from a draft receipt. The target must
// not appear in any split or payment.
func (s *Service) RemoveMember(ctx context.Context, callerID, id, userID int64) (*Receipt, error) {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !rcpt.IsOwner(callerID) {
		return nil, ErrNotOwner
	}
	if rcpt.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	if userID == rcpt.OwnerID {
		return nil, ErrCannotRemoveOwner
	}
	if !rcpt.IsParticipant(userID) {
		return nil, ErrNotMember
	}
	if rcpt.HasObligations(userID) {
		return nil, ErrMemberHasObligations
	}

	expectedVersion := rcpt.Version
	participants := make([]Participant, 0, len(rcpt.Participants)-1)
	for _, p := range rcpt.Participants {
		if p.UserID != userID {
			participants = append(participants, p)
		}
	}
	rcpt.Participants = participants

	if err := s.refreshDerivedState(rcpt); err != nil {
		return nil, err
	}
	rcpt.UpdatedBy = callerID

	updated, err := s.store.SaveDraft(ctx, rcpt, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrVersionConflict
	}

	return updated, nil
}

// Finalize transitions a draft to finalized and derives its ledger
// entries. The status flip and the entry insert commit atomically.
func (s *Service) Finalize(ctx context.Context, callerID, id int64) (*Receipt, []*ledger.Entry, error) {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, nil, err
	}
	if !rcpt.IsOwner(callerID) {
		return nil, nil, ErrNotOwner
	}
	if rcpt.Status != StatusDraft {
		return nil, nil, ErrNotDraft
	}

	rcpt.RecomputeTotals()
	if rcpt.TotalCents <= 0 {
		return nil, nil, ErrEmptyReceipt
	}
	for _, item := range rcpt.Items {
		if len(item.Splits) == 0 {
			return nil, nil, ErrUnassignedItems
		}
	}
	if rcpt.PaymentsTotalCents() != rcpt.TotalCents {
		return nil, nil, ErrPaymentMismatch
	}

	breakdown, err := ComputeBreakdown(rcpt)
	if err != nil {
		return nil, nil, err
	}
	rcpt.SettleSummary = BuildSettleSummary(rcpt, breakdown)
	rcpt.UpdatedBy = callerID

	obligations := ledger.BuildObligations(breakdown.Net)

	finalized, entries, err := s.store.Finalize(ctx, rcpt, rcpt.Version, obligations)
	if err != nil {
		return nil, nil, err
	}
	if finalized == nil {
		// Concurrent finalize or update won the race.
		return nil, nil, ErrNotDraft
	}

	return finalized, entries, nil
}

// Unfinalize returns a finalized receipt to draft, soft-deleting its
// ledger entries. Any settlement progress blocks the transition.
func (s *Service) Unfinalize(ctx context.Context, callerID, id int64) (*Receipt, error) {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !rcpt.IsOwner(callerID) {
		return nil, ErrNotOwner
	}
	if rcpt.Status != StatusFinalized {
		return nil, ErrNotFinalized
	}

	// Back in draft the summary reverts to its zero-settlement form.
	breakdown, err := ComputeBreakdown(rcpt)
	if err != nil {
		return nil, err
	}
	rcpt.SettleSummary = BuildSettleSummary(rcpt, breakdown)
	rcpt.UpdatedBy = callerID

	reverted, err := s.store.Unfinalize(ctx, rcpt)
	if err != nil {
		return nil, err
	}
	if reverted == nil {
		return nil, ErrNotFinalized
	}

	return reverted, nil
}

// SoftDelete hides a receipt from all reads. Ledger entries survive.
func (s *Service) SoftDelete(ctx context.Context, callerID, id int64) error {
	rcpt, err := s.Get(ctx, callerID, id)
	if err != nil {
		return err
	}
	if !rcpt.IsOwner(callerID) {
		return ErrNotOwner
	}

	return s.store.SoftDelete(ctx, id, callerID)
}

// ListEntries retrieves the ledger entries of a receipt visible to the
// caller
func (s *Service) ListEntries(ctx context.Context, callerID, id int64) ([]*ledger.Entry, error) {
	if _, err := s.Get(ctx, callerID, id); err != nil {
		return nil, err
	}
	return s.entries.ListByReceiptID(ctx, id)
}

// ReconcileSettleSummary rebuilds the receipt's settle summary from the
// calculator and overlays per-debtor settlement progress from the
// ledger. Called after every settlement event.
func (s *Service) ReconcileSettleSummary(ctx context.Context, receiptID int64) error {
	rcpt, err := s.store.GetByID(ctx, receiptID)
	if err != nil {
		return err
	}
	if rcpt == nil {
		return ErrReceiptNotFound
	}

	breakdown, err := ComputeBreakdown(rcpt)
	if err != nil {
		return err
	}
	summary := BuildSettleSummary(rcpt, breakdown)

	settled, err := s.entries.SettledByDebtor(ctx, receiptID)
	if err != nil {
		return err
	}
	summary = OverlaySettlement(summary, settled, time.Now().UTC())

	return s.store.UpdateSettleSummary(ctx, receiptID, summary)
}

// refreshDerivedState recomputes totals and the settle summary from the
// current draft content
func (s *Service) refreshDerivedState(rcpt *Receipt) error {
	rcpt.RecomputeTotals()

	breakdown, err := ComputeBreakdown(rcpt)
	if err != nil {
		return err
	}
	rcpt.SettleSummary = BuildSettleSummary(rcpt, breakdown)
	return nil
}

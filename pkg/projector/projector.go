// Package projector applies marketplace events to the read-model.
package projector

import (
	"context"
	"fmt"
	"math/big"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/sirupsen/logrus"
)

// Projector is the only writer of the read-model. Events must be applied one
// at a time, in chain order.
type Projector struct {
	store    otc.Store
	notifier otc.Notifier

	log     *logrus.Entry
	metrics *observability.Metrics

	// Strict fails executions and cancellations of unknown listings instead
	// of recording them as orphans.
	Strict bool
}

func New(store otc.Store, notifier otc.Notifier, log *logrus.Logger, metrics *observability.Metrics) *Projector {
	return &Projector{
		store:    store,
		notifier: notifier,
		log:      log.WithField("component", "projector"),
		metrics:  metrics,
	}
}

// outcome is what a projected event leaves behind once its transaction commits.
type outcome struct {
	notification *otc.Notification
	orphan       bool
}

// Apply writes the mutations of ev, then runs every within callback in the
// same transaction. Nothing is written if any step fails. Creations and
// executions are handed to the notifier after commit.
func (p *Projector) Apply(ctx context.Context, ev otc.Event, within ...func(otc.Tx) error) error {
	kind := string(ev.Kind())

	var out outcome
	err := p.store.WithTx(ctx, func(tx otc.Tx) error {
		var err error
		out, err = p.project(ctx, tx, ev)
		if err != nil {
			return err
		}

		for _, fn := range within {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.metrics.ProjectionFailed(kind)
		return fmt.Errorf("apply %s %s: %w", kind, ev.Meta().ID(), err)
	}

	p.metrics.EventProjected(kind)

	if out.orphan {
		p.log.WithFields(logrus.Fields{
			"kind": kind,
			"id":   ev.Meta().ID(),
		}).Warn("listing does not exist, recorded without deactivation")
		p.metrics.OrphanUpdate(kind)
	}

	if out.notification != nil && p.notifier != nil {
		p.notifier.Notify(*out.notification)
	}

	return nil
}

func (p *Projector) project(ctx context.Context, tx otc.Tx, ev otc.Event) (outcome, error) {
	switch e := ev.(type) {
	case *otc.ListingCreated:
		return p.listingCreated(ctx, tx, e)
	case *otc.ListingExecuted:
		return p.listingExecuted(ctx, tx, e)
	case *otc.ListingCancelled:
		return p.listingCancelled(ctx, tx, e)
	case *otc.FeesWithdrawn:
		return outcome{}, p.feesWithdrawn(ctx, tx, e)
	case *otc.FeeRecipientUpdated:
		return outcome{}, p.feeRecipientUpdated(ctx, tx, e)
	default:
		return outcome{}, fmt.Errorf("%w: %T", otc.ErrUnknownEvent, ev)
	}
}

func (p *Projector) listingCreated(ctx context.Context, tx otc.Tx, e *otc.ListingCreated) (outcome, error) {
	if e.ListingID == nil {
		return outcome{}, otc.ErrInvalidInput
	}

	l := &otc.Listing{
		ID:          e.ListingID,
		Seller:      com.LowerAddress(e.Seller),
		Token:       com.LowerAddress(e.Token),
		TokenAmount: e.TokenAmount,
		USDCPrice:   e.USDCPrice,
		ExpiresAt:   e.ExpiresAt,
		IsActive:    true,
		Provenance:  otc.ProvenanceOf(e.Envelope),
	}

	if err := tx.InsertListing(ctx, l); err != nil {
		return outcome{}, err
	}

	return outcome{
		notification: &otc.Notification{Kind: otc.NotificationListing, Listing: l.Snapshot()},
	}, nil
}

// deactivate sets isActive to false on the listing and reports whether it was
// missing. Deactivating an inactive listing leaves it inactive.
func (p *Projector) deactivate(ctx context.Context, tx otc.Tx, id *big.Int) (bool, error) {
	inactive := false

	n, err := tx.UpdateListing(ctx, id, otc.ListingPatch{IsActive: &inactive})
	if err != nil {
		return false, err
	}

	if n > 0 {
		return false, nil
	}

	if p.Strict {
		return false, fmt.Errorf("%w: %s", otc.ErrListingNotFound, id)
	}

	return true, nil
}

func (p *Projector) listingExecuted(ctx context.Context, tx otc.Tx, e *otc.ListingExecuted) (outcome, error) {
	if e.ListingID == nil {
		return outcome{}, otc.ErrInvalidInput
	}

	x := &otc.ListingExecution{
		ID:          e.ID(),
		ListingID:   e.ListingID,
		Seller:      com.LowerAddress(e.Seller),
		Buyer:       com.LowerAddress(e.Buyer),
		Token:       com.LowerAddress(e.Token),
		TokenAmount: e.TokenAmount,
		USDCPrice:   e.USDCPrice,
		ProtocolFee: e.ProtocolFee,
		Provenance:  otc.ProvenanceOf(e.Envelope),
	}

	if err := tx.InsertExecution(ctx, x); err != nil {
		return outcome{}, err
	}

	orphan, err := p.deactivate(ctx, tx, e.ListingID)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		notification: &otc.Notification{Kind: otc.NotificationExecution, Execution: x.Snapshot()},
		orphan:       orphan,
	}, nil
}

func (p *Projector) listingCancelled(ctx context.Context, tx otc.Tx, e *otc.ListingCancelled) (outcome, error) {
	if e.ListingID == nil {
		return outcome{}, otc.ErrInvalidInput
	}

	c := &otc.ListingCancellation{
		ID:         e.ID(),
		ListingID:  e.ListingID,
		Seller:     com.LowerAddress(e.Seller),
		Provenance: otc.ProvenanceOf(e.Envelope),
	}

	if err := tx.InsertCancellation(ctx, c); err != nil {
		return outcome{}, err
	}

	orphan, err := p.deactivate(ctx, tx, e.ListingID)
	if err != nil {
		return outcome{}, err
	}

	return outcome{orphan: orphan}, nil
}

func (p *Projector) feesWithdrawn(ctx context.Context, tx otc.Tx, e *otc.FeesWithdrawn) error {
	return tx.InsertFeeWithdrawal(ctx, &otc.FeeWithdrawal{
		ID:         e.ID(),
		Recipient:  com.LowerAddress(e.Recipient),
		Amount:     e.Amount,
		Provenance: otc.ProvenanceOf(e.Envelope),
	})
}

func (p *Projector) feeRecipientUpdated(ctx context.Context, tx otc.Tx, e *otc.FeeRecipientUpdated) error {
	return tx.InsertFeeRecipientUpdate(ctx, &otc.FeeRecipientUpdate{
		ID:           e.ID(),
		OldRecipient: com.LowerAddress(e.OldRecipient),
		NewRecipient: com.LowerAddress(e.NewRecipient),
		Provenance:   otc.ProvenanceOf(e.Envelope),
	})
}

package api

import (
	"context"

	"github.com/google/uuid"
)

// claimStore is the persistence surface of the claim workflow. Transact
// scopes a claim to one transaction: identity recognition and relationship
// creation either both land or neither does.
type claimStore interface {
	Transact(ctx context.Context, fn func(claimStore) error) error
	RecipientByToken(ctx context.Context, token string) (*Recipient, error)
	IdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	// MarkIdentityClaimed flips the claimed flag and merges profile data
	// supplied by the auth method.
	MarkIdentityClaimed(ctx context.Context, id uuid.UUID, name string, profile map[string]any) error
	// RepointRecipient moves the recipient's bound-identity reference to an
	// existing account. Stored content keeps its original addressing.
	RepointRecipient(ctx context.Context, recipientID, identityID uuid.UUID) error
	AskerForRequest(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error)
	// EnsureRelationship records the asker/respondent pair once; calling it
	// again returns the existing row.
	EnsureRelationship(ctx context.Context, askerID, respondentID uuid.UUID) (Relationship, bool, error)
}

// ClaimInput carries the authenticated identity and whatever profile data
// the auth method supplied.
type ClaimInput struct {
	IdentityID uuid.UUID      `json:"identity_id"`
	Name       string         `json:"name,omitempty"`
	Profile    map[string]any `json:"profile,omitempty"`
}

// ClaimResult reports what the claim changed.
type ClaimResult struct {
	Recipient           Recipient    `json:"recipient"`
	RespondentID        uuid.UUID    `json:"respondent_id"`
	Relationship        Relationship `json:"relationship"`
	RelationshipCreated bool         `json:"relationship_created"`
	Repointed           bool         `json:"repointed"`
}

// ClaimService links a token holder's answers to an authenticated identity.
// Claiming is recognition, never reassignment: content ownership was fixed
// at dispatch time and no bulk reassignment ever happens here.
type ClaimService struct {
	store claimStore
}

// NewClaimService constructs a ClaimService bound to the provided store.
func NewClaimService(store claimStore) *ClaimService {
	return &ClaimService{store: store}
}

// Claim processes an authentication event for the token holder. Idempotent:
// claiming twice with the same identity changes nothing the second time.
func (s *ClaimService) Claim(ctx context.Context, token string, input ClaimInput) (*ClaimResult, error) {
	if input.IdentityID == uuid.Nil {
		return nil, &ValidationError{Rows: []RowError{{Index: 0, Reason: "identity_id is required"}}}
	}

	var result *ClaimResult
	err := s.store.Transact(ctx, func(tx claimStore) error {
		rec, err := tx.RecipientByToken(ctx, token)
		if err != nil {
			return err
		}
		if rec == nil || !rec.Active {
			return ErrInvalidToken
		}

		bound, err := tx.IdentityByID(ctx, rec.IdentityID)
		if err != nil {
			return err
		}
		if bound == nil {
			return ErrNotFound
		}

		respondentID := bound.ID
		repointed := false

		switch {
		case input.IdentityID == bound.ID:
			// The auth method resolved to the identity provisioned at
			// dispatch time: recognize it.
			if err := tx.MarkIdentityClaimed(ctx, bound.ID, input.Name, input.Profile); err != nil {
				return err
			}
		default:
			// The respondent already had an account under a different
			// email. Re-point the binding instead of merging; answers and
			// media stay addressed under whichever identity they were
			// actually stored against.
			auth, err := tx.IdentityByID(ctx, input.IdentityID)
			if err != nil {
				return err
			}
			if auth == nil {
				return ErrNotFound
			}
			if err := tx.RepointRecipient(ctx, rec.ID, auth.ID); err != nil {
				return err
			}
			if !auth.Claimed {
				if err := tx.MarkIdentityClaimed(ctx, auth.ID, input.Name, input.Profile); err != nil {
					return err
				}
			}
			respondentID = auth.ID
			repointed = true
			rec.IdentityID = auth.ID
		}

		askerID, err := tx.AskerForRequest(ctx, rec.RequestID)
		if err != nil {
			return err
		}

		rel, created, err := tx.EnsureRelationship(ctx, askerID, respondentID)
		if err != nil {
			return err
		}

		result = &ClaimResult{
			Recipient:           *rec,
			RespondentID:        respondentID,
			Relationship:        rel,
			RelationshipCreated: created,
			Repointed:           repointed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

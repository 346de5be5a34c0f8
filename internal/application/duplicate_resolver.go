package application

import (
	"context"
	"fmt"

	"kadan/internal/models"
	"kadan/internal/repository"
)

type ClassifyInput struct {
	GuildID      string
	UserID       string
	AuthType     models.AuthType
	AccountRef   string
	Roster       []models.Character
	MinItemLevel float64
}

// DuplicateResolver classifies an attempt in a fixed order: duplicate,
// item level, block. The first failing check wins.
type DuplicateResolver struct {
	identity repository.Identity
	blocks   repository.Block
}

func NewDuplicateResolver(identity repository.Identity, blocks repository.Block) *DuplicateResolver {
	return &DuplicateResolver{identity: identity, blocks: blocks}
}

// Classify returns nil when the attempt is acceptable.
func (d *DuplicateResolver) Classify(ctx context.Context, in ClassifyInput) (*models.Rejection, error) {
	names := models.CharacterNames(in.Roster)

	switch in.AuthType {
	case models.AuthPrimary:
		matches, err := d.identity.FindDuplicates(ctx, in.GuildID, in.UserID, in.AccountRef, names)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicates: %w", err)
		}
		if len(matches) > 0 {
			return &models.Rejection{Reason: models.RejectDuplicate, Duplicates: matches}, nil
		}
	case models.AuthSecondary:
		matches, err := d.identity.FindAccountRefDuplicates(ctx, in.GuildID, in.AccountRef)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicates: %w", err)
		}
		if len(matches) > 0 {
			return &models.Rejection{Reason: models.RejectDuplicateSub, Duplicates: matches}, nil
		}
	default:
		return nil, fmt.Errorf("unknown auth type %q", in.AuthType)
	}

	if in.AuthType == models.AuthPrimary {
		best, ok := models.MaxItemLevel(in.Roster)
		if !ok || best < in.MinItemLevel {
			return &models.Rejection{
				Reason:       models.RejectItemLevel,
				MaxItemLevel: best,
				MinItemLevel: in.MinItemLevel,
			}, nil
		}
	}

	blocked, err := d.blocks.IsAnyBlocked(ctx, in.GuildID, models.IdentityCandidates(in.UserID, in.AccountRef, names))
	if err != nil {
		return nil, fmt.Errorf("failed to check blocks: %w", err)
	}
	if len(blocked) > 0 {
		return &models.Rejection{Reason: models.RejectBlocked, Blocks: blocked}, nil
	}

	return nil, nil
}

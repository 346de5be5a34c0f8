package application

import (
	"context"
	"testing"

	"kadan/internal/models"
)

func TestClassifyOrder(t *testing.T) {
	ctx := context.Background()
	high := testRoster("1,700.00", "Alpha", "Bravo")
	low := testRoster("1,500.00", "Alpha", "Bravo")

	tests := []struct {
		name      string
		authType  models.AuthType
		roster    []models.Character
		duplicate bool
		blocked   bool
		want      models.RejectReason
	}{
		{name: "duplicate wins over level and block", authType: models.AuthPrimary, roster: low, duplicate: true, blocked: true, want: models.RejectDuplicate},
		{name: "level wins over block", authType: models.AuthPrimary, roster: low, blocked: true, want: models.RejectItemLevel},
		{name: "block only", authType: models.AuthPrimary, roster: high, blocked: true, want: models.RejectBlocked},
		{name: "secondary skips level", authType: models.AuthSecondary, roster: low, blocked: true, want: models.RejectBlocked},
		{name: "secondary duplicate", authType: models.AuthSecondary, roster: low, duplicate: true, want: models.RejectDuplicateSub},
		{name: "accepted", authType: models.AuthPrimary, roster: high},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := newMemIdentity()
			blocks := &memBlocks{}
			if tt.duplicate {
				identity.addPrimary(testGuild, "100000000000000009", "555", "Somebody")
			}
			if tt.blocked {
				blocks.Block(ctx, testGuild, []models.BlockCandidate{{Kind: models.AttrNickname, Value: "Bravo"}}, "r", "m")
			}

			rej, err := NewDuplicateResolver(identity, blocks).Classify(ctx, ClassifyInput{
				GuildID:      testGuild,
				UserID:       testUser,
				AuthType:     tt.authType,
				AccountRef:   "555",
				Roster:       tt.roster,
				MinItemLevel: 1680,
			})
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if tt.want == "" {
				if rej != nil {
					t.Fatalf("expected acceptance, got %+v", rej)
				}
				return
			}
			if rej == nil || rej.Reason != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, rej)
			}
		})
	}
}

func TestClassifyItemLevelDetail(t *testing.T) {
	rej, err := NewDuplicateResolver(newMemIdentity(), &memBlocks{}).Classify(context.Background(), ClassifyInput{
		GuildID:      testGuild,
		UserID:       testUser,
		AuthType:     models.AuthPrimary,
		AccountRef:   "555",
		Roster:       append(testRoster("1,610.50", "Alpha"), testRoster("1,655.00", "Bravo")...),
		MinItemLevel: 1680,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rej == nil || rej.MaxItemLevel != 1655 || rej.MinItemLevel != 1680 {
		t.Fatalf("unexpected rejection %+v", rej)
	}
}

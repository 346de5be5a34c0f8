package discord

import (
	"reflect"
	"strings"
	"testing"

	"kadan/internal/models"

	"github.com/bwmarrin/discordgo"
)

func TestCustomIDRoundTrip(t *testing.T) {
	id := customID(idVerifyConfirm, "0b7e2f2e-9b1c-4d55-8c3b-3f6a2a1f0c11")
	prefix, arg := splitCustomID(id)
	if prefix != idVerifyConfirm || arg != "0b7e2f2e-9b1c-4d55-8c3b-3f6a2a1f0c11" {
		t.Fatalf("unexpected split %q %q", prefix, arg)
	}
	if prefix, arg := splitCustomID(idAccountManage); prefix != idAccountManage || arg != "" {
		t.Fatalf("unexpected split of bare id %q %q", prefix, arg)
	}
}

func TestDecodeIDs(t *testing.T) {
	if got := decodeIDs(encodeIDs([]int{3, 17, 42})); !reflect.DeepEqual(got, []int{3, 17, 42}) {
		t.Fatalf("unexpected ids %v", got)
	}
	if got := decodeIDs("1,x,,-2, 5"); !reflect.DeepEqual(got, []int{1, 5}) {
		t.Fatalf("invalid parts must be skipped, got %v", got)
	}
}

func TestModalValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: customID(idVerifyModal, "main"),
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: idProfileLink, Value: "  https://profile.onstove.com/ko/123 "},
			}},
		},
	}
	if got := modalValue(data, idProfileLink); got != "https://profile.onstove.com/ko/123" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := modalValue(data, "missing"); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncate("가나다라마", 3); got != "가나…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("abc", 3); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRejectionMessage(t *testing.T) {
	tests := []struct {
		rej  *models.Rejection
		want string
	}{
		{&models.Rejection{Reason: models.RejectInsufficientCharacters}, "루페온 서버 캐릭터"},
		{&models.Rejection{Reason: models.RejectItemLevel, MinItemLevel: 1680, MaxItemLevel: 1655.5}, "1680.00"},
		{&models.Rejection{Reason: models.RejectSecondaryLimit, Limit: 2}, "최대 부계정 수(2)"},
		{&models.Rejection{Reason: models.RejectSecondaryLimit}, "사용하지 않습니다"},
		{&models.Rejection{Reason: models.RejectGuildNotRegistered}, "/서버등록"},
		{&models.Rejection{Reason: models.RejectDuplicate, Duplicates: []models.DuplicateMatch{
			{Table: models.TableSecondary, DiscordUserID: "42", Nickname: "Zed"},
		}}, "부계정 `Zed` (<@42>)"},
		{&models.Rejection{Reason: models.RejectBlocked, Blocks: []models.BlockedAttribute{
			{Kind: models.AttrNickname, Value: "Zed", Reason: "사기", BlockedBy: "7"},
		}}, "닉네임 `Zed` (사유:사기, 차단자:<@7>)"},
		{nil, msgInternalError},
	}
	for _, tt := range tests {
		if got := rejectionMessage(tt.rej, "루페온"); !strings.Contains(got, tt.want) {
			t.Errorf("rejectionMessage(%+v) = %q, want substring %q", tt.rej, got, tt.want)
		}
	}
}

func TestEventEmbed(t *testing.T) {
	nick := "Alpha"
	embed := eventEmbed(models.Event{
		Kind:    models.EventAccountsRemoved,
		UserID:  "42",
		Cause:   "member_left",
		Removed: models.RemovedAccounts{PrimaryNickname: &nick, Secondaries: []models.SecondarySummary{{SubNumber: 1, Nickname: "Zed"}}},
	})
	for _, want := range []string{"<@42>", "서버 퇴장", "`Alpha`", "#1 `Zed`"} {
		if !strings.Contains(embed.Description, want) {
			t.Errorf("description %q lacks %q", embed.Description, want)
		}
	}

	embed = eventEmbed(models.Event{Kind: models.EventVerified, UserID: "42", AuthType: models.AuthSecondary, SubNumber: 2, Nickname: "Zed"})
	if !strings.Contains(embed.Description, "부계정 2번") || embed.Color != colorGreen {
		t.Errorf("unexpected secondary embed %+v", embed)
	}
}

package lostark

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/board/IsCharacterList", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.FormValue("memberNo") {
		case "84599446":
			w.Write([]byte(`{"encryptMemberNo":"enc+id/=="}`))
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"encryptMemberNo":""}`))
		}
	})
	mux.HandleFunc("/Profile/Member", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "enc+id/==" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/Profile/Character/%EB%AA%A8%EC%BD%94%EC%BD%94", http.StatusFound)
	})
	mux.HandleFunc("/Profile/Character/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/characters/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/characters/모코코/siblings":
			w.Write([]byte(`[
				{"ServerName":"카단","CharacterName":"모코코","CharacterClassName":"바드","ItemAvgLevel":"1,700.00"},
				{"ServerName":"루페온","CharacterName":"부캐","CharacterClassName":"워로드","ItemAvgLevel":"1,620.50"}
			]`))
		case "/characters/broken/siblings":
			w.Write([]byte(`{not json`))
		default:
			w.Write([]byte(`null`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(&Config{
		APIToken:       "token",
		ProfileBaseURL: srv.URL,
		APIBaseURL:     srv.URL,
		Timeout:        5 * time.Second,
	})
}

func TestParseProfileLink(t *testing.T) {
	tests := []struct {
		link string
		ref  string
		ok   bool
	}{
		{"https://profile.onstove.com/ko/84599446", "84599446", true},
		{"  https://profile.onstove.com/ko/84599446/ ", "84599446", true},
		{"https://profile.onstove.com/en/84599446", "", false},
		{"https://profile.onstove.com/ko/abc", "", false},
		{"84599446", "", false},
	}
	for _, tt := range tests {
		ref, ok := ParseProfileLink(tt.link)
		if ref != tt.ref || ok != tt.ok {
			t.Errorf("ParseProfileLink(%q) = %q, %v; want %q, %v", tt.link, ref, ok, tt.ref, tt.ok)
		}
	}
}

func TestResolveChain(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)
	ctx := context.Background()

	ext, err := c.ResolveAccountRef(ctx, "84599446")
	if err != nil {
		t.Fatalf("ResolveAccountRef: %v", err)
	}
	if ext != "enc+id/==" {
		t.Fatalf("unexpected external id %q", ext)
	}

	main, err := c.CurrentMainCharacter(ctx, ext)
	if err != nil {
		t.Fatalf("CurrentMainCharacter: %v", err)
	}
	if main != "모코코" {
		t.Fatalf("expected 모코코, got %q", main)
	}

	roster, err := c.Roster(ctx, main)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(roster))
	}
	if lvl, err := roster[0].ItemLevel(); err != nil || lvl != 1700 {
		t.Fatalf("expected item level 1700, got %v %v", lvl, err)
	}
}

func TestFailuresMapToUnavailable(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)
	ctx := context.Background()

	if _, err := c.ResolveAccountRef(ctx, "500"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("status 500: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.ResolveAccountRef(ctx, "1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty payload: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.CurrentMainCharacter(ctx, "unknown"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("no redirect: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Roster(ctx, "broken"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("malformed roster: expected ErrUnavailable, got %v", err)
	}

	unauth := NewClient(&Config{ProfileBaseURL: srv.URL, APIBaseURL: srv.URL, Timeout: time.Second})
	if _, err := unauth.Roster(ctx, "모코코"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing token: expected ErrUnavailable, got %v", err)
	}
}

func TestUnknownCharacterHasEmptyRoster(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)

	roster, err := c.LookupRosterByNickname(context.Background(), "없는캐릭터")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %+v", roster)
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"valorant-stats/middleware"
	"valorant-stats/riot"
	"valorant-stats/store"

	"github.com/gofiber/fiber/v2"
)

type fakeRiot struct {
	*fakeUpstream
	account    *riot.AccountResponse
	accountErr error
	gotName    string
	gotTag     string
}

func (f *fakeRiot) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error) {
	f.gotName, f.gotTag = gameName, tagLine
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func newLolApp(api *fakeRiot, cache store.MatchCache) *fiber.App {
	fetcher := newFetcher(api, cache)
	svc := NewLolService(api, cache, fetcher, nil, quietLogger())

	app := fiber.New()
	app.Get("/api/lol/player/:gameName/:tagLine", svc.GetPlayer)
	app.Get("/api/lol/matches/:puuid", svc.GetMatches)
	app.Get("/api/lol/match/:matchId", svc.GetMatch)
	app.Post("/api/lol/save-match", svc.SaveMatch)
	app.Post("/api/lol/save-matches", svc.SaveMatches)
	return app
}

func decodeMap(t *testing.T, r io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestGetPlayer(t *testing.T) {
	api := &fakeRiot{
		fakeUpstream: &fakeUpstream{},
		account:      &riot.AccountResponse{PUUID: "p-1", GameName: "Jogador Um", TagLine: "BR1"},
	}
	app := newLolApp(api, store.NewMemoryMatchCache())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/lol/player/Jogador%20Um/BR1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if api.gotName != "Jogador Um" || api.gotTag != "BR1" {
		t.Errorf("expected unescaped riot id, got %q#%q", api.gotName, api.gotTag)
	}
	if body := decodeMap(t, resp.Body); body["puuid"] != "p-1" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGetPlayer_PassesRiotStatus(t *testing.T) {
	api := &fakeRiot{
		fakeUpstream: &fakeUpstream{},
		accountErr:   &riot.APIError{StatusCode: 404, Message: "Data not found - No results found for player with riot id"},
	}
	app := newLolApp(api, store.NewMemoryMatchCache())

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/player/ghost/000", nil))
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeMap(t, resp.Body)
	if !strings.HasPrefix(body["message"].(string), "Data not found") {
		t.Errorf("expected riot message, got %v", body)
	}
}

func TestGetMatches(t *testing.T) {
	api := &fakeRiot{fakeUpstream: &fakeUpstream{ids: []string{"m2", "m1"}}}
	app := newLolApp(api, store.NewMemoryMatchCache())

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/matches/"+testPUUID, nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got []MatchSummary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].MatchID != "m2" || got[1].MatchID != "m1" {
		t.Errorf("unexpected history %+v", got)
	}
}

func TestGetMatches_ListingFailure(t *testing.T) {
	api := &fakeRiot{fakeUpstream: &fakeUpstream{listErr: errors.New("dial tcp: i/o timeout")}}
	app := newLolApp(api, store.NewMemoryMatchCache())

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/matches/"+testPUUID, nil))
	if resp.StatusCode != 502 {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
}

func TestGetMatches_RequestDeadlineStopsFetches(t *testing.T) {
	api := &fakeRiot{fakeUpstream: &fakeUpstream{ids: []string{"m3", "m2", "m1"}, delay: time.Second}}
	cache := store.NewMemoryMatchCache()
	svc := NewLolService(api, cache, newFetcher(api, cache), nil, quietLogger())

	app := fiber.New()
	app.Use(middleware.RequestContextMiddleware(context.Background(), 30*time.Millisecond))
	app.Get("/api/lol/matches/:puuid", svc.GetMatches)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/lol/matches/"+testPUUID, nil), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 504 {
		t.Errorf("expected 504, got %d", resp.StatusCode)
	}
	if n := len(api.fetchedIDs()); n != 1 {
		t.Errorf("expected fetching to stop after the first detail, got %d", n)
	}
	if n, _ := cache.Count(context.Background()); n != 0 {
		t.Errorf("expected nothing cached, got %d", n)
	}
}

func TestGetMatch_CacheThenUpstream(t *testing.T) {
	api := &fakeRiot{fakeUpstream: &fakeUpstream{}}
	cache := store.NewMemoryMatchCache()
	app := newLolApp(api, cache)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/lol/match/BR1_9", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if n := len(api.fetchedIDs()); n != 1 {
		t.Fatalf("expected one upstream fetch, got %d", n)
	}
	if _, err := cache.Get(context.Background(), "BR1_9"); err != nil {
		t.Fatalf("expected match to be cached: %v", err)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/lol/match/BR1_9", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if n := len(api.fetchedIDs()); n != 1 {
		t.Errorf("second request should be served from cache, fetches=%d", n)
	}
}

func TestGetMatch_CachedIDsSurviveLaterRequests(t *testing.T) {
	api := &fakeRiot{fakeUpstream: &fakeUpstream{}}
	cache := store.NewMemoryMatchCache()
	app := newLolApp(api, cache)

	ids := []string{"AAAA_1", "BBBB_2", "CCCC_3"}
	for _, id := range ids {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/lol/match/"+id, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("%s: expected 200, got %d", id, resp.StatusCode)
		}
	}

	found, err := cache.FindByIDs(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != len(ids) {
		t.Fatalf("expected %d cached matches, found %d", len(ids), len(found))
	}
	for _, id := range ids {
		rec, err := store.NewMatchRecord(found[id])
		if err != nil || rec.MatchID != id {
			t.Errorf("%s: cached under the wrong key (%v, %q)", id, err, rec.MatchID)
		}
	}
}

func TestSaveMatch_InsertThenUpdate(t *testing.T) {
	app := newLolApp(&fakeRiot{fakeUpstream: &fakeUpstream{}}, store.NewMemoryMatchCache())
	body := string(matchDoc("BR1_7", testPUUID, 3))

	resp, _ := app.Test(httptest.NewRequest("POST", "/api/lol/save-match", strings.NewReader(body)))
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201 on insert, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("POST", "/api/lol/save-match", strings.NewReader(body)))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
}

func TestSaveMatch_RequiresMatchID(t *testing.T) {
	app := newLolApp(&fakeRiot{fakeUpstream: &fakeUpstream{}}, store.NewMemoryMatchCache())

	for _, body := range []string{``, `{}`, `{"metadata":{}}`, `not json`} {
		resp, _ := app.Test(httptest.NewRequest("POST", "/api/lol/save-match", strings.NewReader(body)))
		if resp.StatusCode != 400 {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestSaveMatches_SkipsInvalidEntries(t *testing.T) {
	cache := store.NewMemoryMatchCache()
	app := newLolApp(&fakeRiot{fakeUpstream: &fakeUpstream{}}, cache)

	body := "[" + string(matchDoc("a", testPUUID, 1)) + `, {"metadata":{}}, null, ` + string(matchDoc("b", testPUUID, 2)) + "]"
	resp, _ := app.Test(httptest.NewRequest("POST", "/api/lol/save-matches", strings.NewReader(body)))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decodeMap(t, resp.Body)
	if out["inserted"].(float64) != 2 || out["skipped"].(float64) != 2 {
		t.Errorf("unexpected result %v", out)
	}
	if n, _ := cache.Count(context.Background()); n != 2 {
		t.Errorf("expected 2 cached, got %d", n)
	}
}

func TestSaveMatches_NoneValid(t *testing.T) {
	app := newLolApp(&fakeRiot{fakeUpstream: &fakeUpstream{}}, store.NewMemoryMatchCache())

	for _, body := range []string{`[]`, `[{}]`, `{"metadata":{"matchId":"x"}}`} {
		resp, _ := app.Test(httptest.NewRequest("POST", "/api/lol/save-matches", strings.NewReader(body)))
		if resp.StatusCode != 400 {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

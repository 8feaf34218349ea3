package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playconnect/apiserver/types"
)

func TestUpdateProfilePartial(t *testing.T) {
	env := newTestEnv(t, false)

	user, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	rec := env.doJSON(t, http.MethodPut, "/api/players/profile", token, types.ProfileUpdate{
		Position: strPtr(types.PositionForward),
		Age:      intPtr(19),
		Team:     strPtr("FC United"),
		Skills:   &types.Skills{Pace: intPtr(88), Shooting: intPtr(74)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}

	// A second edit touching only the bio must leave the rest intact.
	rec = env.doJSON(t, http.MethodPut, "/api/players/profile", token, types.ProfileUpdate{
		Bio: strPtr("Quick winger."),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second update status %d: %s", rec.Code, rec.Body.String())
	}

	var parsed UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	updated := parsed.User
	if updated.ID != user.ID {
		t.Fatalf("updated wrong account: %d", updated.ID)
	}
	if updated.Position != types.PositionForward || updated.Team != "FC United" {
		t.Fatalf("earlier fields were clobbered: %+v", updated)
	}
	if updated.Age == nil || *updated.Age != 19 {
		t.Fatalf("age lost: %+v", updated.Age)
	}
	if updated.Skills.Pace == nil || *updated.Skills.Pace != 88 {
		t.Fatalf("skills lost: %+v", updated.Skills)
	}
	if updated.Bio != "Quick winger." {
		t.Fatalf("bio not applied: %q", updated.Bio)
	}
}

func TestGetOwnProfile(t *testing.T) {
	env := newTestEnv(t, false)

	user, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	rec := env.doJSON(t, http.MethodGet, "/api/players/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status %d: %s", rec.Code, rec.Body.String())
	}

	var parsed ProfileResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.User.ID != user.ID {
		t.Fatalf("profile resolved user %d, expected %d", parsed.User.ID, user.ID)
	}

	body := env.doJSON(t, http.MethodGet, "/api/players/profile", token, nil)
	raw := decodeBody(t, body)
	userObj := raw["user"].(map[string]any)
	if _, present := userObj["password_hash"]; present {
		t.Fatal("profile response leaked the password hash")
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newTestEnv(t, false)

	_, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	longBio := make([]byte, 501)
	for i := range longBio {
		longBio[i] = 'x'
	}

	cases := []struct {
		name   string
		update types.ProfileUpdate
	}{
		{"unknown position", types.ProfileUpdate{Position: strPtr("Striker")}},
		{"unknown foot", types.ProfileUpdate{DominantFoot: strPtr("Neither")}},
		{"age too low", types.ProfileUpdate{Age: intPtr(12)}},
		{"age too high", types.ProfileUpdate{Age: intPtr(41)}},
		{"height too low", types.ProfileUpdate{Height: intPtr(120)}},
		{"weight too high", types.ProfileUpdate{Weight: intPtr(130)}},
		{"skill too low", types.ProfileUpdate{Skills: &types.Skills{Pace: intPtr(0)}}},
		{"skill too high", types.ProfileUpdate{Skills: &types.Skills{Shooting: intPtr(101)}}},
		{"bio too long", types.ProfileUpdate{Bio: strPtr(string(longBio))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.doJSON(t, http.MethodPut, "/api/players/profile", token, tc.update)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateProfilePublishesEvent(t *testing.T) {
	env := newTestEnv(t, false)

	_, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	rec := env.doJSON(t, http.MethodPut, "/api/players/profile", token, types.ProfileUpdate{
		Age: intPtr(21),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}

	events := env.broker.eventTypes()
	if len(events) != 2 || events[1] != "player.profile_updated" {
		t.Fatalf("expected registered+profile_updated events, got %v", events)
	}
}

func TestSearchPlayers(t *testing.T) {
	env := newTestEnv(t, false)

	seedPlayer := func(name, email, position string, age, pace int) {
		user, token := env.register(t, name, email, "secret1", "player")
		rec := env.doJSON(t, http.MethodPut, "/api/players/profile", token, types.ProfileUpdate{
			Position: strPtr(position),
			Age:      intPtr(age),
			Skills:   &types.Skills{Pace: intPtr(pace)},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("seed %s: status %d", user.Email, rec.Code)
		}
	}

	seedPlayer("Fast Forward", "ff@example.com", types.PositionForward, 19, 92)
	seedPlayer("Slow Forward", "sf@example.com", types.PositionForward, 31, 55)
	seedPlayer("Young Keeper", "yk@example.com", types.PositionGoalkeeper, 16, 40)
	_, scoutToken := env.register(t, "Scout", "scout@example.com", "secret1", "scout")

	t.Run("by position", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/players/search?position=Forward", scoutToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("search status %d: %s", rec.Code, rec.Body.String())
		}
		var parsed SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if parsed.Count != 2 {
			t.Fatalf("expected 2 forwards, got %d", parsed.Count)
		}
		for _, p := range parsed.Players {
			if p.Email != "" {
				t.Fatalf("search leaked an email: %q", p.Email)
			}
		}
	})

	t.Run("by age range", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/players/search?minAge=15&maxAge=20", scoutToken, nil)
		var parsed SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if parsed.Count != 2 {
			t.Fatalf("expected 2 players aged 15-20, got %d", parsed.Count)
		}
	})

	t.Run("by skill threshold", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/players/search?skill=pace&minRating=80", scoutToken, nil)
		var parsed SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if parsed.Count != 1 || parsed.Players[0].Name != "Fast Forward" {
			t.Fatalf("expected only the fast forward, got %+v", parsed.Players)
		}
	})

	t.Run("scouts are never listed", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/players/search", scoutToken, nil)
		var parsed SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, p := range parsed.Players {
			if p.Role != types.RolePlayer {
				t.Fatalf("non-player in results: %+v", p)
			}
		}
		if parsed.Count != 3 {
			t.Fatalf("expected the 3 players, got %d", parsed.Count)
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/players/search", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without a token, got %d", rec.Code)
		}
	})
}

func TestSearchResultCap(t *testing.T) {
	env := newTestEnv(t, false)

	for i := 0; i < 55; i++ {
		env.register(t, fmt.Sprintf("Player %d", i), fmt.Sprintf("p%d@example.com", i), "secret1", "player")
	}
	_, token := env.register(t, "Scout", "scout@example.com", "secret1", "scout")

	rec := env.doJSON(t, http.MethodGet, "/api/players/search", token, nil)
	var parsed SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Count != 50 {
		t.Fatalf("expected results capped at 50, got %d", parsed.Count)
	}
}

func TestSearchParamValidation(t *testing.T) {
	env := newTestEnv(t, false)

	_, token := env.register(t, "Scout", "scout@example.com", "secret1", "scout")

	for _, path := range []string{
		"/api/players/search?minAge=abc",
		"/api/players/search?maxAge=1.5",
		"/api/players/search?minRating=high",
		"/api/players/search?skill=luck&minRating=50",
		"/api/players/search?position=Striker",
	} {
		rec := env.doJSON(t, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	// A skill without a threshold is ignored, not an error.
	rec := env.doJSON(t, http.MethodGet, "/api/players/search?skill=pace", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("skill without minRating should be ignored, got %d", rec.Code)
	}
}

func TestProfileImageUpload(t *testing.T) {
	env := newTestEnv(t, true)

	_, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	// Minimal PNG signature so content sniffing passes.
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 64)...)

	rec := uploadImage(t, env, token, "avatar.png", png)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}

	var parsed UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if parsed.User.ProfileImage == "" {
		t.Fatal("profile image key not recorded")
	}

	// The stored object must be readable back through the API.
	get := env.doJSON(t, http.MethodGet, "/api/players/image/"+parsed.User.ProfileImage, token, nil)
	if get.Code != http.StatusOK {
		t.Fatalf("image fetch status %d", get.Code)
	}
	if !bytes.Equal(get.Body.Bytes(), png) {
		t.Fatal("fetched image does not match upload")
	}

	// Replacing the image must delete the old object.
	firstKey := parsed.User.ProfileImage
	rec = uploadImage(t, env, token, "avatar2.png", png)
	if rec.Code != http.StatusOK {
		t.Fatalf("second upload status %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := env.objects.objects[firstKey]; ok {
		t.Fatal("replaced image object was not deleted")
	}
}

func TestProfileImageUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv(t, true)

	_, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	rec := uploadImage(t, env, token, "notes.txt", []byte("just some text"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-image upload, got %d", rec.Code)
	}
}

func TestProfileImageUploadDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	_, token := env.register(t, "Alex", "alex@example.com", "secret1", "player")

	rec := uploadImage(t, env, token, "avatar.png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a storage backend, got %d", rec.Code)
	}
}

func uploadImage(t *testing.T, env *testEnv, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(formFieldImage, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/players/profile/image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

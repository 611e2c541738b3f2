package controller_test

import (
	"net/http"
	"strings"
	"testing"
)

type profileData struct {
	Bio       string `json:"bio"`
	Gender    string `json:"gender"`
	DOB       string `json:"dob"`
	City      string `json:"city"`
	Avatar    string `json:"avatar"`
	AvatarURL string `json:"avatar_url"`
}

func TestProfileJSONUpdate(t *testing.T) {
	app := newTestApp(t, false)
	_, session := app.registerVerified(t, "Ada", "ada@example.com", "secret123")

	res := app.json(t, http.MethodPut, "/profile", session, map[string]string{
		"bio":    "<b>Mathematician</b>",
		"gender": "female",
		"dob":    "1815-12-10",
		"city":   " London ",
	})
	if res.code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.code, res.raw)
	}
	var profile profileData
	res.data(t, &profile)
	if profile.Bio != "Mathematician" || profile.Gender != "female" || profile.DOB != "1815-12-10" || profile.City != "London" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	res = app.json(t, http.MethodPut, "/profile", session, map[string]string{"gender": ""})
	if res.code != http.StatusOK {
		t.Fatalf("expected clearing gender to succeed, got %d: %s", res.code, res.raw)
	}
	res.data(t, &profile)
	if profile.Gender != "" || profile.City != "London" {
		t.Fatalf("expected only gender cleared: %+v", profile)
	}
}

func TestProfileValidation(t *testing.T) {
	app := newTestApp(t, false)
	_, session := app.registerVerified(t, "Ada", "ada@example.com", "secret123")

	cases := []map[string]string{
		{"gender": "robot"},
		{"dob": "10/12/1815"},
		{"dob": "2999-01-01"},
		{"phone": strings.Repeat("1", 21)},
		{"bio": strings.Repeat("a", 1001)},
	}
	for _, body := range cases {
		res := app.json(t, http.MethodPut, "/profile", session, body)
		if res.code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for %v, got %d: %s", body, res.code, res.raw)
		}
	}
}

func TestProfileAvatarUpload(t *testing.T) {
	app := newTestApp(t, false)
	_, session := app.registerVerified(t, "Ada", "ada@example.com", "secret123")

	res := app.multipart(t, "/profile", session, map[string]string{"city": "Paris"}, pngAvatar)
	if res.code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.code, res.raw)
	}
	var profile profileData
	res.data(t, &profile)
	if profile.City != "Paris" || profile.Avatar == "" || profile.AvatarURL != "http://cdn.test/"+profile.Avatar {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	first := profile.Avatar

	res = app.multipart(t, "/profile", session, nil, pngAvatar)
	if res.code != http.StatusOK {
		t.Fatalf("expected avatar replacement, got %d", res.code)
	}
	res.data(t, &profile)
	if profile.Avatar == first {
		t.Fatalf("expected a new avatar path")
	}
	if _, ok := app.blobs.blobs[first]; ok {
		t.Fatalf("expected old avatar deleted")
	}

	res = app.multipart(t, "/profile", session, nil, []byte("GIF89a not allowed"))
	if res.code != http.StatusUnprocessableEntity || res.body.Errors["avatar"] == "" {
		t.Fatalf("expected avatar rejected, got %d: %s", res.code, res.raw)
	}
}

func TestProfileDelete(t *testing.T) {
	app := newTestApp(t, false)
	_, session := app.registerVerified(t, "Ada", "ada@example.com", "secret123")

	if res := app.json(t, http.MethodDelete, "/profile", session, nil); res.code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d", res.code)
	}
	if res := app.json(t, http.MethodGet, "/profile", session, nil); res.code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.code)
	}
	if res := app.json(t, http.MethodPut, "/profile", session, map[string]string{"city": "Rome"}); res.code != http.StatusOK {
		t.Fatalf("expected update to recreate the profile, got %d", res.code)
	}
}

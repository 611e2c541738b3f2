package controller_test

import (
	"fmt"
	"net/http"
	"testing"
)

type directoryPage struct {
	Users []struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	} `json:"users"`
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

func TestDirectoryListsVerifiedOnly(t *testing.T) {
	app := newTestApp(t, false)
	var firstID uint64
	for i := 0; i < 11; i++ {
		id, _ := app.registerVerified(t, fmt.Sprintf("User %02d", i), fmt.Sprintf("user%d@example.com", i), "secret123")
		if i == 0 {
			firstID = id
		}
	}
	ghostID := app.register(t, "Ghost", "ghost@example.com", "secret123")

	res := app.json(t, http.MethodGet, "/users", "", nil)
	if res.code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.code)
	}
	var page directoryPage
	res.data(t, &page)
	if len(page.Users) != 10 || page.Total != 11 || page.LastPage != 2 || page.PerPage != 10 {
		t.Fatalf("unexpected first page: %+v", page)
	}

	res = app.json(t, http.MethodGet, "/users?page=2", "", nil)
	res.data(t, &page)
	if len(page.Users) != 1 || page.Page != 2 {
		t.Fatalf("unexpected second page: %+v", page)
	}

	if res = app.json(t, http.MethodGet, fmt.Sprintf("/users/%d", ghostID), "", nil); res.code != http.StatusNotFound {
		t.Fatalf("expected unverified user hidden, got %d", res.code)
	}
	if res = app.json(t, http.MethodGet, fmt.Sprintf("/users/%d", firstID), "", nil); res.code != http.StatusOK {
		t.Fatalf("expected verified user visible, got %d", res.code)
	}
}

func TestDirectoryHugePage(t *testing.T) {
	app := newTestApp(t, false)
	app.registerVerified(t, "Ada", "ada@example.com", "secret123")

	res := app.json(t, http.MethodGet, "/users?page=922337203685477581", "", nil)
	if res.code != http.StatusOK {
		t.Fatalf("expected 200 for huge page, got %d: %s", res.code, res.raw)
	}
	var page directoryPage
	res.data(t, &page)
	if len(page.Users) != 0 || page.Total != 1 {
		t.Fatalf("unexpected page past the end: %+v", page)
	}
}

func TestDirectorySearch(t *testing.T) {
	app := newTestApp(t, false)
	app.registerVerified(t, "Ada Lovelace", "ada@example.com", "secret123")
	app.registerVerified(t, "Charles Babbage", "charles@example.com", "secret123")

	res := app.json(t, http.MethodGet, "/users/search?q=lovelace", "", nil)
	if res.code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.code, res.raw)
	}
	var users []struct {
		Name string `json:"name"`
	}
	res.data(t, &users)
	if len(users) != 1 || users[0].Name != "Ada Lovelace" {
		t.Fatalf("unexpected search result: %+v", users)
	}

	if res = app.json(t, http.MethodGet, "/users/search", "", nil); res.code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without query, got %d", res.code)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, false)
	rec := app.json(t, http.MethodGet, "/health", "", nil)
	if rec.code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.code)
	}
}

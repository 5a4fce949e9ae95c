package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"stock-exchange/internal/apperr"
)

func TestPagingFromQuery(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"no params uses defaults", "", 0, 10},
		{"explicit values kept", "offset=5&limit=25", 5, 25},
		{"negative offset clamped", "offset=-3&limit=4", 0, 4},
		{"non-numeric falls back to zero value", "offset=abc&limit=xyz", 0, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/stocks?"+c.query, nil)
			got := pagingFromQuery(r)
			if got.Offset != c.wantOffset || got.Limit != c.wantLimit {
				t.Errorf("pagingFromQuery() = %+v, want offset=%d limit=%d", got, c.wantOffset, c.wantLimit)
			}
		})
	}
}

func TestParseIDListParam(t *testing.T) {
	ids, err := parseIDListParam("[1,2,3]")
	if err != nil {
		t.Fatalf("parseIDListParam: %v", err)
	}
	want := []int64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestParseIDListParamRejectsNonArray(t *testing.T) {
	if _, err := parseIDListParam("not-json"); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}

func TestWriteErrMapsKindToStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeErr(w, apperr.BadRequest("bad input"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	if got, want := w.Body.String(), "{\"error\":\"bad input\"}\n"; got != want {
		t.Fatalf("expected body %q, got %q", want, got)
	}
}

func TestWriteErrIncludesDeficitForInsufficient(t *testing.T) {
	w := httptest.NewRecorder()
	writeErr(w, apperr.Insufficient("short on cash", 150))

	if w.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected a response body carrying the deficit")
	}
	want := "{\"succeed\":false,\"message\":\"short on cash\",\"error\":\"short on cash\",\"lack\":150}\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("expected body %q, got %q", want, got)
	}
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(w, r)

	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id to be set")
	}
}

func TestUserIDFromMissingContextDefaultsZero(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	if got := userIDFrom(r); got != 0 {
		t.Fatalf("expected 0 for a request with no session context, got %d", got)
	}
}

package apperr

import (
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindMethodNotAllowed, http.StatusMethodNotAllowed},
		{KindInsufficient, http.StatusNotAcceptable},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("Kind(%d).HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestInsufficientCarriesDeficit(t *testing.T) {
	err := Insufficient("short on cash", 150)
	ae := As(err)
	if ae.Kind != KindInsufficient {
		t.Fatalf("expected KindInsufficient, got %v", ae.Kind)
	}
	if ae.Result == nil || ae.Result.Lack == nil || *ae.Result.Lack != 150 {
		t.Fatalf("expected Lack=150, got %+v", ae.Result)
	}
	if ae.Result.Succeed {
		t.Fatal("expected Succeed=false")
	}
}

func TestAsWrapsUnknownError(t *testing.T) {
	ae := As(&wrappedErr{"boom"})
	if ae.Kind != KindInternal {
		t.Fatalf("expected KindInternal, got %v", ae.Kind)
	}
	if ae.Message != "boom" {
		t.Fatalf("expected message 'boom', got %q", ae.Message)
	}
}

func TestAsNil(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("expected nil")
	}
}

type wrappedErr struct{ msg string }

func (e *wrappedErr) Error() string { return e.msg }

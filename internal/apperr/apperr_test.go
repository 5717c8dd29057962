package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("failed to insert reading: %w", NewStoreUnavailable("insert reading", base))

	if !IsStoreUnavailable(err) {
		t.Fatalf("expected store unavailable, got kind %q", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Errorf("cause lost through wrapping")
	}
	if HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", HTTPStatus(err))
	}
}

func TestJoinedErrorsKeepKind(t *testing.T) {
	err := errors.Join(
		NewStoreUnavailable("insert alert 2", errors.New("timeout")),
		NewStoreUnavailable("insert alert 3", errors.New("timeout")),
	)
	if !IsStoreUnavailable(err) {
		t.Fatalf("joined error lost its kind")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidation("validate", "bad"), http.StatusBadRequest},
		{NewNotFound("mark read", "alert 9 not found"), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

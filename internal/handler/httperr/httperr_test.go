package httperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&nucleus.ConfigError{Field: "min_length", Message: "too big"}, http.StatusBadRequest},
		{&nucleus.EncodingError{Input: "\x00", Reason: "control character"}, http.StatusUnprocessableEntity},
		{&nucleus.ModelError{Backend: "ark", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", chatservice.ErrSessionNotFound), http.StatusNotFound},
		{persona.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

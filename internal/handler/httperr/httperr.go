// Package httperr maps domain errors to HTTP responses.
package httperr

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/model/user"
	"github.com/autama/autama/backend/internal/nucleus"
	"github.com/autama/autama/backend/internal/service/account"
	"github.com/autama/autama/backend/internal/service/autama"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/pkg/utils"
)

var statusTable = []struct {
	target error
	status int
}{
	{nucleus.ErrConfig, http.StatusBadRequest},
	{nucleus.ErrEncoding, http.StatusUnprocessableEntity},
	{nucleus.ErrModelUnavailable, http.StatusServiceUnavailable},
	{chatservice.ErrSessionNotFound, http.StatusNotFound},
	{chatservice.ErrPersonaRequired, http.StatusBadRequest},
	{chatservice.ErrForbidden, http.StatusForbidden},
	{persona.ErrNotFound, http.StatusNotFound},
	{persona.ErrTraitsRequired, http.StatusBadRequest},
	{user.ErrNotFound, http.StatusNotFound},
	{user.ErrDuplicate, http.StatusConflict},
	{autama.ErrNameRequired, http.StatusBadRequest},
	{autama.ErrInvalidAmount, http.StatusBadRequest},
	{account.ErrUsernameRequired, http.StatusBadRequest},
	{account.ErrPasswordTooShort, http.StatusBadRequest},
	{account.ErrInvalidCredentials, http.StatusUnauthorized},
	{account.ErrInvalidToken, http.StatusUnauthorized},
}

// Status returns the HTTP status for err, 500 when it is unknown.
func Status(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.target) {
			return entry.status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Write responds with the mapped status. Internal errors are logged and
// hidden from the client.
func Write(w http.ResponseWriter, err error) {
	status := Status(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
		message = "internal server error"
	}
	utils.RespondError(w, status, message)
}

package utils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/bytedance/sonic"
)

// MaxBodyBytes bounds JSON request bodies and websocket frames.
const MaxBodyBytes = 1 << 20

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		log.Printf("failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// DecodeJSON reads a bounded JSON request body into v. An empty body is an
// error.
func DecodeJSON(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return errors.New("request body too large")
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

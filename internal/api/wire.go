package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
	"github.com/Kartikvyas1604/PhantomPool/internal/engine"
)

// hexBytes is a byte string carried as hex in JSON.
type hexBytes []byte

func (b hexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *hexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// fixed copies b into dst, which must have exactly len(b) bytes.
func (b hexBytes) fixed(dst []byte, field string) error {
	if len(b) != len(dst) {
		return fmt.Errorf("%s must be %d bytes, got %d", field, len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var errMissingCaller = errors.New("missing or invalid " + CallerHeader + " header")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "request"})
}

// writeError maps an engine error kind to an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindReplay, engine.KindState, engine.KindTiming:
		return http.StatusConflict
	case engine.KindProof:
		return http.StatusUnprocessableEntity
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindTransfer:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func caller(r *http.Request) (domain.PublicKey, error) {
	pk, err := domain.ParsePublicKey(r.Header.Get(CallerHeader))
	if err != nil || pk.IsZero() {
		return domain.PublicKey{}, errMissingCaller
	}
	return pk, nil
}

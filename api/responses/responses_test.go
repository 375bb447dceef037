package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteSuccess(rec, map[string]string{"pseudo": "marie"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["pseudo"] != "marie" {
		t.Fatalf("unexpected data: %+v", envelope.Data)
	}
}

func TestWriteErrorValidationKeepsMessageAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "seats must be between 1 and 8").
		WithDetails(map[string]any{"field": "places"})

	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "seats must be between 1 and 8" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
	if envelope.Error.Details["field"] != "places" {
		t.Fatalf("unexpected details: %+v", envelope.Error.Details)
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
	if envelope.Error.Message == "pq: connection refused" {
		t.Fatalf("internal detail leaked to the client")
	}
}

func TestWriteErrorRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeRateLimited, "too many login attempts"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

func TestWriteErrorDomainStatuses(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeInsufficientFunds: http.StatusBadRequest,
		pkgerrors.CodeNoSeatsAvailable:  http.StatusBadRequest,
		pkgerrors.CodeTooLateToCancel:   http.StatusBadRequest,
		pkgerrors.CodeStateConflict:     http.StatusConflict,
		pkgerrors.CodeForbidden:         http.StatusForbidden,
	}
	for code, want := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, pkgerrors.New(code, "refused"))
		if rec.Code != want {
			t.Fatalf("code %s: expected %d got %d", code, want, rec.Code)
		}
	}
}

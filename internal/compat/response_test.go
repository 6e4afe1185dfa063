package compat

import (
	"testing"

	"extended-hl-adapter/internal/extended"
)

func TestOrderIDFromResponse(t *testing.T) {
	env := orderEnvelope(extended.PlacedOrder{ID: 777, ExternalID: "cl-1"})
	if got := OrderIDFromResponse(env); got != "777" {
		t.Fatalf("OrderIDFromResponse = %q", got)
	}
	if got := CloidFromResponse(env); got != "cl-1" {
		t.Fatalf("CloidFromResponse = %q", got)
	}
	if got := OrderIDFromResponse(nil); got != "" {
		t.Fatalf("nil response should yield empty id, got %q", got)
	}
	if got := OrderIDFromResponse(errorEnvelope("boom")); got != "" {
		t.Fatalf("err envelope should yield empty id, got %q", got)
	}
}

func TestOrderIDFromDecodedJSON(t *testing.T) {
	// Values that crossed a JSON boundary arrive as float64.
	env := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"data": map[string]any{
				"statuses": []any{
					map[string]any{"resting": map[string]any{"oid": float64(12345), "cloid": "abc"}},
				},
			},
		},
	}
	if got := OrderIDFromResponse(env); got != "12345" {
		t.Fatalf("OrderIDFromResponse = %q", got)
	}
	if got := CloidFromResponse(env); got != "abc" {
		t.Fatalf("CloidFromResponse = %q", got)
	}
}

func TestIsOKAndErrorMessage(t *testing.T) {
	ok := orderEnvelope(extended.PlacedOrder{ID: 1})
	if !IsOK(ok) {
		t.Error("ok envelope reported not ok")
	}
	if msg := ErrorMessage(ok); msg != "" {
		t.Errorf("ok envelope carried error %q", msg)
	}

	bad := errorEnvelope("insufficient margin")
	if IsOK(bad) {
		t.Error("err envelope reported ok")
	}
	if msg := ErrorMessage(bad); msg != "insufficient margin" {
		t.Errorf("ErrorMessage = %q", msg)
	}
	if ErrorMessage(nil) != "" {
		t.Error("nil envelope should have no message")
	}
}

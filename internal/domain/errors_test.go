package domain_test

import (
	"errors"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

func TestClassify_SentinelErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.FailureKind
	}{
		{"nil error", nil, domain.Transient},
		{"entity type not registered", domain.ErrEntityTypeNotRegistered, domain.Permanent},
		{"no data to push", domain.ErrNoDataToPush, domain.Permanent},
		{"payload too large", domain.ErrPayloadTooLarge, domain.Permanent},
		{"sentinel text without wrapping", errors.New("push failed: " + domain.ErrNoDataToPush.Error()), domain.Transient},
		{"unknown error", errors.New("connection reset by peer"), domain.Transient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassify_RemoteSubstrings(t *testing.T) {
	cases := []struct {
		msg  string
		want domain.FailureKind
	}{
		{"Access Denied for user", domain.Permanent},
		{"ValidationError: name is required", domain.Permanent},
		{"missing required field 'email'", domain.Permanent},
		{"violates unique constraint", domain.Permanent},
		{"timeout waiting for response", domain.Transient},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			if got := domain.Classify(errors.New(tc.msg)); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
			}
		})
	}
}

package domain_test

import (
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

func TestBatchOutcome_IsFailed(t *testing.T) {
	cases := []struct {
		name             string
		successes, fails int
		want             bool
	}{
		{"empty batch", 0, 0, false},
		{"all success", 10, 0, false},
		{"exactly at threshold", 2, 8, true},
		{"just under threshold", 3, 7, false},
		{"all failures", 0, 5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := domain.BatchOutcome{Successes: tc.successes, Failures: tc.fails}
			if got := o.IsFailed(); got != tc.want {
				t.Fatalf("IsFailed() = %v, want %v", got, tc.want)
			}
		})
	}
}

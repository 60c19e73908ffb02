package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/domain"
)

func TestStopErr(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		clean bool
	}{
		{"nil", nil, true},
		{"cancelled", fmt.Errorf("feed: %w", context.Canceled), true},
		{"quit", dispatch.ErrQuit, true},
		{"feed timeout", fmt.Errorf("feed: kraken: %w", domain.ErrFeedTimeout), false},
		{"consistency", fmt.Errorf("dispatch: %w", domain.ErrConsistency), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stopErr(tt.err)
			if tt.clean && got != nil {
				t.Fatalf("stopErr(%v) = %v, want nil", tt.err, got)
			}
			if !tt.clean && !errors.Is(got, tt.err) {
				t.Fatalf("stopErr(%v) = %v, want the error", tt.err, got)
			}
		})
	}
}

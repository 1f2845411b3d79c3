package batch

import (
	"context"
	"errors"
	"testing"
)

func TestChunkError(t *testing.T) {
	tests := []struct {
		name string
		err  *ChunkError
		want string
		is   error
	}{
		{
			name: "call failure",
			err:  &ChunkError{Index: 3, Size: 10, Err: errors.New("503 service unavailable")},
			want: "chunk 3 (10 items): 503 service unavailable",
		},
		{
			name: "cancelled before submission",
			err:  &ChunkError{Index: 0, Size: 2, Err: context.Canceled},
			want: "chunk 0 (2 items): context canceled",
			is:   context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if tt.is != nil && !errors.Is(tt.err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.is)
			}
		})
	}
}

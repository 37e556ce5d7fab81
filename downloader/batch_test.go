package downloader

import (
	"testing"

	"hostfetch/internal"
)

func TestBatchResultAllSuccess(t *testing.T) {
	batch := &BatchResult{}
	batch.Add(ItemResult{URL: "http://x/a", Kind: internal.OK})
	batch.Add(ItemResult{URL: "http://x/b", Kind: internal.OK})

	if got := batch.Representative(); got != internal.OK {
		t.Errorf("expected OK representative, got %v", got)
	}
	if got := batch.ExitCode(); got != 0 {
		t.Errorf("expected exit code 0, got %d", got)
	}
	if batch.Failed() != 0 {
		t.Errorf("expected 0 failures, got %d", batch.Failed())
	}
}

func TestBatchResultSingleItemSurfacesOwnCode(t *testing.T) {
	batch := &BatchResult{}
	batch.Add(ItemResult{URL: "http://x/a", Kind: internal.ErrLinkDead})

	if got := batch.ExitCode(); got != int(internal.ErrLinkDead) {
		t.Errorf("single item should surface its own code %d, got %d",
			int(internal.ErrLinkDead), got)
	}
}

func TestBatchResultMultipleItemsShiftFirstFailure(t *testing.T) {
	tests := []struct {
		name  string
		kinds []internal.ErrorKind
		want  int
	}{
		{
			name:  "first failure wins",
			kinds: []internal.ErrorKind{internal.OK, internal.ErrNetwork, internal.ErrLinkDead},
			want:  internal.FatalMultipleBase + int(internal.ErrNetwork),
		},
		{
			name:  "failure in first position",
			kinds: []internal.ErrorKind{internal.ErrFatal, internal.OK},
			want:  internal.FatalMultipleBase + int(internal.ErrFatal),
		},
		{
			name:  "all failed",
			kinds: []internal.ErrorKind{internal.ErrCaptcha, internal.ErrCaptcha},
			want:  internal.FatalMultipleBase + int(internal.ErrCaptcha),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := &BatchResult{}
			for _, kind := range tt.kinds {
				batch.Add(ItemResult{Kind: kind})
			}
			if got := batch.ExitCode(); got != tt.want {
				t.Errorf("expected exit code %d, got %d", tt.want, got)
			}
		})
	}
}

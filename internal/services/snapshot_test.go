package services

import (
	"testing"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
)

func TestEvaluateSnapshot(t *testing.T) {
	ready := types.ConsistencySnapshot{
		StickerCount: 3,
		CoverSet:     true,
		CoverValid:   true,
		DoneUploads:  3,
	}

	cases := []struct {
		name       string
		mutate     func(s *types.ConsistencySnapshot)
		wantOK     bool
		wantReason string
	}{
		{
			name:   "publishable",
			mutate: func(s *types.ConsistencySnapshot) {},
			wantOK: true,
		},
		{
			name:       "failed_upload_blocks",
			mutate:     func(s *types.ConsistencySnapshot) { s.FailedUploads = 1 },
			wantReason: ReasonUploadsFailed,
		},
		{
			name:       "processing_upload_blocks",
			mutate:     func(s *types.ConsistencySnapshot) { s.ProcessingUploads = 2 },
			wantReason: ReasonUploadsProcessing,
		},
		{
			name:       "pending_upload_blocks",
			mutate:     func(s *types.ConsistencySnapshot) { s.PendingUploads = 1 },
			wantReason: ReasonUploadsPending,
		},
		{
			name:       "cover_not_set",
			mutate:     func(s *types.ConsistencySnapshot) { s.CoverSet = false },
			wantReason: ReasonCoverMissing,
		},
		{
			name:       "cover_points_at_missing_item",
			mutate:     func(s *types.ConsistencySnapshot) { s.CoverValid = false },
			wantReason: ReasonCoverMissing,
		},
		{
			name: "empty_pack_with_valid_cover_reports_count",
			mutate: func(s *types.ConsistencySnapshot) {
				s.StickerCount = 0
			},
			wantReason: ReasonNotEnoughStickers,
		},
		{
			name: "failed_wins_over_everything",
			mutate: func(s *types.ConsistencySnapshot) {
				s.FailedUploads = 1
				s.ProcessingUploads = 1
				s.PendingUploads = 1
				s.CoverSet = false
				s.StickerCount = 0
			},
			wantReason: ReasonUploadsFailed,
		},
		{
			name: "processing_wins_over_pending_and_cover",
			mutate: func(s *types.ConsistencySnapshot) {
				s.ProcessingUploads = 1
				s.PendingUploads = 1
				s.CoverSet = false
			},
			wantReason: ReasonUploadsProcessing,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ready
			tc.mutate(&s)
			ok, reason := EvaluateSnapshot(s)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if reason != tc.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tc.wantReason)
			}
		})
	}
}

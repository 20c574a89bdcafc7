package domain

import "testing"

func TestDecodeModelPayload(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		wantKind PayloadKind
		wantText string
	}{
		{
			name:     "chunk array",
			raw:      `[{"type":"text","data":{"content":"Visit the service center."}}]`,
			wantKind: PayloadChunkArray,
			wantText: "Visit the service center.",
		},
		{
			name:     "chunk object",
			raw:      `{"type":"text","data":{"content":"Apply online."}}`,
			wantKind: PayloadChunkObject,
			wantText: "Apply online.",
		},
		{
			name:     "answer object",
			raw:      `{"answer":"You need form B-12."}`,
			wantKind: PayloadAnswer,
			wantText: "You need form B-12.",
		},
		{
			name:     "message wrapper",
			raw:      `{"message":"ok","data":{"content":"Check the portal."}}`,
			wantKind: PayloadMessage,
			wantText: "Check the portal.",
		},
		{
			name:     "plain text",
			raw:      "  Just a plain answer.  ",
			wantKind: PayloadRaw,
			wantText: "Just a plain answer.",
		},
		{
			name:     "malformed chunk array falls back to raw",
			raw:      `[{"type" oops`,
			wantKind: PayloadRaw,
			wantText: `[{"type" oops`,
		},
		{
			name:     "message wrapper without content falls back to raw",
			raw:      `{"message":"hello"}`,
			wantKind: PayloadRaw,
			wantText: `{"message":"hello"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeModelPayload(tc.raw)
			if got.Kind != tc.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tc.wantKind)
			}
			if got.Text() != tc.wantText {
				t.Errorf("Text() = %q, want %q", got.Text(), tc.wantText)
			}
		})
	}
}

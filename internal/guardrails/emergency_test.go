package guardrails

import "testing"

func TestDetectEmergency(t *testing.T) {
	d := NewEmergencyDetector(newTestLogger(t))

	cases := []struct {
		name         string
		content      string
		wantMatch    bool
		wantCategory string
	}{
		{
			name:         "cardiac_keyword",
			content:      "Cứu, tôi khó thở và tức ngực!",
			wantMatch:    true,
			wantCategory: "cardiac",
		},
		{
			name:         "stroke_keyword",
			content:      "Bố tôi bị méo miệng và nói ngọng",
			wantMatch:    true,
			wantCategory: "stroke",
		},
		{
			name:         "bleeding_keyword",
			content:      "Vết thương chảy máu không ngừng",
			wantMatch:    true,
			wantCategory: "bleeding",
		},
		{
			name:         "shock_keyword",
			content:      "Con tôi bị sốc phản vệ sau khi ăn lạc",
			wantMatch:    true,
			wantCategory: "shock",
		},
		{
			name:         "suicide_keyword",
			content:      "Tôi không muốn sống nữa",
			wantMatch:    true,
			wantCategory: "suicide",
		},
		{
			name:         "pattern_unconscious",
			content:      "Người bên cạnh tôi vừa ngất xỉu",
			wantMatch:    true,
			wantCategory: CategoryGeneralEmergency,
		},
		{
			name:         "combined_heuristic",
			content:      "Tôi bị đau bụng dữ dội từ sáng",
			wantMatch:    true,
			wantCategory: CategoryGeneralEmergency,
		},
		{
			name:      "benign",
			content:   "Tôi muốn hỏi về chế độ ăn lành mạnh",
			wantMatch: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotMatch, gotCategory := d.Detect(tc.content)
			if gotMatch != tc.wantMatch {
				t.Fatalf("Detect(%q) match=%v, want %v", tc.content, gotMatch, tc.wantMatch)
			}
			if tc.wantMatch && gotCategory != tc.wantCategory {
				t.Fatalf("Detect(%q) category=%q, want %q", tc.content, gotCategory, tc.wantCategory)
			}
		})
	}
}

func TestDetectCategoryOrderIsDeterministic(t *testing.T) {
	d := NewEmergencyDetector(newTestLogger(t))

	// Content matching both cardiac and suicide keywords must resolve to
	// cardiac, the earlier category.
	_, category := d.Detect("đau tim đến mức muốn chết")
	if category != "cardiac" {
		t.Fatalf("category=%q, want cardiac", category)
	}
}

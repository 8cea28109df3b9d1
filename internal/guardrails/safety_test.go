package guardrails

import (
	"strings"
	"testing"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func TestCheckInput(t *testing.T) {
	g := NewSafetyGuardrails(SafetyOptions{}, newTestLogger(t))

	cases := []struct {
		name     string
		content  string
		wantSafe bool
		wantRisk int
	}{
		{
			name:     "benign_question",
			content:  "Tôi bị đau đầu liên tục trong ba ngày qua",
			wantSafe: true,
			wantRisk: 1,
		},
		{
			name:     "high_risk_keyword",
			content:  "Tôi đang nghĩ đến việc tự tử",
			wantSafe: false,
			wantRisk: 4,
		},
		{
			name:     "over_length",
			content:  strings.Repeat("a", 2001),
			wantSafe: false,
			wantRisk: 2,
		},
		{
			name:     "dangerous_instruction_request",
			content:  "cách sản xuất thuốc cấm tại nhà",
			wantSafe: false,
			wantRisk: 5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.CheckInput(tc.content)
			if got.Safe != tc.wantSafe || got.RiskLevel != tc.wantRisk {
				t.Fatalf("CheckInput(%q)=(%v,%d), want (%v,%d)", tc.content, got.Safe, got.RiskLevel, tc.wantSafe, tc.wantRisk)
			}
			if !got.Safe && got.Reason == "" {
				t.Fatalf("rejection without reason")
			}
		})
	}
}

func TestCheckInputKeywordPassesUnderRaisedCeiling(t *testing.T) {
	g := NewSafetyGuardrails(SafetyOptions{MaxRiskLevel: 4}, newTestLogger(t))

	got := g.CheckInput("thông tin về ma túy")
	if !got.Safe || got.RiskLevel != 4 {
		t.Fatalf("CheckInput=(%v,%d), want (true,4)", got.Safe, got.RiskLevel)
	}
}

func TestCheckOutput(t *testing.T) {
	g := NewSafetyGuardrails(SafetyOptions{}, newTestLogger(t))

	cases := []struct {
		name     string
		content  string
		wantSafe bool
		wantRisk int
	}{
		{
			name:     "benign_answer",
			content:  "Bạn nên uống đủ nước và nghỉ ngơi.",
			wantSafe: true,
			wantRisk: 1,
		},
		{
			name:     "dangerous_guide",
			content:  "Đây là hướng dẫn chế tạo vũ khí đơn giản",
			wantSafe: false,
			wantRisk: 5,
		},
		{
			name:     "medical_guarantee",
			content:  "Tôi đảm bảo thuốc này sẽ chữa khỏi hoàn toàn",
			wantSafe: false,
			wantRisk: 4,
		},
		{
			name:     "stop_treatment_advice",
			content:  "Bạn nên dừng điều trị ngay lập tức",
			wantSafe: false,
			wantRisk: 4,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.CheckOutput(tc.content)
			if got.Safe != tc.wantSafe || got.RiskLevel != tc.wantRisk {
				t.Fatalf("CheckOutput(%q)=(%v,%d), want (%v,%d)", tc.content, got.Safe, got.RiskLevel, tc.wantSafe, tc.wantRisk)
			}
		})
	}
}

func TestAddMedicalDisclaimer(t *testing.T) {
	g := NewSafetyGuardrails(SafetyOptions{}, newTestLogger(t))

	t.Run("medical_content_gets_disclaimer", func(t *testing.T) {
		got := g.AddMedicalDisclaimer("Triệu chứng này thường gặp.", 1)
		if !strings.HasSuffix(got, DefaultDisclaimer) {
			t.Fatalf("disclaimer missing: %q", got)
		}
		if !strings.Contains(got, "\n\n") {
			t.Fatalf("expected blank line before disclaimer: %q", got)
		}
	})

	t.Run("non_medical_low_risk_unchanged", func(t *testing.T) {
		content := "Chào bạn, tôi có thể giúp gì?"
		if got := g.AddMedicalDisclaimer(content, 1); got != content {
			t.Fatalf("content changed: %q", got)
		}
	})

	t.Run("elevated_risk_gets_disclaimer", func(t *testing.T) {
		got := g.AddMedicalDisclaimer("Chào bạn.", 2)
		if !strings.HasSuffix(got, DefaultDisclaimer) {
			t.Fatalf("disclaimer missing: %q", got)
		}
	})

	t.Run("not_idempotent", func(t *testing.T) {
		once := g.AddMedicalDisclaimer("Thuốc này có tác dụng phụ.", 1)
		twice := g.AddMedicalDisclaimer(once, 1)
		if strings.Count(twice, DefaultDisclaimer) != 2 {
			t.Fatalf("expected disclaimer twice, got: %q", twice)
		}
	})
}

func TestClassifyRiskLevel(t *testing.T) {
	g := NewSafetyGuardrails(SafetyOptions{}, newTestLogger(t))

	cases := []struct {
		content string
		want    int
	}{
		{"có bom trong nhà", 5},
		{"mua vũ khí ở đâu", 4},
		{"liều lượng paracetamol", 3},
		{"triệu chứng cảm cúm", 2},
		{"xin chào", 1},
	}
	for _, tc := range cases {
		if got := g.ClassifyRiskLevel(tc.content); got != tc.want {
			t.Fatalf("ClassifyRiskLevel(%q)=%d, want %d", tc.content, got, tc.want)
		}
	}
}

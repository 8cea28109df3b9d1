package guardrails

import (
	"regexp"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

const (
	DefaultMaxRiskLevel = 3
	maxInputLength      = 2000

	// DefaultDisclaimer is appended to medical-content responses.
	DefaultDisclaimer = "Lưu ý: Thông tin được cung cấp chỉ mang tính chất tham khảo và không thay thế cho tư vấn y tế chuyên nghiệp."
)

var defaultHighRiskKeywords = []string{
	"tự tử",
	"giết",
	"đau khổ",
	"thuốc bất hợp pháp",
	"ma túy",
	"vũ khí",
	"bom",
	"tấn công",
	"nguy hiểm",
	"cách chế tạo",
}

var defaultMedicalKeywords = []string{
	"điều trị",
	"thuốc",
	"liều lượng",
	"tác dụng phụ",
	"bệnh",
	"triệu chứng",
	"chẩn đoán",
	"nguyên nhân",
	"phòng ngừa",
}

var (
	dangerousRequestRe  = regexp.MustCompile(`(làm thế nào|cách) (để|tạo ra|chế tạo|sản xuất) (vũ khí|bom|chất độc|thuốc)`)
	dangerousGuideRe    = regexp.MustCompile(`(cách|hướng dẫn|bước) (tạo ra|chế tạo|sản xuất) (vũ khí|bom|chất độc|thuốc)`)
	stopTreatmentRe     = regexp.MustCompile(`(nên|hãy) (dừng|ngừng|bỏ) (điều trị|thuốc|liệu pháp)`)
	severeRiskClassifRe = wordBoundaryRe([]string{"tự tử", "giết người", "bom"})
	mediumRiskClassifRe = wordBoundaryRe([]string{"liều lượng", "tác dụng phụ", "ngừng thuốc"})
)

func wordBoundaryRe(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(^|[^\p{L}\p{N}])(` + strings.Join(quoted, "|") + `)($|[^\p{L}\p{N}])`)
}

// SafetyGuardrails is the deterministic gate in front of every model call:
// keyword and regex checks on the way in, symmetric checks on generated text
// on the way out, and disclaimer injection for medical content.
type SafetyGuardrails struct {
	maxRiskLevel     int
	disclaimer       string
	highRiskKeywords []string
	medicalKeywords  []string
	log              *logger.Logger
}

// SafetyOptions overrides the compiled-in defaults; zero values keep them.
type SafetyOptions struct {
	MaxRiskLevel     int
	Disclaimer       string
	HighRiskKeywords []string
	MedicalKeywords  []string
}

func NewSafetyGuardrails(opts SafetyOptions, log *logger.Logger) *SafetyGuardrails {
	g := &SafetyGuardrails{
		maxRiskLevel:     DefaultMaxRiskLevel,
		disclaimer:       DefaultDisclaimer,
		highRiskKeywords: defaultHighRiskKeywords,
		medicalKeywords:  defaultMedicalKeywords,
		log:              log.With("component", "safety_guardrails"),
	}
	if opts.MaxRiskLevel > 0 {
		g.maxRiskLevel = opts.MaxRiskLevel
	}
	if opts.Disclaimer != "" {
		g.disclaimer = opts.Disclaimer
	}
	if len(opts.HighRiskKeywords) > 0 {
		g.highRiskKeywords = opts.HighRiskKeywords
	}
	if len(opts.MedicalKeywords) > 0 {
		g.medicalKeywords = opts.MedicalKeywords
	}
	return g
}

// SafetyVerdict is the outcome of one gate check.
type SafetyVerdict struct {
	Safe      bool
	RiskLevel int
	Reason    string
}

// CheckInput scores an inbound message. High-risk keywords set risk 4 and
// reject only above the configured ceiling; over-length content and dangerous
// instruction requests always reject.
func (g *SafetyGuardrails) CheckInput(content string) SafetyVerdict {
	lower := strings.ToLower(content)

	for _, kw := range g.highRiskKeywords {
		if strings.Contains(lower, kw) {
			const risk = 4
			if risk > g.maxRiskLevel {
				return SafetyVerdict{Safe: false, RiskLevel: risk, Reason: "Nội dung chứa từ khóa có rủi ro cao: " + kw}
			}
			return SafetyVerdict{Safe: true, RiskLevel: risk}
		}
	}

	if len([]rune(lower)) > maxInputLength {
		return SafetyVerdict{Safe: false, RiskLevel: 2, Reason: "Nội dung vượt quá độ dài cho phép"}
	}

	if dangerousRequestRe.MatchString(lower) {
		return SafetyVerdict{Safe: false, RiskLevel: 5, Reason: "Yêu cầu không phù hợp về cách tạo ra vật nguy hiểm"}
	}

	return SafetyVerdict{Safe: true, RiskLevel: 1}
}

// CheckOutput scores generated text: dangerous instructions, unwarranted
// medical guarantees, and advice to stop treatment all reject.
func (g *SafetyGuardrails) CheckOutput(content string) SafetyVerdict {
	lower := strings.ToLower(content)

	if dangerousGuideRe.MatchString(lower) {
		return SafetyVerdict{Safe: false, RiskLevel: 5, Reason: "Phản hồi chứa hướng dẫn tạo vật nguy hiểm"}
	}

	if strings.Contains(lower, "tôi đảm bảo") && g.containsMedicalKeyword(lower) {
		return SafetyVerdict{Safe: false, RiskLevel: 4, Reason: "Phản hồi đưa ra đảm bảo y tế không phù hợp"}
	}

	if stopTreatmentRe.MatchString(lower) {
		return SafetyVerdict{Safe: false, RiskLevel: 4, Reason: "Phản hồi khuyên dừng điều trị y tế"}
	}

	return SafetyVerdict{Safe: true, RiskLevel: 1}
}

// AddMedicalDisclaimer appends the disclaimer when the content looks medical
// or the risk level is elevated. Not idempotent: callers append exactly once
// per response.
func (g *SafetyGuardrails) AddMedicalDisclaimer(content string, riskLevel int) string {
	if !g.containsMedicalKeyword(strings.ToLower(content)) && riskLevel <= 1 {
		return content
	}
	if strings.HasSuffix(content, "\n") {
		content += "\n"
	} else {
		content += "\n\n"
	}
	return content + g.disclaimer
}

// ClassifyRiskLevel is a coarse 1-5 heuristic over raw content, used for
// diagnostics rather than gating.
func (g *SafetyGuardrails) ClassifyRiskLevel(content string) int {
	lower := strings.ToLower(content)

	if severeRiskClassifRe.MatchString(lower) {
		return 5
	}
	for _, kw := range []string{"ma túy", "vũ khí", "chế tạo"} {
		if strings.Contains(lower, kw) {
			return 4
		}
	}
	if mediumRiskClassifRe.MatchString(lower) {
		return 3
	}
	for _, kw := range []string{"điều trị", "bệnh", "triệu chứng"} {
		if strings.Contains(lower, kw) {
			return 2
		}
	}
	return 1
}

func (g *SafetyGuardrails) containsMedicalKeyword(lower string) bool {
	for _, kw := range g.medicalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

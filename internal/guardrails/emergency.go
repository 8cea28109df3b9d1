package guardrails

import (
	"regexp"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

const CategoryGeneralEmergency = "general_emergency"

// emergencyCategories is iterated in declaration order; the first matching
// category wins, so the order is part of the contract.
var emergencyCategories = []struct {
	name     string
	keywords []string
}{
	{"cardiac", []string{
		"đau tim", "nhồi máu cơ tim", "đau thắt ngực",
		"khó thở dữ dội", "đau ngực dữ dội", "tức ngực",
	}},
	{"stroke", []string{
		"đột quỵ", "tê liệt nửa người", "méo miệng",
		"nói ngọng", "đột ngột", "nhìn mờ",
	}},
	{"bleeding", []string{
		"chảy máu dữ dội", "chảy máu không ngừng",
		"chảy máu nhiều", "mất máu",
	}},
	{"shock", []string{
		"sốc phản vệ", "khó thở cấp", "ngứa toàn thân",
		"nổi mề đay đột ngột", "phù nề",
	}},
	{"suicide", []string{
		"tự tử", "muốn chết", "không muốn sống",
		"kết thúc cuộc đời", "kết liễu",
	}},
}

var emergencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(khó thở|ngạt thở) (dữ dội|nghiêm trọng|không thở được)`),
	regexp.MustCompile(`(đau|tức) ngực (dữ dội|không chịu nổi|quá mức)`),
	regexp.MustCompile(`bất tỉnh|ngất xỉu|hôn mê`),
	regexp.MustCompile(`(chảy máu|xuất huyết) (nhiều|nghiêm trọng|không ngừng)`),
	regexp.MustCompile(`gãy xương hở|chấn thương đầu nặng|ngã từ trên cao`),
}

// EmergencyDetector flags medical emergencies by keyword set, then regex
// pattern, then a combined urgency heuristic. It runs independently of intent
// classification and ahead of it in the pipeline: this is a hard safety
// control, not routing.
type EmergencyDetector struct {
	log *logger.Logger
}

func NewEmergencyDetector(log *logger.Logger) *EmergencyDetector {
	return &EmergencyDetector{log: log.With("component", "emergency_detector")}
}

// Detect returns whether content describes an emergency and which category.
// Short-circuits on the first match.
func (d *EmergencyDetector) Detect(content string) (bool, string) {
	lower := strings.ToLower(content)

	for _, cat := range emergencyCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				d.log.Warn("Emergency detected", "category", cat.name, "keyword", kw)
				return true, cat.name
			}
		}
	}

	for _, re := range emergencyPatterns {
		if re.MatchString(lower) {
			d.log.Warn("Emergency detected by pattern", "pattern", re.String())
			return true, CategoryGeneralEmergency
		}
	}

	if (strings.Contains(lower, "đau") && strings.Contains(lower, "dữ dội")) ||
		strings.Contains(lower, "cấp cứu") ||
		(strings.Contains(lower, "gấp") && strings.Contains(lower, "ngay")) {
		d.log.Warn("Emergency detected by combined heuristic")
		return true, CategoryGeneralEmergency
	}

	return false, ""
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hiuminee/carebot-backend/internal/guardrails"
	"github.com/hiuminee/carebot-backend/internal/logger"
)

// SafetyFile is the on-disk override format for the guardrail defaults.
type SafetyFile struct {
	MaxRiskLevel     int      `yaml:"max_risk_level"`
	Disclaimer       string   `yaml:"disclaimer"`
	HighRiskKeywords []string `yaml:"high_risk_keywords"`
	MedicalKeywords  []string `yaml:"medical_keywords"`
}

// LoadSafetyOptions reads the YAML file named by SAFETY_CONFIG_PATH. An
// unset path keeps the compiled-in defaults; a set-but-broken path is an
// error so a typo cannot silently weaken the guardrails.
func LoadSafetyOptions(log *logger.Logger) (guardrails.SafetyOptions, error) {
	path := strings.TrimSpace(os.Getenv("SAFETY_CONFIG_PATH"))
	if path == "" {
		return guardrails.SafetyOptions{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return guardrails.SafetyOptions{}, fmt.Errorf("read safety config: %w", err)
	}

	var file SafetyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return guardrails.SafetyOptions{}, fmt.Errorf("parse safety config: %w", err)
	}
	if file.MaxRiskLevel < 0 || file.MaxRiskLevel > 5 {
		return guardrails.SafetyOptions{}, fmt.Errorf("safety config: max_risk_level %d out of range", file.MaxRiskLevel)
	}

	log.Info("loaded safety config overrides", "path", path,
		"high_risk_keywords", len(file.HighRiskKeywords),
		"medical_keywords", len(file.MedicalKeywords))

	return guardrails.SafetyOptions{
		MaxRiskLevel:     file.MaxRiskLevel,
		Disclaimer:       file.Disclaimer,
		HighRiskKeywords: file.HighRiskKeywords,
		MedicalKeywords:  file.MedicalKeywords,
	}, nil
}

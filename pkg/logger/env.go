package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// DetectEnv читает APP_ENV, затем LOG_ENV; по умолчанию dev.
func DetectEnv() Env {
	for _, key := range []string{"APP_ENV", "LOG_ENV"} {
		if v := os.Getenv(key); v != "" {
			return ParseEnv(v)
		}
	}
	return EnvDev
}

func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

// Package config は環境変数と.envファイルからアプリケーション設定を読み込みます。
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はサーバーと検出バックエンドの設定です。
type Config struct {
	Port            string  // HTTPリスンポート
	DetectorBackend string  // "yolo"（ローカルモデル）または "vision"（Cloud Vision API）
	ModelPath       string  // ONNXモデルのパス（yoloバックエンド用）
	LabelsPath      string  // クラス名リストのパス（1行1クラス）
	InputSize       int     // モデル入力サイズ（正方形）
	ConfThreshold   float64 // 信頼度しきい値
}

// Load は.envを読み込んだうえで設定を組み立てます。.envが無い場合は
// システム環境変数のみを使用します。
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DetectorBackend: getEnv("DETECTOR_BACKEND", "yolo"),
		ModelPath:       getEnv("MODEL_PATH", "./models/sample_model/best.onnx"),
		LabelsPath:      getEnv("LABELS_PATH", "./models/sample_model/labels.txt"),
		InputSize:       getEnvInt("INPUT_SIZE", 768),
		ConfThreshold:   getEnvFloat("CONF_THRESHOLD", 0.5),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[WARN] invalid %s=%q; using default %d", key, val, defaultVal)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[WARN] invalid %s=%q; using default %g", key, val, defaultVal)
		return defaultVal
	}
	return f
}

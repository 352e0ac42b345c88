package main

import (
	"context"
	"fmt"
	"log"

	"detection_backend/internal/app/di"
	"detection_backend/internal/app/router"
	"detection_backend/internal/config"
	"detection_backend/internal/feature/detection/transport/handler"
	"detection_backend/internal/feature/detection/usecase"
)

func main() {
	// log.Fatalはdeferを実行しないため、リソース解放はrun内のdeferに任せる
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	ctx := context.Background()

	// 検出モデルはプロセス起動時に一度だけ読み込み、以後は読み取り専用で共有する
	detector, closeDetector, err := di.NewObjectDetector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize detector backend %q: %w", cfg.DetectorBackend, err)
	}
	defer func() {
		if err := closeDetector(); err != nil {
			log.Println("[ERROR] Failed to close detector:", err)
		}
	}()

	// Usecase
	detectionUC := usecase.NewDetectionUsecase(detector)

	// Handler
	detectionH := handler.NewDetectionHandler(detectionUC)

	// ルータ生成
	r := router.NewRouter(detectionH)

	return r.Run(":" + cfg.Port)
}

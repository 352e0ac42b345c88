// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"

	"detection_backend/internal/config"
	"detection_backend/internal/feature/detection/adapters/vision"
	"detection_backend/internal/feature/detection/adapters/yolo"
	"detection_backend/internal/feature/detection/usecase"
)

// NewObjectDetector creates the detector backend selected by configuration.
// The default is the local YOLO (gocv DNN) backend; "vision" selects the
// Cloud Vision API backend. The returned close function releases the backend
// at process shutdown.
func NewObjectDetector(ctx context.Context, cfg *config.Config) (usecase.ObjectDetector, func() error, error) {
	switch cfg.DetectorBackend {
	case "vision":
		client, err := vision.NewClient(ctx, cfg.ConfThreshold)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	case "yolo":
		// DetectPreset is the live model configuration; env values override it.
		preset := yolo.DetectPreset
		if cfg.InputSize > 0 {
			preset.InputSize = cfg.InputSize
		}
		if cfg.ConfThreshold > 0 {
			preset.ConfThreshold = float32(cfg.ConfThreshold)
		}
		model, err := yolo.NewModel(cfg.ModelPath, cfg.LabelsPath, preset)
		if err != nil {
			return nil, nil, err
		}
		return model, model.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown detector backend: %q", cfg.DetectorBackend)
	}
}

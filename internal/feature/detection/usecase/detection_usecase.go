// Package usecase はdetectionフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"detection_backend/internal/feature/detection/domain/entity"
	"detection_backend/internal/platform/imaging"
)

// MaxImageSize は画像アップロードの最大サイズ（10MB）です。
const MaxImageSize = 10 * 1024 * 1024

// ErrInference は外部モデルの推論失敗を表します。リトライは行いません。
var ErrInference = errors.New("object detection inference failed")

// ObjectDetector は画像からオブジェクトを検出するインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type ObjectDetector interface {
	// Detect は信頼度しきい値以上の検出結果をモデル出力順で返します。
	// 検出ゼロはエラーではなく、長さ0の正常な結果です。
	Detect(ctx context.Context, img imaging.Image) (entity.DetectionSet, error)
}

// detectionUsecase は検出結果を3種類のレスポンス形態へ変換するロジックを提供します。
// リクエストごとに デコード → 推論 → 変換 → エンコード を1回ずつ同期的に実行し、
// リクエスト間で共有する可変状態は持ちません。
type detectionUsecase struct {
	detector ObjectDetector
}

// NewDetectionUsecase はdetectionUsecaseの新しいインスタンスを生成します。
func NewDetectionUsecase(d ObjectDetector) *detectionUsecase {
	return &detectionUsecase{detector: d}
}

// decodeAndDetect は1リクエスト分のデコードと推論を実行します。
// 返されたImageの解放は呼び出し側の責任です。
func (u *detectionUsecase) decodeAndDetect(ctx context.Context, imageData []byte) (imaging.Image, entity.DetectionSet, error) {
	if len(imageData) == 0 {
		return imaging.Image{}, nil, fmt.Errorf("%w: image data is empty", imaging.ErrDecode)
	}
	if len(imageData) > MaxImageSize {
		return imaging.Image{}, nil, fmt.Errorf("%w: image size exceeds maximum of %d bytes", imaging.ErrDecode, MaxImageSize)
	}

	img, err := imaging.Decode(imageData)
	if err != nil {
		return imaging.Image{}, nil, err
	}

	detections, err := u.detector.Detect(ctx, img)
	if err != nil {
		if cerr := img.Close(); cerr != nil {
			slog.Warn("画像の解放に失敗", "error", cerr)
		}
		return imaging.Image{}, nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	return img, detections, nil
}

// DetectObjects は画像データから検出結果をモデル出力順で返します。
func (u *detectionUsecase) DetectObjects(ctx context.Context, imageData []byte) (entity.DetectionSet, error) {
	img, detections, err := u.decodeAndDetect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := img.Close(); err != nil {
			slog.Warn("画像の解放に失敗", "error", err)
		}
	}()

	return detections, nil
}

// AnnotateObjects は検出ボックスとラベルを描画したJPEGを返します。
// 検出ゼロの場合は「NO OBJECTS DETECTED.」バナーを描画した画像を返します。
func (u *detectionUsecase) AnnotateObjects(ctx context.Context, imageData []byte) ([]byte, error) {
	img, detections, err := u.decodeAndDetect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := img.Close(); err != nil {
			slog.Warn("画像の解放に失敗", "error", err)
		}
	}()

	var rendered imaging.Image
	if len(detections) == 0 {
		slog.Info("no objects detected", "mode", "annotate")
		rendered = imaging.DrawNoObjectsBanner(img)
	} else {
		rendered = imaging.Annotate(img, detections)
	}
	defer func() {
		if err := rendered.Close(); err != nil {
			slog.Warn("画像の解放に失敗", "error", err)
		}
	}()

	return imaging.Encode(rendered)
}

// CensorObjects は検出領域を検閲したJPEGを返します。このレスポンスモードの
// 検閲方法はblur固定です。検出ゼロの場合はAnnotateObjectsと同じバナー画像を返します。
func (u *detectionUsecase) CensorObjects(ctx context.Context, imageData []byte) ([]byte, error) {
	img, detections, err := u.decodeAndDetect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := img.Close(); err != nil {
			slog.Warn("画像の解放に失敗", "error", err)
		}
	}()

	if len(detections) == 0 {
		slog.Info("no objects detected", "mode", "censor")
		banner := imaging.DrawNoObjectsBanner(img)
		defer func() {
			if err := banner.Close(); err != nil {
				slog.Warn("画像の解放に失敗", "error", err)
			}
		}()
		return imaging.Encode(banner)
	}

	censored, err := imaging.Censor(img, detections, entity.CensorBlur)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := censored.Close(); err != nil {
			slog.Warn("画像の解放に失敗", "error", err)
		}
	}()

	return imaging.Encode(censored)
}

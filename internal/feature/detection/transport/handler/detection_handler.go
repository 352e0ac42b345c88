// Package handler はdetectionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"detection_backend/internal/api"
	"detection_backend/internal/feature/detection/domain/entity"
	"detection_backend/internal/feature/detection/usecase"
	"detection_backend/internal/platform/imaging"
)

// noObjectsMessage は検出ゼロ時のJSONモードメッセージです。
const noObjectsMessage = "No objects detected."

// jpegContentType は画像レスポンスのContent-Typeです。
const jpegContentType = "image/jpeg"

// DetectionUsecase はオブジェクト検出のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DetectionUsecase interface {
	DetectObjects(ctx context.Context, imageData []byte) (entity.DetectionSet, error)
	AnnotateObjects(ctx context.Context, imageData []byte) ([]byte, error)
	CensorObjects(ctx context.Context, imageData []byte) ([]byte, error)
}

// DetectionHandler はオブジェクト検出のHTTPリクエストを処理します。
type DetectionHandler struct {
	uc DetectionUsecase
}

// NewDetectionHandler はDetectionHandlerの新しいインスタンスを生成します。
func NewDetectionHandler(uc DetectionUsecase) *DetectionHandler {
	return &DetectionHandler{uc: uc}
}

// readImageFile はmultipartのfileフィールドから画像バイト列を読み込みます。
// 失敗時はレスポンスを書き込んでfalseを返します。
func (h *DetectionHandler) readImageFile(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		slog.Warn("画像ファイルの取得に失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "画像ファイルが必要です"})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		slog.Error("画像ファイルのオープンに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "画像の読み込みに失敗しました"})
		return nil, false
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("画像ファイルのクローズに失敗", "error", err)
		}
	}()

	imageData, err := io.ReadAll(f)
	if err != nil {
		slog.Error("画像データの読み取りに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "画像の読み込みに失敗しました"})
		return nil, false
	}

	return imageData, true
}

// respondError はエラー種別をHTTPステータスへ対応付けます。
// デコード失敗はクライアント起因（400）、推論失敗は外部コラボレーター起因（502）です。
// どちらもリトライせず、リクエスト単位で失敗します。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, imaging.ErrDecode):
		slog.Warn("画像のデコードに失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "画像を読み取れませんでした"})
	case errors.Is(err, usecase.ErrInference):
		slog.Error("オブジェクト検出に失敗", "error", err)
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "オブジェクト検出に失敗しました"})
	default:
		slog.Error("検出リクエストの処理に失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "リクエストの処理に失敗しました"})
	}
}

// ToJSON は画像をアップロードして検出結果をJSONで返します。
//
// エンドポイント: POST /detection/img_object_detection_to_json
// Content-Type: multipart/form-data
// フィールド: file（画像ファイル、最大10MB）
func (h *DetectionHandler) ToJSON(c *gin.Context) {
	imageData, ok := h.readImageFile(c)
	if !ok {
		return
	}

	detections, err := h.uc.DetectObjects(c.Request.Context(), imageData)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(detections) == 0 {
		slog.Info(noObjectsMessage)
		c.JSON(http.StatusOK, api.NoObjectsResponse{Message: noObjectsMessage})
		return
	}

	objects := make([]api.DetectedObjectResponse, 0, len(detections))
	for _, d := range detections {
		objects = append(objects, api.DetectedObjectResponse{
			Name:       d.ClassName,
			Confidence: d.Confidence,
		})
	}

	c.JSON(http.StatusOK, api.DetectionResponse{
		DetectObjectsNames: strings.Join(detections.Names(), ", "),
		DetectObjects:      objects,
	})
}

// ToImage は画像をアップロードして検出ボックスを描画したJPEGを返します。
//
// エンドポイント: POST /detection/img_object_detection_to_img
func (h *DetectionHandler) ToImage(c *gin.Context) {
	imageData, ok := h.readImageFile(c)
	if !ok {
		return
	}

	annotated, err := h.uc.AnnotateObjects(c.Request.Context(), imageData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, jpegContentType, annotated)
}

// ToCensoredImage は画像をアップロードして検出領域をぼかしたJPEGを返します。
//
// エンドポイント: POST /detection/img_object_detection_to_censored_img
func (h *DetectionHandler) ToCensoredImage(c *gin.Context) {
	imageData, ok := h.readImageFile(c)
	if !ok {
		return
	}

	censored, err := h.uc.CensorObjects(c.Request.Context(), imageData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, jpegContentType, censored)
}

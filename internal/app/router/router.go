package router

import (
	"github.com/gin-gonic/gin"

	detectionhandler "detection_backend/internal/feature/detection/transport/handler"
	"detection_backend/internal/platform/http/handler"
)

// NewRouter は全エンドポイントを登録したginルーターを生成します。
func NewRouter(detection *detectionhandler.DetectionHandler) *gin.Engine {
	r := gin.Default()

	// 導通確認用
	r.GET("/healthz", handler.Health)

	// 検出エンドポイント（multipartのfileフィールドで画像をアップロード）
	d := r.Group("/detection")
	{
		d.POST("/img_object_detection_to_json", detection.ToJSON)
		d.POST("/img_object_detection_to_img", detection.ToImage)
		d.POST("/img_object_detection_to_censored_img", detection.ToCensoredImage)
	}

	return r
}

// Package api はHTTPレスポンスのDTO型を定義します。
package api

// ErrorResponse はエラーレスポンスのボディです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// NoObjectsResponse は検出ゼロ時のJSONモードレスポンスです。
type NoObjectsResponse struct {
	Message string `json:"message"`
}

// DetectedObjectResponse は検出された1オブジェクトのJSON表現です。
type DetectedObjectResponse struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DetectionResponse はJSONモードの検出結果レスポンスです。
// detect_objectsはモデル出力順を保持します（描画で使うXMinソート順ではありません）。
type DetectionResponse struct {
	DetectObjectsNames string                   `json:"detect_objects_names"`
	DetectObjects      []DetectedObjectResponse `json:"detect_objects"`
}

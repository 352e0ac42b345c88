// Package vision はGoogle Cloud Vision APIを使用したオブジェクト検出アダプターを提供します。
// ローカルモデルを配置できない環境向けの代替バックエンドです。
package vision

import (
	"context"
	"fmt"
	"sync"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"detection_backend/internal/feature/detection/domain/entity"
	"detection_backend/internal/feature/detection/usecase"
	"detection_backend/internal/platform/imaging"
)

// Client はCloud VisionのOBJECT_LOCALIZATIONでオブジェクトを検出します。
type Client struct {
	client        *gvision.ImageAnnotatorClient
	confThreshold float64

	// Cloud Visionはクラス名のみを返すため、検出された名前ごとにプロセス内で
	// 安定したクラスIDを割り当てます（同じ名前 → 同じID → 同じ描画色）。
	mu       sync.Mutex
	classIDs map[string]int
}

// ClientがObjectDetectorを実装していることをコンパイル時に検証します。
var _ usecase.ObjectDetector = (*Client)(nil)

// NewClient はADCを使用してClientの新しいインスタンスを生成します。
func NewClient(ctx context.Context, confThreshold float64) (*Client, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &Client{
		client:        client,
		confThreshold: confThreshold,
		classIDs:      make(map[string]int),
	}, nil
}

// Close はVision APIクライアントを解放します。
func (c *Client) Close() error {
	return c.client.Close()
}

// classID は検出名に対してプロセス内で安定したIDを返します。
func (c *Client) classID(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.classIDs[name]; ok {
		return id
	}
	id := len(c.classIDs)
	c.classIDs[name] = id
	return id
}

// Detect は画像をJPEGに再エンコードしてVision APIへ送信し、しきい値以上の
// オブジェクトを元画像のピクセル座標で返します。検出ゼロは長さ0の正常な結果です。
func (c *Client) Detect(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
	imageData, err := imaging.Encode(img)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_OBJECT_LOCALIZATION},
				},
			},
		},
	}

	resp, err := c.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return entity.DetectionSet{}, nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	width := float64(img.Width())
	height := float64(img.Height())

	annotations := resp.Responses[0].LocalizedObjectAnnotations
	detections := make(entity.DetectionSet, 0, len(annotations))
	for _, obj := range annotations {
		if float64(obj.Score) < c.confThreshold {
			continue
		}

		xmin, ymin, xmax, ymax := polyBounds(obj.BoundingPoly.GetNormalizedVertices())
		detections = append(detections, entity.Detection{
			XMin:       xmin * width,
			YMin:       ymin * height,
			XMax:       xmax * width,
			YMax:       ymax * height,
			Confidence: float64(obj.Score),
			ClassID:    c.classID(obj.Name),
			ClassName:  obj.Name,
		})
	}
	return detections, nil
}

// polyBounds は正規化頂点列の外接矩形を返します。
func polyBounds(vertices []*visionpb.NormalizedVertex) (xmin, ymin, xmax, ymax float64) {
	if len(vertices) == 0 {
		return 0, 0, 0, 0
	}

	xmin, ymin = float64(vertices[0].X), float64(vertices[0].Y)
	xmax, ymax = xmin, ymin
	for _, v := range vertices[1:] {
		x, y := float64(v.X), float64(v.Y)
		if x < xmin {
			xmin = x
		}
		if x > xmax {
			xmax = x
		}
		if y < ymin {
			ymin = y
		}
		if y > ymax {
			ymax = y
		}
	}
	return xmin, ymin, xmax, ymax
}

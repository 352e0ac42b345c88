package imaging

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"detection_backend/internal/feature/detection/domain/entity"
)

// censorBlurSigma はぼかし検閲のガウシアンシグマです。カーネルサイズは
// シグマから自動算出されます（(0,0)指定）。
const censorBlurSigma = 10.0

// Censor は各検出領域に指定の検閲処理を適用したコピーを返します。
// 領域はモデル出力順（文書順）に処理され、重なった領域は後の検出が先の結果の
// 上に適用されます。ボックスは画像境界にクリップし、クリップ後に空になった
// 領域はスキップします。検出ゼロの場合は未変更のコピーを返します。
func Censor(img Image, detections entity.DetectionSet, method entity.CensorMethod) (Image, error) {
	out := img.Clone()
	bounds := image.Rect(0, 0, img.Width(), img.Height())

	for _, det := range detections {
		rect := clipRect(det, bounds)
		if rect.Empty() {
			continue
		}

		// Regionは親Matのビューなので、書き込みは出力画像へ直接反映される
		region := out.mat.Region(rect)

		switch method {
		case entity.CensorBlur:
			gocv.GaussianBlur(region, &region, image.Pt(0, 0), censorBlurSigma, censorBlurSigma, gocv.BorderDefault)
		case entity.CensorMask:
			region.SetTo(gocv.NewScalar(0, 0, 0, 0))
		default:
			if err := region.Close(); err != nil {
				return Image{}, fmt.Errorf("close region: %w", err)
			}
			if err := out.Close(); err != nil {
				return Image{}, fmt.Errorf("close image: %w", err)
			}
			return Image{}, fmt.Errorf("unknown censor method: %v", method)
		}

		if err := region.Close(); err != nil {
			return Image{}, fmt.Errorf("close region: %w", err)
		}
	}

	return out, nil
}

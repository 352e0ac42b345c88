package imaging

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"detection_backend/internal/feature/detection/domain/entity"
)

const (
	boxThickness   = 2
	labelScale     = 0.5
	labelThickness = 1
	labelOffsetY   = 5  // ボックス上端からラベルベースラインまでの距離
	labelInsideY   = 15 // ラベルが画像外にはみ出す場合にボックス内側へ下げる距離
)

// palette はクラスIDから決定的にボックス色を選ぶための固定パレットです。
// 同じクラスIDは常に同じ色になります。
var palette = []color.RGBA{
	{R: 4, G: 42, B: 255, A: 255},
	{R: 11, G: 219, B: 235, A: 255},
	{R: 243, G: 243, B: 243, A: 255},
	{R: 0, G: 223, B: 183, A: 255},
	{R: 17, G: 31, B: 104, A: 255},
	{R: 255, G: 111, B: 221, A: 255},
	{R: 255, G: 68, B: 79, A: 255},
	{R: 204, G: 237, B: 0, A: 255},
	{R: 0, G: 243, B: 68, A: 255},
	{R: 189, G: 0, B: 255, A: 255},
	{R: 0, G: 180, B: 255, A: 255},
	{R: 221, G: 0, B: 186, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 38, G: 192, B: 0, A: 255},
	{R: 1, G: 255, B: 179, A: 255},
	{R: 125, G: 36, B: 255, A: 255},
	{R: 123, G: 0, B: 104, A: 255},
	{R: 255, G: 27, B: 108, A: 255},
	{R: 252, G: 109, B: 47, A: 255},
	{R: 162, G: 255, B: 11, A: 255},
}

// classColor は同じクラスIDに対して常に同じ色を返します。
func classColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// clipRect は検出ボックスを整数ピクセルへ切り捨てて画像境界と交差させます。
// 境界外・面積ゼロのボックスは空の矩形になります。
func clipRect(det entity.Detection, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(int(det.XMin), int(det.YMin), int(det.XMax), int(det.YMax))
	return r.Intersect(bounds)
}

// Annotate は各検出のボックスと「クラス名: NN%」ラベルを描画したコピーを返します。
// 描画順はXMin昇順（左のボックスが先）で、同じ入力には同じ結果が再現されます。
// 境界にクリップした結果が空になったボックスはスキップします。
func Annotate(img Image, detections entity.DetectionSet) Image {
	out := img.Clone()
	bounds := image.Rect(0, 0, img.Width(), img.Height())

	for _, det := range detections.SortedByXMin() {
		rect := clipRect(det, bounds)
		if rect.Empty() {
			continue
		}

		c := classColor(det.ClassID)
		gocv.Rectangle(&out.mat, rect, c, boxThickness)

		label := fmt.Sprintf("%s: %d%%", det.ClassName, int(det.Confidence*100))
		org := image.Pt(rect.Min.X, rect.Min.Y-labelOffsetY)
		if org.Y < labelInsideY {
			org.Y = rect.Min.Y + labelInsideY
		}
		gocv.PutText(&out.mat, label, org, gocv.FontHersheySimplex, labelScale, c, labelThickness)
	}

	return out
}

// バナーの文言と位置は元サービスの見た目との互換のため固定です。
const (
	bannerText      = "NO OBJECTS DETECTED."
	bannerX         = 20
	bannerY         = 35 // Hersheyフォントはベースライン基準のため左上(20,20)相当の位置
	bannerScale     = 0.6
	bannerThickness = 1
)

var (
	bannerFill    = color.RGBA{R: 255, G: 165, B: 0, A: 255} // オレンジ
	bannerOutline = color.RGBA{A: 255}                       // 黒
)

// DrawNoObjectsBanner は「NO OBJECTS DETECTED.」バナーを描画したコピーを返します。
// 黒い縁取りは、最後の本塗りの前に小さなピクセルオフセットで同じテキストを
// 重ね描きして作ります。
func DrawNoObjectsBanner(img Image) Image {
	out := img.Clone()

	for adj := -2; adj <= 2; adj++ {
		// 左右
		putBannerText(&out.mat, bannerX+adj, bannerY, bannerOutline)
		// 上下
		putBannerText(&out.mat, bannerX, bannerY+adj, bannerOutline)
		// 斜め
		putBannerText(&out.mat, bannerX+adj, bannerY+adj, bannerOutline)
		putBannerText(&out.mat, bannerX-adj, bannerY-adj, bannerOutline)
	}
	putBannerText(&out.mat, bannerX, bannerY, bannerFill)

	return out
}

func putBannerText(mat *gocv.Mat, x, y int, c color.RGBA) {
	gocv.PutText(mat, bannerText, image.Pt(x, y), gocv.FontHersheySimplex, bannerScale, c, bannerThickness)
}

// Package yolo はgocvのDNNモジュールでYOLOv8 ONNXモデルを実行する検出アダプターを提供します。
package yolo

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"detection_backend/internal/feature/detection/domain/entity"
	"detection_backend/internal/feature/detection/usecase"
	"detection_backend/internal/platform/imaging"
)

// Preset はモデル構成（入力サイズと信頼度しきい値）です。
type Preset struct {
	InputSize     int
	ConfThreshold float32
}

var (
	// DetectPreset はライブエンドポイントに接続される検出モデルの構成です。
	DetectPreset = Preset{InputSize: 768, ConfThreshold: 0.5}
	// SegmentPreset はセグメンテーションモデルの構成です。現在のスコープでは未接続です。
	SegmentPreset = Preset{InputSize: 640, ConfThreshold: 0.25}
)

// iouThreshold はNMS（非最大抑制）の重なり判定しきい値です。
const iouThreshold = 0.45

// Model は読み込み済みのYOLOv8ネットワークです。プロセス起動時に一度だけ生成し、
// プロセス終了まで読み取り専用で共有します。
type Model struct {
	net        gocv.Net
	classNames []string
	preset     Preset

	// gocv.NetのForwardは並行呼び出しに対応していないため、推論を直列化します。
	mu sync.Mutex
}

// ModelがObjectDetectorを実装していることをコンパイル時に検証します。
var _ usecase.ObjectDetector = (*Model)(nil)

// NewModel はONNXモデルとクラス名リスト（1行1クラス）を読み込みます。
func NewModel(modelPath, labelsPath string, preset Preset) (*Model, error) {
	classNames, err := loadClassNames(labelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model: %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		closeNet(&net)
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		closeNet(&net)
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &Model{net: net, classNames: classNames, preset: preset}, nil
}

func closeNet(net *gocv.Net) {
	_ = net.Close()
}

// Close はネットワークを解放します。
func (m *Model) Close() error {
	return m.net.Close()
}

// ClassName はクラスIDをモデルのid→名前マッピングで解決します。
// 範囲外のIDと名前未定義のIDはclass_<ID>表記へフォールバックします。
func (m *Model) ClassName(classID int) string {
	if classID < 0 || classID >= len(m.classNames) || m.classNames[classID] == "" {
		return fmt.Sprintf("class_%d", classID)
	}
	return m.classNames[classID]
}

// Detect は画像からオブジェクトを検出し、しきい値以上の結果をモデル出力順で返します。
// データ拡張（flip・mosaic）は行わず、推論結果をディスクへ保存することもありません。
// 検出ゼロは長さ0の正常な結果です。
func (m *Model) Detect(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := m.preset.InputSize
	blob := gocv.BlobFromImage(img.Mat(), 1.0/255.0, image.Pt(size, size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	// Forwardの戻り値はネットワーク内部の出力バッファを参照するヘッダで、
	// 次のForward呼び出しで中身が上書きされる。ロックを解放する前に
	// クローンして切り離す。
	m.mu.Lock()
	m.net.SetInput(blob, "")
	raw := m.net.Forward("")
	output := raw.Clone()
	_ = raw.Close()
	m.mu.Unlock()
	defer output.Close()

	dims := output.Size() // [1, 4+クラス数, 候補数]
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape: %v", dims)
	}

	flat, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output tensor: %w", err)
	}

	scaleX := float64(img.Width()) / float64(size)
	scaleY := float64(img.Height()) / float64(size)
	candidates := decodeOutput(flat, dims[1], dims[2], m.preset.ConfThreshold, scaleX, scaleY)

	indices := suppressOverlaps(candidates, m.preset.ConfThreshold)

	detections := make(entity.DetectionSet, 0, len(indices))
	for _, idx := range indices {
		det := candidates[idx]
		det.ClassName = m.ClassName(det.ClassID)
		detections = append(detections, det)
	}
	return detections, nil
}

// nmsClassStride はクラス別NMSのための座標オフセット幅です。画像辺長より
// 十分大きい値を取り、異なるクラスのボックスが座標空間上で重ならないようにします。
const nmsClassStride = 7680

// suppressOverlaps はNMSで重複ボックスを除去し、残す候補のインデックスを返します。
// 抑制はクラスごとに行われ、異なるクラス同士のボックスは重なっていても抑制しません。
func suppressOverlaps(candidates entity.DetectionSet, confThreshold float32) []int {
	rects := make([]image.Rectangle, 0, len(candidates))
	scores := make([]float32, 0, len(candidates))
	for _, c := range candidates {
		off := c.ClassID * nmsClassStride
		rects = append(rects, image.Rect(int(c.XMin)+off, int(c.YMin)+off, int(c.XMax)+off, int(c.YMax)+off))
		scores = append(scores, float32(c.Confidence))
	}
	return gocv.NMSBoxes(rects, scores, confThreshold, iouThreshold)
}

// decodeOutput はYOLOv8の出力テンソル（[4+クラス数]×[候補数]のフラット配列）を
// しきい値以上の検出候補へ変換します。座標は中心+幅高さ形式から左上右下形式へ
// 変換し、元画像のスケールに戻します。クラス名の解決は呼び出し側で行います。
func decodeOutput(data []float32, channels, candidates int, confThreshold float32, scaleX, scaleY float64) entity.DetectionSet {
	numClasses := channels - 4
	out := make(entity.DetectionSet, 0)

	for c := 0; c < candidates; c++ {
		bestClass := 0
		bestScore := float32(0)
		for k := 0; k < numClasses; k++ {
			if s := data[(4+k)*candidates+c]; s > bestScore {
				bestScore = s
				bestClass = k
			}
		}
		if bestScore < confThreshold {
			continue
		}

		cx := float64(data[0*candidates+c])
		cy := float64(data[1*candidates+c])
		w := float64(data[2*candidates+c])
		h := float64(data[3*candidates+c])

		out = append(out, entity.Detection{
			XMin:       (cx - w/2) * scaleX,
			YMin:       (cy - h/2) * scaleY,
			XMax:       (cx + w/2) * scaleX,
			YMax:       (cy + h/2) * scaleY,
			Confidence: float64(bestScore),
			ClassID:    bestClass,
		})
	}
	return out
}

// loadClassNames はクラス名ファイル（1行1クラス、行番号がクラスID）を読み込みます。
// 空行はIDがずれないようプレースホルダーとして保持します（該当IDはclass_<ID>表記になる）。
func loadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()

	var names []string
	hasName := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			hasName = true
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	if !hasName {
		return nil, fmt.Errorf("labels file is empty: %s", path)
	}
	return names, nil
}

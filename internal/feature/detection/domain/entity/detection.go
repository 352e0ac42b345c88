// Package entity はdetectionフィーチャーのドメインモデルを定義します。
package entity

import "sort"

// Detection は画像から検出された1つのオブジェクトを表します。
// 座標は元画像のピクセル座標で、XMin <= XMax, YMin <= YMax を満たします。
type Detection struct {
	XMin       float64 // バウンディングボックス左端
	YMin       float64 // バウンディングボックス上端
	XMax       float64 // バウンディングボックス右端
	YMax       float64 // バウンディングボックス下端
	Confidence float64 // 信頼度スコア（0.0 ~ 1.0）
	ClassID    int     // モデルのクラスID
	ClassName  string  // クラスIDから解決したクラス名
}

// DetectionSet は1画像分の検出結果をモデル出力順で保持します。
// リクエストごとに生成され、レスポンス送信後は破棄されます。
type DetectionSet []Detection

// Names はモデル出力順のクラス名リストを返します。
func (s DetectionSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, d := range s {
		names = append(names, d.ClassName)
	}
	return names
}

// SortedByXMin はXMin昇順にソートしたコピーを返します。元のスライスは変更しません。
// 描画処理を決定的にするための順序で、JSONレスポンスはモデル出力順のままです。
func (s DetectionSet) SortedByXMin() DetectionSet {
	sorted := make(DetectionSet, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].XMin < sorted[j].XMin
	})
	return sorted
}

// CensorMethod は検閲方法を表す閉じた列挙型です。
type CensorMethod int

const (
	// CensorBlur は領域に強いガウシアンぼかしを適用します。
	CensorBlur CensorMethod = iota
	// CensorMask は領域を黒で塗りつぶします。
	CensorMask
)

// String はCensorMethodの文字列表現を返します。
func (m CensorMethod) String() string {
	switch m {
	case CensorBlur:
		return "blur"
	case CensorMask:
		return "mask"
	default:
		return "unknown"
	}
}

// Package imaging はgocvベースの画像コーデック・描画・検閲処理を提供します。
package imaging

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrDecode は不正な画像バイト列のデコード失敗を表します。
var ErrDecode = errors.New("imaging: failed to decode image")

// JPEGQuality はHTTPレスポンス用JPEGエンコードの品質です。
const JPEGQuality = 85

// Image はデコード済みのBGRピクセルバッファを表します。
// アップロードを処理するリクエストが排他的に所有し、レスポンス生成時にのみ
// バイト列へ戻します。使い終わったらCloseで解放してください。
type Image struct {
	mat gocv.Mat
}

// Width は画像幅（ピクセル）を返します。
func (i Image) Width() int { return i.mat.Cols() }

// Height は画像高さ（ピクセル）を返します。
func (i Image) Height() int { return i.mat.Rows() }

// Clone はピクセルバッファの完全なコピーを返します。
func (i Image) Clone() Image { return Image{mat: i.mat.Clone()} }

// Close は下層のMatを解放します。
func (i Image) Close() error { return i.mat.Close() }

// Mat は下層のgocv.Matを返します。アダプター層が推論入力を作るために使います。
func (i Image) Mat() gocv.Mat { return i.mat }

// Decode は任意フォーマットの画像バイト列をBGRピクセルバッファへデコードします。
// 不正・未対応の入力はErrDecodeを包んだエラーを返します。
func Decode(data []byte) (Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		if err := mat.Close(); err != nil {
			return Image{}, fmt.Errorf("%w: close mat: %v", ErrDecode, err)
		}
		return Image{}, ErrDecode
	}
	return Image{mat: mat}, nil
}

// Encode は画像をJPEG（品質85）にエンコードします。
// メモリ上の正常な画像に対するエラーパスは想定していません。
func Encode(img Image) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img.mat, []int{gocv.IMWriteJpegQuality, JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// bufはネイティブメモリを指すため、Goヒープへコピーして返す
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

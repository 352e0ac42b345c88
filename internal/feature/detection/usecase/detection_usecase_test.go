package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"detection_backend/internal/feature/detection/domain/entity"
	"detection_backend/internal/feature/detection/usecase"
	"detection_backend/internal/platform/imaging"
)

// ErrModel はモックと期待値の間で共有されるセンチネルエラーです。
var ErrModel = errors.New("model error")

// mockDetector はObjectDetectorインターフェースのモック実装です。
type mockDetector struct {
	DetectFunc  func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error)
	DetectCalls int
}

func (m *mockDetector) Detect(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
	m.DetectCalls++
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, img)
	}
	return nil, errors.New("DetectFunc is not implemented")
}

// testImageBytes はテスト用の単色PNG画像を生成するヘルパー関数です。
func testImageBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()
	mat.SetTo(gocv.NewScalar(200, 200, 200, 0))

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data
}

func TestDetectionUsecase_DetectObjects(t *testing.T) {
	ctx := context.Background()
	imageData := testImageBytes(t, 64, 64)

	expected := entity.DetectionSet{
		{XMin: 50, YMin: 10, XMax: 60, YMax: 20, Confidence: 0.81, ClassID: 2, ClassName: "car"},
		{XMin: 10, YMin: 10, XMax: 50, YMax: 50, Confidence: 0.92, ClassID: 0, ClassName: "person"},
	}

	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			require.Equal(t, 64, img.Width())
			return expected, nil
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	detections, err := uc.DetectObjects(ctx, imageData)
	require.NoError(t, err)
	require.Equal(t, 1, mock.DetectCalls)

	// モデル出力順（XMinソートではない）が保持されること
	require.Equal(t, []string{"car", "person"}, detections.Names())
}

func TestDetectionUsecase_DetectObjects_EmptyResult(t *testing.T) {
	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return entity.DetectionSet{}, nil
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	// 検出ゼロはエラーではない
	detections, err := uc.DetectObjects(context.Background(), testImageBytes(t, 32, 32))
	require.NoError(t, err)
	require.Len(t, detections, 0)
}

func TestDetectionUsecase_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		imageData []byte
	}{
		{name: "empty data", imageData: nil},
		{name: "garbage bytes", imageData: []byte("definitely not an image")},
		{name: "oversized upload", imageData: make([]byte, usecase.MaxImageSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDetector{}
			uc := usecase.NewDetectionUsecase(mock)

			_, err := uc.DetectObjects(context.Background(), tt.imageData)
			require.ErrorIs(t, err, imaging.ErrDecode)
			// デコード前に失敗するため推論は呼ばれない
			require.Equal(t, 0, mock.DetectCalls)
		})
	}
}

func TestDetectionUsecase_InferenceError(t *testing.T) {
	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return nil, ErrModel
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	_, err := uc.DetectObjects(context.Background(), testImageBytes(t, 32, 32))
	require.ErrorIs(t, err, usecase.ErrInference)

	_, err = uc.AnnotateObjects(context.Background(), testImageBytes(t, 32, 32))
	require.ErrorIs(t, err, usecase.ErrInference)

	_, err = uc.CensorObjects(context.Background(), testImageBytes(t, 32, 32))
	require.ErrorIs(t, err, usecase.ErrInference)
}

func TestDetectionUsecase_AnnotateObjects(t *testing.T) {
	detections := entity.DetectionSet{
		{XMin: 5, YMin: 5, XMax: 30, YMax: 30, Confidence: 0.9, ClassID: 0, ClassName: "person"},
	}
	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return detections, nil
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	out, err := uc.AnnotateObjects(context.Background(), testImageBytes(t, 64, 64))
	require.NoError(t, err)

	// 有効なJPEGが返ること
	require.Equal(t, []byte{0xFF, 0xD8}, out[:2])
	img, err := imaging.Decode(out)
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, 64, img.Width())
}

func TestDetectionUsecase_AnnotateObjects_NoDetectionsBanner(t *testing.T) {
	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return entity.DetectionSet{}, nil
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	imageData := testImageBytes(t, 320, 240)
	out, err := uc.AnnotateObjects(context.Background(), imageData)
	require.NoError(t, err)

	// バナー付き画像はプレーンなJPEG再エンコードと一致しない
	plainImg, err := imaging.Decode(imageData)
	require.NoError(t, err)
	defer plainImg.Close()
	plain, err := imaging.Encode(plainImg)
	require.NoError(t, err)
	require.False(t, bytes.Equal(plain, out))
}

func TestDetectionUsecase_CensorObjects(t *testing.T) {
	detections := entity.DetectionSet{
		{XMin: 8, YMin: 8, XMax: 24, YMax: 24, Confidence: 0.7, ClassID: 3, ClassName: "dog"},
	}
	mock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return detections, nil
		},
	}
	uc := usecase.NewDetectionUsecase(mock)

	out, err := uc.CensorObjects(context.Background(), testImageBytes(t, 48, 48))
	require.NoError(t, err)

	img, err := imaging.Decode(out)
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, 48, img.Width())
	require.Equal(t, 48, img.Height())
}

func TestDetectionUsecase_CensorObjects_NoDetectionsBanner(t *testing.T) {
	annotateMock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return nil, nil
		},
	}
	censorMock := &mockDetector{
		DetectFunc: func(ctx context.Context, img imaging.Image) (entity.DetectionSet, error) {
			return nil, nil
		},
	}

	imageData := testImageBytes(t, 320, 240)

	annotated, err := usecase.NewDetectionUsecase(annotateMock).AnnotateObjects(context.Background(), imageData)
	require.NoError(t, err)
	censored, err := usecase.NewDetectionUsecase(censorMock).CensorObjects(context.Background(), imageData)
	require.NoError(t, err)

	// 検出ゼロ時は両モードとも同じバナー画像を返す
	require.True(t, bytes.Equal(annotated, censored))
}

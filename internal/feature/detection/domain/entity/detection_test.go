package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"detection_backend/internal/feature/detection/domain/entity"
)

func TestDetectionSet_Names(t *testing.T) {
	s := entity.DetectionSet{
		{ClassName: "person", Confidence: 0.92},
		{ClassName: "car", Confidence: 0.81},
		{ClassName: "person", Confidence: 0.66},
	}

	assert.Equal(t, []string{"person", "car", "person"}, s.Names())
	assert.Empty(t, entity.DetectionSet{}.Names())
}

func TestDetectionSet_SortedByXMin(t *testing.T) {
	s := entity.DetectionSet{
		{XMin: 100, ClassName: "dog"},
		{XMin: 10, ClassName: "cat"},
		{XMin: 50, ClassName: "bird"},
	}

	sorted := s.SortedByXMin()

	assert.Equal(t, []string{"cat", "bird", "dog"}, sorted.Names())
	// 元のスライスは変更されないこと
	assert.Equal(t, []string{"dog", "cat", "bird"}, s.Names())
}

func TestDetectionSet_SortedByXMin_Stable(t *testing.T) {
	// 同じXMinの検出はモデル出力順を保つ
	s := entity.DetectionSet{
		{XMin: 10, ClassName: "first"},
		{XMin: 10, ClassName: "second"},
	}

	sorted := s.SortedByXMin()
	assert.Equal(t, []string{"first", "second"}, sorted.Names())
}

func TestCensorMethod_String(t *testing.T) {
	assert.Equal(t, "blur", entity.CensorBlur.String())
	assert.Equal(t, "mask", entity.CensorMask.String())
	assert.Equal(t, "unknown", entity.CensorMethod(99).String())
}

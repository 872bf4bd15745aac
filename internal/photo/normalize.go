// Package photo はアップロードされた顔写真の検証・正規化・保存を提供する。
package photo

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	// image.Decode にWebPデコーダを登録する（JPEG/PNGはimagingが登録済み）。
	_ "golang.org/x/image/webp"

	"github.com/hitoshi/glowup/internal/model"
)

// 受け付ける画像形式
var acceptedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// jpegQuality は正規化後のJPEG品質。
const jpegQuality = 85

// DefaultMaxPixels はデコードを許可する画素数の上限（40MP）。
const DefaultMaxPixels = 40_000_000

// Normalizer はアップロード画像を検証し、向きとサイズを整えたJPEGに変換する。
type Normalizer struct {
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int // 0の場合はDefaultMaxPixels
}

// Normalize はrから画像を読み込み、正規化したJPEGのバイト列を返す。
// 容量超過はPHOTO_TOO_LARGE、非対応形式や画素数超過、デコード失敗はINVALID_PHOTOのAPIErrorを返す。
func (n Normalizer) Normalize(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, n.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > n.MaxBytes {
		return nil, model.NewPhotoTooLargeError(n.MaxBytes)
	}
	if len(data) == 0 {
		return nil, model.NewInvalidPhotoError("ファイルが空です")
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), acceptedTypes...) {
		return nil, model.NewInvalidPhotoError(fmt.Sprintf("対応していない形式です（%s）", mt.String()))
	}

	// 圧縮率の高い巨大画像を展開する前に、ヘッダーの寸法だけで画素数を判定する
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, model.NewInvalidPhotoError("画像データが壊れています")
	}
	maxPixels := n.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, model.NewInvalidPhotoError(fmt.Sprintf("画像の解像度が大きすぎます（%dx%d）", cfg.Width, cfg.Height))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewInvalidPhotoError("画像データが壊れています")
	}

	if n.MaxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > n.MaxDimension || b.Dy() > n.MaxDimension {
			img = imaging.Fit(img, n.MaxDimension, n.MaxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

package photo

import (
	"context"
	"io"

	"github.com/hitoshi/glowup/internal/besteffort"
	"github.com/hitoshi/glowup/internal/metrics"
)

// Uploader はアップロード画像の正規化と保存をまとめて行う。
type Uploader struct {
	normalizer Normalizer
	store      Store
	writer     *besteffort.Writer
	metrics    metrics.MetricsCollector
}

// NewUploader はUploaderの新しいインスタンスを生成する。
func NewUploader(normalizer Normalizer, store Store, writer *besteffort.Writer, m metrics.MetricsCollector) *Uploader {
	if m == nil {
		m = metrics.Nop{}
	}
	if writer == nil {
		writer = besteffort.New(nil, m)
	}
	return &Uploader{normalizer: normalizer, store: store, writer: writer, metrics: m}
}

// Upload は画像を正規化して保存し、画像参照を返す。
// 入力画像の不備はエラーとして返すが、保存の失敗はベストエフォート扱いとし、空の参照を返す。
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	jpeg, err := u.normalizer.Normalize(r)
	if err != nil {
		return "", err
	}

	var ref string
	u.writer.Do(ctx, "photo.store", func(ctx context.Context) error {
		saved, err := u.store.Save(ctx, jpeg)
		if err != nil {
			return err
		}
		ref = saved
		return nil
	})
	if ref != "" {
		u.metrics.RecordPhotoStored(len(jpeg))
	}
	return ref, nil
}

// Delete は画像を削除する。参照が空の場合は何もしない。
func (u *Uploader) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	return u.store.Delete(ctx, ref)
}

package photo

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// refPrefix は画像参照のプレフィックス。参照は保存先ディレクトリに依存しない。
const refPrefix = "photos/"

// Store は正規化済み画像の保存先。
type Store interface {
	Save(ctx context.Context, jpeg []byte) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}

// LocalStore はローカルディレクトリに画像を保存するStore。
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore はLocalStoreを生成する。ディレクトリがなければ作成する。
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save は画像を一時ファイルに書き出してからリネームし、参照（photos/<uuid>.jpg）を返す。
func (s *LocalStore) Save(ctx context.Context, jpeg []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.New().String() + ".jpg"

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp photo: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(jpeg); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return refPrefix + name, nil
}

// Delete は参照が指す画像を削除する。存在しない場合は何もしない。
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	name, err := fileName(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// Path は参照に対応するファイルパスを返す。
func (s *LocalStore) Path(ref string) (string, error) {
	name, err := fileName(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// fileName は参照からファイル名を取り出す。ディレクトリ走査を含む参照は拒否する。
func fileName(ref string) (string, error) {
	name := path.Base(ref)
	if ref != refPrefix+name || name == "." || name == "/" || filepath.Ext(name) != ".jpg" {
		return "", fmt.Errorf("invalid photo ref: %q", ref)
	}
	if _, err := uuid.Parse(name[:len(name)-len(".jpg")]); err != nil {
		return "", fmt.Errorf("invalid photo ref: %q", ref)
	}
	return name, nil
}

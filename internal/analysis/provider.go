// Package analysis は肌分析の実行（プロバイダ、段階的な進捗、ユーザーごとの分析ジョブ）を提供する。
package analysis

import (
	"context"

	"github.com/hitoshi/glowup/internal/model"
)

// Provider は画像参照から肌分析結果を生成する。
// 推論モデルを使う実装に差し替えても、呼び出し側は結果の形だけに依存する。
type Provider interface {
	Analyze(ctx context.Context, imageRef string) (*model.SkinAnalysis, error)
}

// StaticProvider は画素を一切見ずに固定の分析結果を返すProvider。
type StaticProvider struct{}

var _ Provider = StaticProvider{}

// DefaultRecommendations は固定の推奨事項。保存済みの分析結果に推奨事項がない場合にも使う。
func DefaultRecommendations() model.Recommendations {
	return model.Recommendations{
		Products: []string{
			"サリチル酸配合の洗顔料",
			"ナイアシンアミド配合の引き締め化粧水",
			"朝のビタミンC美容液",
			"ヒアルロン酸配合のオイルフリー保湿剤",
			"さらっとした仕上がりの日焼け止め SPF50+",
		},
		Water: "1日2.5リットル（コップ8〜10杯）",
		Sleep: "毎晩7〜8時間（23時までに就寝）",
		Routine: []string{
			"朝: 洗顔 → ビタミンC → 保湿 → 日焼け止め",
			"夜: 洗顔 → 化粧水 → 美容液 → 保湿",
			"週2回: やさしい角質ケア",
			"週1回: クレイマスク",
		},
	}
}

// Analyze は固定の分析結果を返す。ctxがキャンセル済みの場合はそのエラーを返す。
func (StaticProvider) Analyze(ctx context.Context, imageRef string) (*model.SkinAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &model.SkinAnalysis{
		SkinType:        "混合肌（脂性寄り）",
		Score:           7.2,
		Concerns:        []string{"毛穴の開き", "Tゾーンの皮脂", "軽いインナードライ"},
		ImageRef:        imageRef,
		Recommendations: DefaultRecommendations(),
	}, nil
}

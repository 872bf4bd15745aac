// Package catalog は30日分のルーティン定義（静的カタログ）を提供する。
// カタログはバイナリに埋め込まれたJSONから起動時に1度だけ読み込まれ、以後変更されない。
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hitoshi/glowup/internal/program"
)

//go:embed data/catalog.json
var catalogJSON []byte

//go:embed data/catalog.schema.json
var schemaJSON []byte

const schemaURL = "schema://glowup/catalog.schema.json"

// ErrDayOutOfRange は1〜30以外の日が指定された場合のエラー。
var ErrDayOutOfRange = errors.New("day out of range")

// ProductGroup はカテゴリごとの製品推奨。
type ProductGroup struct {
	Category string   `json:"category"`
	Products []string `json:"products"`
	Tips     string   `json:"tips"`
}

// Technique はガイド付きのマッサージ・ケア手順。
type Technique struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Duration    string   `json:"duration"`
	MediaRef    string   `json:"mediaRef,omitempty"`
}

// DayDefinition は1日分のルーティン定義。Dayが識別子であり並び順でもある。
type DayDefinition struct {
	Day           int            `json:"day"`
	Title         string         `json:"title"`
	Tips          string         `json:"tips"`
	MorningSteps  []string       `json:"morningSteps"`
	NightSteps    []string       `json:"nightSteps"`
	Products      []ProductGroup `json:"products"`
	Techniques    []Technique    `json:"techniques"`
	CleansingTips []string       `json:"cleansingTips"`
}

// document は埋め込みJSONの構造。製品グループとテクニックはIDで共有される。
type document struct {
	Products   map[string]ProductGroup `json:"products"`
	Techniques map[string]Technique    `json:"techniques"`
	Days       []struct {
		Day           int      `json:"day"`
		Title         string   `json:"title"`
		Tips          string   `json:"tips"`
		MorningSteps  []string `json:"morningSteps"`
		NightSteps    []string `json:"nightSteps"`
		Products      []string `json:"products"`
		Techniques    []string `json:"techniques"`
		CleansingTips []string `json:"cleansingTips"`
	} `json:"days"`
}

// Catalog は読み取り専用の30日カタログ。
type Catalog struct {
	days []DayDefinition
}

// Load は埋め込みカタログを検証して読み込む。
// スキーマ違反、日の欠落・重複・順序の誤り、解決できない参照はいずれも起動エラーとなる。
func Load() (*Catalog, error) {
	return Parse(catalogJSON, schemaJSON)
}

// Parse はカタログJSONをスキーマで検証し、参照を解決してCatalogを構築する。
func Parse(doc, schema []byte) (*Catalog, error) {
	if err := validateSchema(doc, schema); err != nil {
		return nil, err
	}

	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if len(d.Days) != program.ProgramLength {
		return nil, fmt.Errorf("catalog must define %d days, got %d", program.ProgramLength, len(d.Days))
	}

	days := make([]DayDefinition, 0, len(d.Days))
	for i, raw := range d.Days {
		if raw.Day != i+1 {
			return nil, fmt.Errorf("catalog day at position %d has day %d, want %d", i, raw.Day, i+1)
		}

		def := DayDefinition{
			Day:           raw.Day,
			Title:         raw.Title,
			Tips:          raw.Tips,
			MorningSteps:  raw.MorningSteps,
			NightSteps:    raw.NightSteps,
			CleansingTips: raw.CleansingTips,
			Products:      make([]ProductGroup, 0, len(raw.Products)),
			Techniques:    make([]Technique, 0, len(raw.Techniques)),
		}
		for _, ref := range raw.Products {
			p, ok := d.Products[ref]
			if !ok {
				return nil, fmt.Errorf("day %d: unknown product group %q", raw.Day, ref)
			}
			def.Products = append(def.Products, p)
		}
		for _, ref := range raw.Techniques {
			t, ok := d.Techniques[ref]
			if !ok {
				return nil, fmt.Errorf("day %d: unknown technique %q", raw.Day, ref)
			}
			def.Techniques = append(def.Techniques, t)
		}
		days = append(days, def)
	}

	return &Catalog{days: days}, nil
}

func validateSchema(doc, schema []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return fmt.Errorf("parse catalog schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, schemaDoc); err != nil {
		return fmt.Errorf("add catalog schema: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("catalog schema validation failed: %w", err)
	}
	return nil
}

// Day は指定日の定義を返す。範囲外の日はErrDayOutOfRangeを返す。
// 戻り値はコピーであり、変更してもカタログには影響しない。
func (c *Catalog) Day(day int) (DayDefinition, error) {
	if !program.ValidDay(day) {
		return DayDefinition{}, fmt.Errorf("%w: %d", ErrDayOutOfRange, day)
	}
	return c.days[day-1].clone(), nil
}

// Days は全30日分の定義を日順で返す。
func (c *Catalog) Days() []DayDefinition {
	out := make([]DayDefinition, len(c.days))
	for i, d := range c.days {
		out[i] = d.clone()
	}
	return out
}

func (d DayDefinition) clone() DayDefinition {
	d.MorningSteps = slices.Clone(d.MorningSteps)
	d.NightSteps = slices.Clone(d.NightSteps)
	d.CleansingTips = slices.Clone(d.CleansingTips)

	products := make([]ProductGroup, len(d.Products))
	for i, p := range d.Products {
		p.Products = slices.Clone(p.Products)
		products[i] = p
	}
	d.Products = products

	techniques := make([]Technique, len(d.Techniques))
	for i, t := range d.Techniques {
		t.Steps = slices.Clone(t.Steps)
		techniques[i] = t
	}
	d.Techniques = techniques
	return d
}

package variant

import (
	"fmt"
	"maps"
	"slices"

	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/generator"
)

// Backend は、バリアントが使う生成アダプターの種類です。
type Backend string

const (
	BackendReplicate Backend = "replicate"
	BackendGemini    Backend = "gemini"
)

// DefaultName は日次ジョブが既定で使うバリアントです。
const DefaultName = "stability-sd-inpainting"

// Variant は、1つの生成バックエンドに対する固定ジオメトリとモデル入力の組です。
type Variant struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Backend     Backend                `yaml:"backend"`
	Model       string                 `yaml:"model"`
	Version     string                 `yaml:"version"`
	Geometry    domain.SegmentGeometry `yaml:"geometry"`
	Params      map[string]any         `yaml:"params"`
	// SizeParams はキャンバス寸法を width / height としてモデルに渡すかどうかです。
	SizeParams bool `yaml:"size_params"`
}

// Validate はバックエンド種別とジオメトリを検証します。
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant name is required")
	}
	switch v.Backend {
	case BackendReplicate:
		if v.Model == "" && v.Version == "" {
			return fmt.Errorf("variant %s: replicate backend requires model or version", v.Name)
		}
	case BackendGemini:
	default:
		return fmt.Errorf("variant %s: unknown backend %q", v.Name, v.Backend)
	}
	if err := v.Geometry.Validate(); err != nil {
		return fmt.Errorf("variant %s: %w", v.Name, err)
	}
	return nil
}

// ReplicateModel は Replicate アダプター用のモデル記述を返します。
func (v Variant) ReplicateModel() generator.ReplicateModel {
	return generator.ReplicateModel{
		Model:      v.Model,
		Version:    v.Version,
		Params:     maps.Clone(v.Params),
		SizeParams: v.SizeParams,
	}
}

// Registry は名前からバリアントを引くためのカタログです。
type Registry struct {
	variants map[string]Variant
}

// NewRegistry は組み込みバリアントを登録した Registry を返します。
func NewRegistry() *Registry {
	r := &Registry{variants: make(map[string]Variant)}
	for _, v := range Builtins() {
		r.variants[v.Name] = v
	}
	return r
}

// Register はバリアントを検証して追加します。同名のものは置き換えます。
func (r *Registry) Register(v Variant) error {
	if err := v.Validate(); err != nil {
		return err
	}
	r.variants[v.Name] = v
	return nil
}

// Lookup は名前に対応するバリアントを返します。
func (r *Registry) Lookup(name string) (Variant, error) {
	v, ok := r.variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown variant %q (available: %v)", name, r.Names())
	}
	return v, nil
}

// Names は登録済みのバリアント名を昇順で返します。
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.variants))
}

// All は登録済みのバリアントを名前順で返します。
func (r *Registry) All() []Variant {
	names := r.Names()
	out := make([]Variant, 0, len(names))
	for _, n := range names {
		out = append(out, r.variants[n])
	}
	return out
}

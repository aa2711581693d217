package variant

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

type overrideFile struct {
	Variants []yaml.Node `yaml:"variants"`
}

// LoadFile は YAML ファイルのバリアント定義を Registry に適用します。
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("バリアント定義ファイルのオープンに失敗しました: %w", err)
	}
	defer f.Close()
	return r.Load(f)
}

// Load は YAML のバリアント定義を読み込みます。
// 既存の名前に対しては書かれた項目だけを上書きし、新しい名前は新規登録します。
//
//	variants:
//	  - name: stability-sd-inpainting
//	    params:
//	      guidance_scale: 9
func (r *Registry) Load(src io.Reader) error {
	var file overrideFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil && err != io.EOF {
		return fmt.Errorf("バリアント定義の解析に失敗しました: %w", err)
	}

	for i := range file.Variants {
		node := &file.Variants[i]

		var head struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&head); err != nil {
			return fmt.Errorf("variants[%d]: %w", i, err)
		}
		if head.Name == "" {
			return fmt.Errorf("variants[%d]: name is required", i)
		}

		base, exists := r.variants[head.Name]
		base.Params = maps.Clone(base.Params)
		if err := node.Decode(&base); err != nil {
			return fmt.Errorf("variant %s: %w", head.Name, err)
		}
		if err := r.Register(base); err != nil {
			return err
		}
		slog.Debug("バリアント定義を適用しました", "variant", head.Name, "override", exists)
	}
	return nil
}

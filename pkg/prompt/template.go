package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed landscape.md
var landscapeTemplate string

// TemplateData は1時間分のプロンプト生成に渡す値です。
type TemplateData struct {
	PreviousDescription string
	CurrentTime         string
	CurrentDate         string
}

// Builder は風景説明を依頼するメタプロンプトを組み立てます。
type Builder struct {
	tmpl *template.Template
}

// NewBuilder は埋め込みテンプレートを解析して Builder を初期化します。
func NewBuilder() (*Builder, error) {
	if landscapeTemplate == "" {
		return nil, fmt.Errorf("プロンプトテンプレート (go:embed) の読み込みに失敗しました: 内容が空です")
	}
	tmpl, err := template.New("landscape").Parse(landscapeTemplate)
	if err != nil {
		return nil, fmt.Errorf("プロンプトテンプレートの解析に失敗: %w", err)
	}
	return &Builder{tmpl: tmpl}, nil
}

// Build はテンプレートを実行します。
func (b *Builder) Build(data TemplateData) (string, error) {
	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

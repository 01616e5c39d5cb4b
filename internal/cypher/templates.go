package cypher

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.cql
var files embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

func templates() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.New("cypher").Option("missingkey=error").ParseFS(files, "*.cql")
	})
	return parsed, parseErr
}

// Render 渲染一个写入模板，模板里引用了未提供的键会报错。
func Render(name string, data any) (string, error) {
	tmpl, err := templates()
	if err != nil {
		return "", fmt.Errorf("解析 cypher 模板失败: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("渲染 %s 失败: %w", name, err)
	}
	return sb.String(), nil
}

// Statements 读取多语句脚本，按分号拆分并去掉空语句。
func Statements(name string) ([]string, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	var out []string
	for _, raw := range strings.Split(string(b), ";") {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}

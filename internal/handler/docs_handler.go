package handler

import (
	"bytes"
	"embed"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed docs/*.md
var docsFS embed.FS

// docPages 是可访问的文档页面名单，页面名绝不拼进文件路径之外的东西。
var docPages = map[string]string{
	"privacy":    "docs/privacy.md",
	"compliance": "docs/compliance.md",
	"help":       "docs/help.md",
}

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

var docsSanitizer = bluemonday.UGCPolicy()

const docPageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MintyMetrics</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; color: #1a2b22; }
a { color: #0a7d52; }
code { background: #f0f4f2; padding: 0.1rem 0.3rem; border-radius: 3px; }
</style>
</head>
<body>
%s
<p><a href="/admin/dashboard">&larr; Dashboard</a></p>
</body>
</html>`

// ShowDoc 渲染内置的文档页面（隐私说明、合规指引、使用帮助）。
func (a *API) ShowDoc(c *gin.Context) {
	path, ok := docPages[c.Param("page")]
	if !ok {
		respondError(c, http.StatusNotFound, "unknown page")
		return
	}

	source, err := docsFS.ReadFile(path)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load page")
		return
	}

	var rendered bytes.Buffer
	if err := markdownEngine.Convert(source, &rendered); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to render page")
		return
	}

	safe := docsSanitizer.SanitizeBytes(rendered.Bytes())
	page := fmt.Sprintf(docPageShell, safe)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// Package chart 用 text/template 渲染 SVG 柱状图。
package chart

import (
	"fmt"
	"html"
	"io"
	"text/template"
)

// Bar 是柱状图中的一根柱子：x 轴为选项文本，y 轴为票数。
type Bar struct {
	Label string
	Value int
}

// 画布几何参数
const (
	chartHeight  = 360
	marginTop    = 48 // 标题区域
	marginBottom = 64 // x 轴标签区域
	marginSide   = 36
	barSlot      = 96 // 每根柱子占用的水平空间
	barWidth     = 64
	minWidth     = 320
)

// RenderBarChart 将柱状图写入 w。
// 每根柱子顶部标注票数；没有柱子时渲染一张空画布。
func RenderBarChart(w io.Writer, title string, bars []Bar) error {
	width := len(bars)*barSlot + 2*marginSide
	if width < minWidth {
		width = minWidth
	}

	maxValue := 0
	for _, b := range bars {
		if b.Value > maxValue {
			maxValue = b.Value
		}
	}

	plotHeight := chartHeight - marginTop - marginBottom
	geoms := make([]barGeom, 0, len(bars))
	for i, b := range bars {
		h := 0
		if maxValue > 0 {
			// 全零票时所有柱子高度为 0，避免除零
			h = b.Value * plotHeight / maxValue
		}
		x := marginSide + i*barSlot + (barSlot-barWidth)/2
		geoms = append(geoms, barGeom{
			Label:  html.EscapeString(b.Label),
			Value:  b.Value,
			X:      x,
			Y:      marginTop + plotHeight - h,
			Width:  barWidth,
			Height: h,
			MidX:   x + barWidth/2,
		})
	}

	ctx := barChart{
		Title:  html.EscapeString(title),
		Width:  width,
		Height: chartHeight,
		BaseY:  marginTop + plotHeight,
		Bars:   geoms,
	}
	if err := tmpl.ExecuteTemplate(w, "barchart", &ctx); err != nil {
		return fmt.Errorf("chart: render bar chart: %w", err)
	}
	return nil
}

type barChart struct {
	Title  string
	Width  int
	Height int
	BaseY  int
	Bars   []barGeom
}

type barGeom struct {
	Label  string
	Value  int
	X      int
	Y      int
	Width  int
	Height int
	MidX   int
}

var tmpl = template.Must(template.New("").Funcs(funcs).Parse(`
{{define "barchart"}}<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
  <rect width="{{.Width}}" height="{{.Height}}" fill="#ffffff"/>
  <text x="{{div .Width 2}}" y="28" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="16" fill="#333">{{.Title}}</text>
  <line x1="24" y1="{{.BaseY}}" x2="{{sub .Width 24}}" y2="{{.BaseY}}" stroke="#999" stroke-width="1"/>
  <g font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="12">
	{{- range .Bars}}
	<rect x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" fill="#4285f4"/>
	<text x="{{.MidX}}" y="{{sub .Y 6}}" text-anchor="middle" fill="#333">{{.Value}}</text>
	<text x="{{.MidX}}" y="{{sum $.BaseY 20}}" text-anchor="middle" fill="#555">{{.Label}}</text>
	{{- end}}
  </g>
</svg>
{{end}}
`))

var funcs = template.FuncMap{
	"div": func(a, b int) int {
		return a / b
	},
	"sub": func(a, b int) int {
		return a - b
	},
	"sum": func(vals ...int) int {
		var total int
		for _, v := range vals {
			total += v
		}
		return total
	},
}

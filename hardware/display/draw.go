package display

import (
	"image"
	"image/color"
	"image/draw"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face7x13 metrics
const (
	GlyphWidth  = 7
	GlyphHeight = 13
	glyphAscent = 11
)

func TextSize(s string) image.Point {
	return image.Point{X: GlyphWidth * utf8.RuneCountInString(s), Y: GlyphHeight}
}

// DrawText draws s with top-left corner at pt. Output is clipped to dst bounds.
func DrawText(dst draw.Image, pt image.Point, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pt.X, pt.Y+glyphAscent),
	}
	d.DrawString(s)
}

func DrawTextCentered(dst draw.Image, r image.Rectangle, s string, c color.Color) {
	size := TextSize(s)
	pt := image.Point{
		X: r.Min.X + (r.Dx()-size.X)/2,
		Y: r.Min.Y + (r.Dy()-size.Y)/2,
	}
	DrawText(dst, pt, s, c)
}

func Fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Stroke draws 1px border inside r.
func Stroke(dst draw.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	Fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	Fill(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	Fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	Fill(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// Cross draws marker centered at pt, used by touch calibration.
func Cross(dst draw.Image, pt image.Point, size int, c color.Color) {
	Fill(dst, image.Rect(pt.X-size, pt.Y, pt.X+size+1, pt.Y+1), c)
	Fill(dst, image.Rect(pt.X, pt.Y-size, pt.X+1, pt.Y+size+1), c)
}

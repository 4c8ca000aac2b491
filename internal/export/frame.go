package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Frame layout constants, relative to the output height.
const (
	subtitleFontScale   = 0.05 // font size
	subtitleBottomScale = 0.08 // bottom margin
	subtitleMaxWidth    = 0.90 // of output width, before wrapping
)

// renderSceneFrame decodes a scene image and letterboxes it onto a black
// canvas of the output size, preserving aspect ratio. The result is the
// single still frame repeated for the scene's whole duration.
func renderSceneFrame(encoded []byte, width, height int) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode scene image: %w", err)
	}
	return letterbox(src, width, height), nil
}

func letterbox(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw == 0 || sh == 0 {
		return dst
	}

	scale := float64(width) / float64(sw)
	if s := float64(height) / float64(sh); s < scale {
		scale = s
	}
	dw := int(float64(sw) * scale)
	dh := int(float64(sh) * scale)
	x := (width - dw) / 2
	y := (height - dh) / 2

	xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+dw, y+dh), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// subtitler renders the stroked bottom subtitle onto prerendered frames.
type subtitler struct {
	face     font.Face
	fontSize int
	width    int
	height   int
}

// defaultFontPaths are probed when no font is configured.
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
	"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
	"/Library/Fonts/Arial Bold.ttf",
}

func newSubtitler(fontPath string, width, height int) (*subtitler, error) {
	candidates := defaultFontPaths
	if fontPath != "" {
		candidates = []string{fontPath}
	}

	var data []byte
	var err error
	for _, p := range candidates {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("no subtitle font found (tried %s)", strings.Join(candidates, ", "))
	}

	fnt, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse subtitle font: %w", err)
	}

	fontSize := int(float64(height) * subtitleFontScale)
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build subtitle face: %w", err)
	}
	return &subtitler{face: face, fontSize: fontSize, width: width, height: height}, nil
}

// Draw burns the subtitle into the frame: white text over a black outline,
// centered, anchored above the bottom margin. Long text wraps upward.
func (s *subtitler) Draw(frame *image.RGBA, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	maxWidth := fixed.I(int(float64(s.width) * subtitleMaxWidth))
	lines := s.wrap(text, maxWidth)

	lineHeight := s.face.Metrics().Height.Ceil()
	baseline := s.height - int(float64(s.height)*subtitleBottomScale)
	stroke := s.fontSize / 10
	if stroke < 1 {
		stroke = 1
	}

	// Last line sits on the baseline, earlier lines stack above it.
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		y := baseline - (len(lines)-1-i)*lineHeight
		x := (s.width - font.MeasureString(s.face, line).Ceil()) / 2

		for dx := -stroke; dx <= stroke; dx += stroke {
			for dy := -stroke; dy <= stroke; dy += stroke {
				if dx == 0 && dy == 0 {
					continue
				}
				s.drawLine(frame, line, x+dx, y+dy, color.Black)
			}
		}
		s.drawLine(frame, line, x, y, color.White)
	}
}

func (s *subtitler) drawLine(dst *image.RGBA, line string, x, y int, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: s.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(line)
}

// wrap splits text into lines that fit maxWidth. Splitting prefers spaces
// and falls back to per-rune breaks for scripts written without them.
func (s *subtitler) wrap(text string, maxWidth fixed.Int26_6) []string {
	if font.MeasureString(s.face, text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	if strings.ContainsRune(text, ' ') {
		words := strings.Fields(text)
		current := ""
		for _, w := range words {
			candidate := w
			if current != "" {
				candidate = current + " " + w
			}
			if font.MeasureString(s.face, candidate) > maxWidth && current != "" {
				lines = append(lines, current)
				current = w
				continue
			}
			current = candidate
		}
		if current != "" {
			lines = append(lines, current)
		}
		return lines
	}

	current := ""
	for _, r := range text {
		candidate := current + string(r)
		if font.MeasureString(s.face, candidate) > maxWidth && current != "" {
			lines = append(lines, current)
			current = string(r)
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

package engine

import (
	"image"
	"image/color"
	"io"

	"asset-preview/internal/assets"

	"github.com/disintegration/imaging"
)

// DefaultIconSize is used when a generic icon is requested without a size.
const DefaultIconSize = 64

var iconBackground = color.NRGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff}

var typeColors = map[assets.FileType]color.NRGBA{
	assets.TypeMayaASCII:  {R: 0x1f, G: 0x9e, B: 0xa8, A: 0xff},
	assets.TypeMayaBinary: {R: 0x17, G: 0x7a, B: 0x82, A: 0xff},
	assets.TypeFBX:        {R: 0xd9, G: 0x8c, B: 0x1f, A: 0xff},
	assets.TypeOBJ:        {R: 0x6a, G: 0xa8, B: 0x4f, A: 0xff},
	assets.TypeAlembic:    {R: 0x8e, G: 0x5c, B: 0xc2, A: 0xff},
	assets.TypeUSD:        {R: 0x3d, G: 0x6f, B: 0xd1, A: 0xff},
	assets.TypeGLTF:       {R: 0xc2, G: 0x4a, B: 0x4a, A: 0xff},
	assets.TypeScene:      {R: 0xa8, G: 0xa1, B: 0x3a, A: 0xff},
	assets.TypeImage:      {R: 0xb0, G: 0x6a, B: 0x9a, A: 0xff},
}

var otherColor = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

// GenericIcon returns the path of a placeholder icon for a file type. It
// never touches the host.
func (e *Engine) GenericIcon(ft assets.FileType, size int) (string, error) {
	if size <= 0 {
		size = DefaultIconSize
	}
	if _, ok := typeColors[ft]; !ok {
		ft = assets.TypeOther
	}
	return e.cache.Generic(string(ft), size, func(w io.Writer) error {
		return imaging.Encode(w, renderIcon(ft, size), imaging.PNG)
	})
}

// renderIcon draws a type-coloured tile with a darker label strip.
func renderIcon(ft assets.FileType, size int) *image.NRGBA {
	fill, ok := typeColors[ft]
	if !ok {
		fill = otherColor
	}

	img := imaging.New(size, size, iconBackground)
	inset := max(1, size/8)
	inner := size - 2*inset
	if inner <= 0 {
		return imaging.New(size, size, fill)
	}
	img = imaging.Paste(img, imaging.New(inner, inner, fill), image.Pt(inset, inset))

	strip := max(1, inner/5)
	shade := color.NRGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 0xff}
	return imaging.Paste(img, imaging.New(inner, strip, shade), image.Pt(inset, inset+inner-strip))
}

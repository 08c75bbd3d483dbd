package asset

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"
)

var ErrUnsupported = errors.New("unsupported image format")

// Size is the intrinsic size of a floor plan image.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Format string  `json:"format"`
}

// Sniff reads the image header from r and reports its size. Raster
// formats (png, jpeg, webp) use their decoder config; SVG documents take
// width and height when both are set, else the viewBox extent.
func Sniff(r io.Reader) (Size, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	if isSVG(head) {
		return sniffSVG(br)
	}

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Size{}, ErrUnsupported
		}
		return Size{}, fmt.Errorf("decode image config: %w", err)
	}
	return Size{Width: float64(cfg.Width), Height: float64(cfg.Height), Format: format}, nil
}

func isSVG(head []byte) bool {
	head = bytes.TrimLeft(head, "\xef\xbb\xbf \t\r\n")
	if !bytes.HasPrefix(head, []byte("<")) {
		return false
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

func sniffSVG(r io.Reader) (Size, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return Size{}, fmt.Errorf("read svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.EqualFold(start.Name.Local, "svg") {
			return Size{}, ErrUnsupported
		}
		return svgSize(start.Attr), nil
	}
}

func svgSize(attrs []xml.Attr) Size {
	var width, height, viewBox string
	var hasWidth, hasHeight bool
	for _, a := range attrs {
		switch strings.ToLower(a.Name.Local) {
		case "width":
			width, hasWidth = a.Value, true
		case "height":
			height, hasHeight = a.Value, true
		case "viewbox":
			viewBox = a.Value
		}
	}

	size := Size{Format: "svg"}
	if hasWidth && hasHeight {
		size.Width = leadingFloat(width)
		size.Height = leadingFloat(height)
		return size
	}

	fields := strings.FieldsFunc(viewBox, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) >= 3 {
		size.Width = leadingFloat(fields[2])
	}
	if len(fields) >= 4 {
		size.Height = leadingFloat(fields[3])
	}
	return size
}

// leadingFloat parses the numeric prefix of s ("120px" is 120). Anything
// unparsable is 0.
func leadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			end++
			continue
		}
		break
	}
	for end > 0 {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
		end--
	}
	return 0
}

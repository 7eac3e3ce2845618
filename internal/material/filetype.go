package material

import (
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Diffability tells the diff step how two materials of a type can be
// compared.
type Diffability int

const (
	Unable Diffability = iota
	AsImage
	AsText
)

func (d Diffability) String() string {
	switch d {
	case AsImage:
		return "AS_IMAGE"
	case AsText:
		return "AS_TEXT"
	default:
		return "UNABLE"
	}
}

type FileType int

const (
	Unknown FileType = iota
	PNG
	JPEG
	GIF
	SVG
	HTML
	CSS
	JS
	JSON
	XML
	TXT
	CSV
	MD
	DOT
	PDF
	ZIP
	WOFF
	WOFF2
	TTF
)

type fileTypeInfo struct {
	extension   string
	mimeTypes   []string
	diffability Diffability
}

var fileTypes = map[FileType]fileTypeInfo{
	Unknown: {"bin", []string{"application/octet-stream"}, Unable},
	PNG:     {"png", []string{"image/png"}, AsImage},
	JPEG:    {"jpg", []string{"image/jpeg"}, AsImage},
	GIF:     {"gif", []string{"image/gif"}, AsImage},
	SVG:     {"svg", []string{"image/svg+xml"}, AsText},
	HTML:    {"html", []string{"text/html"}, AsText},
	CSS:     {"css", []string{"text/css"}, AsText},
	JS:      {"js", []string{"application/javascript", "text/javascript", "application/x-javascript"}, AsText},
	JSON:    {"json", []string{"application/json"}, AsText},
	XML:     {"xml", []string{"application/xml", "text/xml"}, AsText},
	TXT:     {"txt", []string{"text/plain"}, AsText},
	CSV:     {"csv", []string{"text/csv"}, AsText},
	MD:      {"md", []string{"text/markdown"}, AsText},
	DOT:     {"dot", []string{"text/vnd.graphviz"}, AsText},
	PDF:     {"pdf", []string{"application/pdf"}, Unable},
	ZIP:     {"zip", []string{"application/zip"}, Unable},
	WOFF:    {"woff", []string{"font/woff", "application/font-woff"}, Unable},
	WOFF2:   {"woff2", []string{"font/woff2"}, Unable},
	TTF:     {"ttf", []string{"font/ttf", "application/x-font-ttf"}, Unable},
}

var (
	byMIME      = make(map[string]FileType)
	byExtension = make(map[string]FileType)
	knownMIMEs  []string
)

func init() {
	for ft, info := range fileTypes {
		byExtension[info.extension] = ft
		for _, m := range info.mimeTypes {
			byMIME[m] = ft
		}
	}
	knownMIMEs = slices.Sorted(maps.Keys(byMIME))
	byExtension["jpeg"] = JPEG
	byExtension["htm"] = HTML
}

func (ft FileType) info() fileTypeInfo {
	if info, ok := fileTypes[ft]; ok {
		return info
	}
	return fileTypes[Unknown]
}

func (ft FileType) Extension() string {
	return ft.info().extension
}

func (ft FileType) MimeTypes() []string {
	return append([]string(nil), ft.info().mimeTypes...)
}

func (ft FileType) Diffability() Diffability {
	return ft.info().diffability
}

func (ft FileType) String() string {
	return strings.ToUpper(ft.Extension())
}

func (ft FileType) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Extension())
}

func (ft *FileType) UnmarshalJSON(data []byte) error {
	var ext string
	if err := json.Unmarshal(data, &ext); err != nil {
		return fmt.Errorf("file type: %w", err)
	}
	*ft = FileTypeOfExtension(ext)
	return nil
}

// TemplateModel is the reporter view of a FileType.
func (ft FileType) TemplateModel() map[string]any {
	return map[string]any{
		"extension":   ft.Extension(),
		"mimeTypes":   ft.MimeTypes(),
		"diffability": ft.Diffability().String(),
	}
}

// FileTypeOfMIME never fails: unrecognized media types map to Unknown.
// Parameters such as charset are ignored.
func FileTypeOfMIME(mediaType string) FileType {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		base = strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	}
	if ft, ok := byMIME[base]; ok {
		return ft
	}
	return Unknown
}

func FileTypeOfExtension(ext string) FileType {
	if ft, ok := byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return ft
	}
	return Unknown
}

// DetectedFileType maps a sniffed MIME to the closest known FileType by
// walking up its parent chain, so text/x-go resolves to TXT.
func DetectedFileType(m *mimetype.MIME) FileType {
	for ; m != nil; m = m.Parent() {
		if ft := FileTypeOfMIME(m.String()); ft != Unknown {
			return ft
		}
		for _, known := range knownMIMEs {
			if m.Is(known) {
				return byMIME[known]
			}
		}
	}
	return Unknown
}

func DetectFileType(content []byte) FileType {
	return DetectedFileType(mimetype.Detect(content))
}

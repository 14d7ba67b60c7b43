package domain

import (
	"fmt"
	"path"
	"strings"
)

// FileType identifies the format of a source object.
type FileType string

// Supported file types.
const (
	FileTypePDF      FileType = "pdf"
	FileTypePPTX     FileType = "pptx"
	FileTypeXLSX     FileType = "xlsx"
	FileTypeDOCX     FileType = "docx"
	FileTypeText     FileType = "txt"
	FileTypeMarkdown FileType = "md"
	FileTypeHTML     FileType = "html"
	FileTypeMP4      FileType = "mp4"
	FileTypeMOV      FileType = "mov"
	FileTypeMP3      FileType = "mp3"
	FileTypeWAV      FileType = "wav"
)

var fileTypeAliases = map[string]FileType{
	"pdf":      FileTypePDF,
	"pptx":     FileTypePPTX,
	"xlsx":     FileTypeXLSX,
	"docx":     FileTypeDOCX,
	"txt":      FileTypeText,
	"text":     FileTypeText,
	"md":       FileTypeMarkdown,
	"markdown": FileTypeMarkdown,
	"html":     FileTypeHTML,
	"htm":      FileTypeHTML,
	"mp4":      FileTypeMP4,
	"mov":      FileTypeMOV,
	"mp3":      FileTypeMP3,
	"wav":      FileTypeWAV,
}

// ParseFileType normalises a file type name or extension.
func ParseFileType(s string) (FileType, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if ft, ok := fileTypeAliases[name]; ok {
		return ft, nil
	}
	return "", fmt.Errorf("%w: file type %q", ErrUnsupportedType, s)
}

// FileTypeFromKey infers the file type from an object key's extension.
func FileTypeFromKey(key string) (FileType, error) {
	ext := path.Ext(key)
	if ext == "" {
		return "", fmt.Errorf("%w: key %q has no extension", ErrUnsupportedType, key)
	}
	return ParseFileType(ext)
}

// IsMedia returns true for audio and video types.
func (f FileType) IsMedia() bool {
	switch f {
	case FileTypeMP4, FileTypeMOV, FileTypeMP3, FileTypeWAV:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f FileType) String() string {
	return string(f)
}

package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Request is one render submission.
type Request struct {
	Code  string `json:"code"`
	Files Files  `json:"files,omitempty"`
	Scene string `json:"scene,omitempty"` // empty: detected from Code
}

// File is an auxiliary file written next to scene.py. Content starting
// with "data:" is a data URL; anything else is written as UTF-8 text.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Files accepts both the {name: content} object and the [{name, content}]
// array forms on the wire.
type Files []File

// UnmarshalJSON decodes either form. Object entries are ordered by name.
func (f *Files) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	if b[0] == '{' {
		var m map[string]string
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("files object: %w", err)
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make(Files, 0, len(names))
		for _, name := range names {
			out = append(out, File{Name: name, Content: m[name]})
		}
		*f = out
		return nil
	}
	var list []File
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("files array: %w", err)
	}
	*f = list
	return nil
}

// NewFile wraps raw file data for a Request. Text stays text; binary
// data becomes a base64 data URL.
func NewFile(name string, data []byte) File {
	if utf8.Valid(data) && !bytes.HasPrefix(data, []byte("data:")) {
		return File{Name: name, Content: string(data)}
	}
	return File{Name: name, Content: "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)}
}

// Bytes returns the decoded file content.
func (f File) Bytes() ([]byte, error) {
	if !strings.HasPrefix(f.Content, "data:") {
		return []byte(f.Content), nil
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(f.Content, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("file %q: malformed data URL", f.Name)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("file %q: decode base64: %w", f.Name, err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("file %q: decode data URL: %w", f.Name, err)
	}
	return []byte(text), nil
}

// DefaultScene is rendered when the code declares no class.
const DefaultScene = "HelloManim"

var (
	classRe      = regexp.MustCompile(`class\s+(\w+)\s*\(`)
	identifierRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// DetectScene returns the first class declared with a base list, or
// DefaultScene.
func DetectScene(code string) string {
	if m := classRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return DefaultScene
}

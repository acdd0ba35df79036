// Package render writes the HTML map artifacts: a marker map of adjacent
// intersections and one density heatmap per hour of day. Pages are Leaflet
// documents produced from embedded html/template files.
package render

import (
	"embed"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl"))

// Chicago city centre, the default view for every map.
const (
	DefaultCenterLat = 41.8781
	DefaultCenterLng = -87.6298
)

// marshalTemplateJS encodes value as JSON tagged as safe JavaScript so it can
// be embedded in a <script> block.
func marshalTemplateJS(value any) (template.JS, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return template.JS(""), err
	}
	return template.JS(payload), nil
}

// writePage executes the named template into path, creating parent
// directories as needed. The file is written to a temp name first so a failed
// render never leaves a partial artifact behind.
func writePage(path, name string, data any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "render: create dir %s", dir)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", tmp)
	}
	if err := templates.ExecuteTemplate(f, name, data); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "render: execute %s", name)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "render: close %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, path), "render: rename %s", path)
}

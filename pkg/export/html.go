package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/gosimple/slug"
	"github.com/h2non/filetype"

	"github.com/aretw0/storyweaver/pkg/domain"
)

// DefaultTitle is used when the story has no title.
const DefaultTitle = "My Story"

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: Arial, sans-serif;
      line-height: 1.6;
      margin: 20px;
      background-color: #f4f4f4;
      color: #333;
    }
    .container {
      max-width: 800px;
      margin: auto;
      background: #fff;
      padding: 20px;
      border-radius: 8px;
      box-shadow: 0 0 10px rgba(0,0,0,0.1);
    }
    h1, h2 {
      color: #333;
      text-align: center;
    }
    .scene {
      margin-bottom: 30px;
      padding-bottom: 20px;
      border-bottom: 1px solid #eee;
    }
    .scene:last-child {
      border-bottom: none;
    }
    .scene img {
      max-width: 100%;
      height: auto;
      border-radius: 4px;
      margin-top: 10px;
      display: block;
      margin-left: auto;
      margin-right: auto;
    }
    p {
      margin-bottom: 10px;
    }
  </style>
</head>
<body>
  <div class="container">
    <h1>{{.Title}}</h1>
{{range .Scenes}}
    <div class="scene">
      <h2>Scene {{.Number}}</h2>
      <p><strong>Description:</strong> {{.Description}}</p>
{{- if .Dialogue}}
      <p><strong>Dialogue:</strong> {{.Dialogue}}</p>
{{- end}}
{{- if .Narration}}
      <p><strong>Narration:</strong> {{.Narration}}</p>
{{- end}}
{{- if .Image}}
      <img src="{{.Image}}" alt="Scene {{.Number}} Visual">
{{- end}}
    </div>
{{end}}
  </div>
</body>
</html>
`

var document = template.Must(template.New("story").Parse(documentTemplate))

type sceneView struct {
	Number      int
	Description string
	Dialogue    string
	Narration   string
	Image       any
}

type storyView struct {
	Title  string
	Scenes []sceneView
}

// HTML renders the story as a self-contained HTML document.
// All story text is escaped; the output depends only on the story.
func HTML(story domain.Story) ([]byte, error) {
	view := storyView{Title: story.Title, Scenes: make([]sceneView, 0, len(story.Scenes))}
	if strings.TrimSpace(view.Title) == "" {
		view.Title = DefaultTitle
	}

	for i, sc := range story.Scenes {
		sv := sceneView{
			Number:      i + 1,
			Description: sc.Description,
			Dialogue:    sc.Dialogue,
			Narration:   sc.Narration,
		}
		if sv.Description == "" {
			sv.Description = "N/A"
		}
		src, err := imageSource(sc.Image)
		if err != nil {
			return nil, &domain.ExportError{Format: "html", Err: fmt.Errorf("%s: %w", sc.ID, err)}
		}
		sv.Image = src
		view.Scenes = append(view.Scenes, sv)
	}

	var buf bytes.Buffer
	if err := document.Execute(&buf, view); err != nil {
		return nil, &domain.ExportError{Format: "html", Err: err}
	}
	return buf.Bytes(), nil
}

// imageSource returns the value for the img src attribute, or nil when there is no image.
// Remote URLs stay plain strings so html/template filters unsafe schemes.
func imageSource(img *domain.ImageRef) (any, error) {
	if img.IsZero() {
		return nil, nil
	}
	if len(img.Data) == 0 {
		return img.URL, nil
	}

	mime := img.MIMEType
	if mime == "" {
		kind, err := filetype.Match(img.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to detect image type: %w", err)
		}
		if !filetype.IsImage(img.Data) {
			return nil, fmt.Errorf("inline data is not an image (%s)", kind.MIME.Value)
		}
		mime = kind.MIME.Value
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported inline image type %q", mime)
	}
	// The payload is base64 and the MIME type was checked above.
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)), nil
}

// FileName returns the download name for the exported story.
func FileName(story domain.Story) string {
	name := slug.Make(story.Title)
	if name == "" {
		name = slug.Make(DefaultTitle)
	}
	return name + ".html"
}

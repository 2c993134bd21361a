package mailtemplates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"

	root "github.com/paydesk/payments-backend"
	"github.com/paydesk/payments-backend/notifications"
)

// TemplatesDir is the directory of the embedded assets holding the mail
// templates.
const TemplatesDir = "assets/mail"

// TemplateFile represents an email template key. Every email template should
// have a key that identifies it, which is the filename without the extension.
type TemplateFile string

var (
	templatesMu sync.RWMutex
	available   map[TemplateFile]*htmltemplate.Template
)

// MailTemplate struct represents an email template. It includes the file key
// and the notification placeholder to be sent. The placeholder holds the
// subject and the plain body, both executed as text templates.
type MailTemplate struct {
	File        TemplateFile
	Placeholder notifications.Notification
}

// Load parses every HTML template embedded in the binary.
func Load() error {
	return LoadFS(root.Assets, TemplatesDir)
}

// LoadFS parses every ".html" file under dir in fsys, replacing the
// previously loaded templates.
func LoadFS(fsys fs.FS, dir string) error {
	parsed := make(map[TemplateFile]*htmltemplate.Template)
	if err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		tmpl, err := htmltemplate.ParseFS(fsys, p)
		if err != nil {
			return fmt.Errorf("could not parse template %s: %w", p, err)
		}
		parsed[TemplateFile(strings.TrimSuffix(path.Base(p), ".html"))] = tmpl
		return nil
	}); err != nil {
		return err
	}
	templatesMu.Lock()
	defer templatesMu.Unlock()
	available = parsed
	return nil
}

// Available returns the keys of the loaded templates.
func Available() []TemplateFile {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	keys := make([]TemplateFile, 0, len(available))
	for k := range available {
		keys = append(keys, k)
	}
	return keys
}

// ExecTemplate renders the HTML template and the plain placeholder with the
// data provided. It fails if the templates were not loaded.
func (mt MailTemplate) ExecTemplate(data any) (*notifications.Notification, error) {
	templatesMu.RLock()
	tmpl, ok := available[mt.File]
	templatesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %s not found", mt.File)
	}
	n, err := mt.ExecPlain(data)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, err
	}
	n.Body = buf.String()
	return n, nil
}

// ExecPlain renders only the subject and the plain body, for channels such as
// SMS that cannot carry HTML.
func (mt MailTemplate) ExecPlain(data any) (*notifications.Notification, error) {
	subject, err := execText("subject", mt.Placeholder.Subject, data)
	if err != nil {
		return nil, err
	}
	plain, err := execText("plain", mt.Placeholder.PlainBody, data)
	if err != nil {
		return nil, err
	}
	return &notifications.Notification{Subject: subject, PlainBody: plain}, nil
}

func execText(name, text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

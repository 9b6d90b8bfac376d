// Package template resolves (key, locale) pairs to rendered, sanitized
// subject/body text. Compiled templates are cached process-wide and the
// cache is invalidated on upsert/deactivate so updated templates take
// effect without a restart.
package template

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

// Store is the template lookup the renderer depends on.
type Store interface {
	GetActive(ctx context.Context, key, locale string) (*models.Template, error)
}

// Rendered is the substituted, sanitized output of one render.
type Rendered struct {
	Subject string
	Body    string
}

// placeholderPattern matches {{field}} tokens in stored template text.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

type Renderer struct {
	store Store

	mu    sync.RWMutex
	cache map[string]*texttemplate.Template

	bodyPolicy    *bluemonday.Policy
	subjectPolicy *bluemonday.Policy
}

func NewRenderer(store Store) *Renderer {
	return &Renderer{
		store:         store,
		cache:         make(map[string]*texttemplate.Template),
		bodyPolicy:    bluemonday.UGCPolicy(),
		subjectPolicy: bluemonday.StrictPolicy(),
	}
}

// Render resolves the active template for (key, locale), substitutes payload
// values into {{field}} tokens, and sanitizes the result. The body keeps safe
// markup; the subject is stripped to plain text. Pure function of store
// state plus the compile cache.
func (r *Renderer) Render(ctx context.Context, key, locale string, payload map[string]interface{}) (*Rendered, error) {
	if locale == "" {
		locale = models.DefaultLocale
	}

	tpl, err := r.store.GetActive(ctx, key, locale)
	if err != nil {
		return nil, err
	}

	data := stringifyPayload(payload)

	subject, err := r.renderPart(key, locale, "subject", tpl.SubjectTemplate, data)
	if err != nil {
		return nil, err
	}
	body, err := r.renderPart(key, locale, "body", tpl.BodyTemplate, data)
	if err != nil {
		return nil, err
	}

	return &Rendered{
		Subject: strings.TrimSpace(r.subjectPolicy.Sanitize(subject)),
		Body:    r.bodyPolicy.Sanitize(body),
	}, nil
}

// Invalidate drops the compiled entries for (key, locale). Called by the
// template service after every upsert or deactivation.
func (r *Renderer) Invalidate(key, locale string) {
	if locale == "" {
		locale = models.DefaultLocale
	}
	r.mu.Lock()
	delete(r.cache, cacheKey(key, locale, "subject"))
	delete(r.cache, cacheKey(key, locale, "body"))
	r.mu.Unlock()
}

func (r *Renderer) renderPart(key, locale, kind, source string, data map[string]string) (string, error) {
	ck := cacheKey(key, locale, kind)

	r.mu.RLock()
	compiled, ok := r.cache[ck]
	r.mu.RUnlock()

	if !ok {
		var err error
		compiled, err = compile(ck, source)
		if err != nil {
			return "", stderrors.NewTemplateRenderError(key, err)
		}
		r.mu.Lock()
		r.cache[ck] = compiled
		r.mu.Unlock()
	}

	var sb strings.Builder
	if err := compiled.Execute(&sb, data); err != nil {
		return "", stderrors.NewTemplateRenderError(key, err)
	}
	return sb.String(), nil
}

// compile rewrites {{field}} tokens to dot-access and parses the result.
// missingkey=zero makes absent payload fields render empty instead of
// erroring.
func compile(name, source string) (*texttemplate.Template, error) {
	rewritten := placeholderPattern.ReplaceAllString(source, "{{.$1}}")
	return texttemplate.New(name).Option("missingkey=zero").Parse(rewritten)
}

func cacheKey(key, locale, kind string) string {
	return key + ":" + kind + ":" + locale
}

// stringifyPayload flattens payload values to strings so that map zero values
// render as empty text.
func stringifyPayload(payload map[string]interface{}) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

// fakeStore serves templates from a map keyed by key:locale.
type fakeStore struct {
	templates map[string]*models.Template
	calls     int
}

func (f *fakeStore) GetActive(_ context.Context, key, locale string) (*models.Template, error) {
	f.calls++
	tpl, ok := f.templates[key+":"+locale]
	if !ok {
		return nil, stderrors.NewTemplateNotFoundError(key, locale)
	}
	return tpl, nil
}

func (f *fakeStore) set(key, locale, subject, body string) {
	if f.templates == nil {
		f.templates = make(map[string]*models.Template)
	}
	f.templates[key+":"+locale] = &models.Template{
		Key:             key,
		Locale:          locale,
		SubjectTemplate: subject,
		BodyTemplate:    body,
		IsActive:        true,
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	store := &fakeStore{}
	store.set("welcome", "en_IN", "Welcome {{name}}", "Hello {{name}}, your id is {{userId}}.")
	r := NewRenderer(store)

	out, err := r.Render(context.Background(), "welcome", "en_IN", map[string]interface{}{
		"name":   "Asha",
		"userId": 42,
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome Asha", out.Subject)
	assert.Equal(t, "Hello Asha, your id is 42.", out.Body)
}

func TestRenderMissingPayloadFieldIsEmpty(t *testing.T) {
	store := &fakeStore{}
	store.set("welcome", "en_IN", "Hi {{name}}", "Ref {{reference}} received.")
	r := NewRenderer(store)

	out, err := r.Render(context.Background(), "welcome", "en_IN", nil)
	require.NoError(t, err)

	assert.Equal(t, "Hi", out.Subject)
	assert.Equal(t, "Ref  received.", out.Body)
}

func TestRenderDefaultsLocale(t *testing.T) {
	store := &fakeStore{}
	store.set("welcome", models.DefaultLocale, "Hi", "Hello")
	r := NewRenderer(store)

	out, err := r.Render(context.Background(), "welcome", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", out.Body)
}

func TestRenderSanitizesBody(t *testing.T) {
	store := &fakeStore{}
	store.set("alert", "en_IN",
		"Alert <script>alert(1)</script>",
		`<p>Amount: {{amount}}</p><script>steal()</script><a href="javascript:x()">link</a>`,
	)
	r := NewRenderer(store)

	out, err := r.Render(context.Background(), "alert", "en_IN", map[string]interface{}{
		"amount": "500",
	})
	require.NoError(t, err)

	// Subject is plain text, body keeps safe markup only.
	assert.Equal(t, "Alert", out.Subject)
	assert.Contains(t, out.Body, "<p>Amount: 500</p>")
	assert.NotContains(t, out.Body, "<script>")
	assert.NotContains(t, out.Body, "javascript:")
}

func TestRenderMissingTemplate(t *testing.T) {
	r := NewRenderer(&fakeStore{})

	_, err := r.Render(context.Background(), "nope", "en_IN", nil)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTemplateNotFound, stderrors.CodeOf(err))
}

func TestRenderInvalidTemplateSyntax(t *testing.T) {
	store := &fakeStore{}
	store.set("broken", "en_IN", "Hi", "Hello {{.name")
	r := NewRenderer(store)

	_, err := r.Render(context.Background(), "broken", "en_IN", nil)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTemplateRender, stderrors.CodeOf(err))
}

func TestInvalidateDropsCachedCompile(t *testing.T) {
	store := &fakeStore{}
	store.set("welcome", "en_IN", "Old {{name}}", "Old body {{name}}")
	r := NewRenderer(store)

	out, err := r.Render(context.Background(), "welcome", "en_IN", map[string]interface{}{"name": "A"})
	require.NoError(t, err)
	assert.Equal(t, "Old A", out.Subject)

	// Update the stored template; without invalidation the stale compile
	// would still serve the old text.
	store.set("welcome", "en_IN", "New {{name}}", "New body {{name}}")
	r.Invalidate("welcome", "en_IN")

	out, err = r.Render(context.Background(), "welcome", "en_IN", map[string]interface{}{"name": "A"})
	require.NoError(t, err)
	assert.Equal(t, "New A", out.Subject)
	assert.Equal(t, "New body A", out.Body)
}

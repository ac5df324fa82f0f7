package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"moodweaver-api/models"
	"moodweaver-api/pkg/insights"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocs struct {
	entries map[string]*models.JournalEntry
	failOn  string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{entries: make(map[string]*models.JournalEntry)}
}

func (d *fakeDocs) Create(_ context.Context, e *models.JournalEntry) (*models.JournalEntry, error) {
	if d.failOn == "create" {
		return nil, errors.New("write failed")
	}
	cp := *e
	cp.ID = uuid.NewString()
	cp.Timestamp = time.Now().UTC()
	d.entries[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *fakeDocs) Get(_ context.Context, userID int, id string) (*models.JournalEntry, error) {
	e, ok := d.entries[id]
	if !ok || e.UserID != userID {
		return nil, nil
	}
	out := *e
	return &out, nil
}

func (d *fakeDocs) Update(_ context.Context, userID int, id string, upd models.EntryUpdate) (*models.JournalEntry, error) {
	if d.failOn == "update" {
		return nil, errors.New("write failed")
	}
	e, ok := d.entries[id]
	if !ok || e.UserID != userID {
		return nil, errors.New("missing entry")
	}
	e.EntryType = upd.EntryType
	e.UserTitle = upd.UserTitle
	e.Content = upd.Content
	e.ListItems = upd.ListItems
	e.Tags = upd.Tags
	e.ImageURL = upd.ImageURL
	e.MoodScore = upd.MoodScore
	le := upd.LastEdited
	e.LastEdited = &le
	out := *e
	return &out, nil
}

func (d *fakeDocs) Delete(_ context.Context, userID int, id string) error {
	if d.failOn == "delete" {
		return errors.New("delete failed")
	}
	delete(d.entries, id)
	return nil
}

func (d *fakeDocs) ListByUser(_ context.Context, userID int) ([]*models.JournalEntry, error) {
	var out []*models.JournalEntry
	for _, e := range d.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *fakeDocs) SetInsights(_ context.Context, userID int, id string, ins *insights.Insights, at time.Time) error {
	e := d.entries[id]
	e.AITitle = ins.Title
	e.AIGreeting = ins.Greeting
	e.AIObservations = ins.Observations
	e.AISentimentAnalysis = ins.SentimentAnalysis
	e.AIReflectivePrompt = ins.ReflectivePrompt
	e.AITimestamp = &at
	e.AIError = ""
	return nil
}

func (d *fakeDocs) SetInsightsError(_ context.Context, userID int, id string, message string, at time.Time) error {
	e := d.entries[id]
	e.AITitle = ""
	e.AIGreeting = ""
	e.AIObservations = ""
	e.AISentimentAnalysis = ""
	e.AIReflectivePrompt = ""
	e.AIError = message
	e.AITimestamp = &at
	return nil
}

type fakeObjects struct {
	uploadErr  error
	deleteErr  error
	uploaded   []string
	deleted    []string
	nextSuffix int
}

func (o *fakeObjects) Upload(_ context.Context, name, _ string, _ int64, r io.Reader) (string, error) {
	if o.uploadErr != nil {
		return "", o.uploadErr
	}
	_, _ = io.Copy(io.Discard, r)
	o.nextSuffix++
	key := fmt.Sprintf("img-%d", o.nextSuffix)
	o.uploaded = append(o.uploaded, key)
	return "http://minio.local/journal-images/" + key, nil
}

func (o *fakeObjects) Delete(_ context.Context, key string) error {
	o.deleted = append(o.deleted, key)
	return o.deleteErr
}

type fakeTags struct {
	saved map[string]int
	err   error
}

func newFakeTags() *fakeTags { return &fakeTags{saved: make(map[string]int)} }

func (t *fakeTags) EnsureAvailableTag(_ context.Context, _ int, name string) error {
	if t.err != nil {
		return t.err
	}
	t.saved[name]++
	return nil
}

func (t *fakeTags) ListAvailableTags(_ context.Context, _ int) ([]string, error) {
	out := make([]string, 0, len(t.saved))
	for k := range t.saved {
		out = append(out, k)
	}
	return out, nil
}

type fakeAnalyzer struct {
	ins  *insights.Insights
	err  error
	seen []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, content, _ string) (*insights.Insights, error) {
	a.seen = append(a.seen, content)
	if a.err != nil {
		return nil, a.err
	}
	return a.ins, nil
}

type fakeNotifier struct{ events int }

func (n *fakeNotifier) EntriesChanged(int, string) { n.events++ }

type fixture struct {
	docs     *fakeDocs
	objects  *fakeObjects
	tags     *fakeTags
	analyzer *fakeAnalyzer
	notifier *fakeNotifier
	wf       *Workflow
}

func newFixture() *fixture {
	f := &fixture{
		docs:    newFakeDocs(),
		objects: &fakeObjects{},
		tags:    newFakeTags(),
		analyzer: &fakeAnalyzer{ins: &insights.Insights{
			Title: "T", Observations: "O", SentimentAnalysis: "S",
		}},
		notifier: &fakeNotifier{},
	}
	f.wf = NewWorkflow(f.docs, f.objects, f.tags, f.analyzer, f.notifier)
	f.wf.SyncEnrich = true
	return f
}

func textDraft(content string, tags ...string) models.EntryDraft {
	return models.EntryDraft{EntryType: models.EntryTypeText, Content: content, Tags: tags}
}

func TestCreateTextEntryEnriches(t *testing.T) {
	f := newFixture()
	created, warnings, err := f.wf.Create(context.Background(), 1, textDraft("happy day", "Work"), nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"work"}, created.Tags)
	assert.Equal(t, models.AIStatusPending, created.AIStatus)

	stored, err := f.docs.Get(context.Background(), 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", stored.AITitle)
	assert.NotNil(t, stored.AITimestamp)
	assert.Empty(t, stored.AIError)
	assert.Equal(t, models.AIStatusDone, stored.ComputeAIStatus())
	assert.Equal(t, 1, f.tags.saved["work"])
	assert.GreaterOrEqual(t, f.notifier.events, 2)
}

func TestCreateListEntryClearsContent(t *testing.T) {
	f := newFixture()
	draft := models.EntryDraft{
		EntryType: models.EntryTypeList,
		Content:   "stale prose that must not be stored",
		ListItems: []models.ListItem{{Text: "pack bags"}, {Text: "book hotel", Completed: true}},
	}
	created, _, err := f.wf.Create(context.Background(), 1, draft, nil)
	require.NoError(t, err)
	assert.Empty(t, created.Content)
	assert.Len(t, created.ListItems, 2)
	assert.Equal(t, "pack bags\nbook hotel", created.AnalysisText())
}

func TestCreateImageUploadFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.objects.uploadErr = errors.New("bucket down")
	img := &ImageUpload{Name: "a.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("png")}
	created, warnings, err := f.wf.Create(context.Background(), 1, textDraft("hello"), img)
	require.NoError(t, err, "entry creation must survive image upload failure")
	assert.Empty(t, created.ImageURL)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "image upload failed")
}

func TestCreateDocumentWriteFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.docs.failOn = "create"
	_, _, err := f.wf.Create(context.Background(), 1, textDraft("hello"), nil)
	require.Error(t, err)
	assert.Empty(t, f.docs.entries, "no partial state may reference a non-existent entry")
}

func TestCreateAnalysisFailurePersistsAIError(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("analysis service returned status 500")
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("rough day"), nil)
	require.NoError(t, err, "create succeeds even when analysis fails")

	stored, err := f.docs.Get(context.Background(), 1, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "entry document must still exist")
	assert.Contains(t, stored.AIError, "500")
	assert.NotNil(t, stored.AITimestamp, "aiTimestamp set so the UI can tell error from not-yet-analyzed")
	assert.Equal(t, models.AIStatusError, stored.ComputeAIStatus())
}

func TestEnrichRetryClearsPreviousError(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("boom")
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("text"), nil)
	require.NoError(t, err)

	f.analyzer.err = nil
	updated, err := f.wf.Enrich(context.Background(), 1, created.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.AIError)
	assert.Equal(t, "T", updated.AITitle)
	assert.Equal(t, models.AIStatusDone, updated.AIStatus)
}

func TestEnrichSkipsEmptyEntries(t *testing.T) {
	f := newFixture()
	created, _, err := f.wf.Create(context.Background(), 1, textDraft(""), nil)
	require.NoError(t, err)
	assert.Empty(t, f.analyzer.seen, "no analysis call for empty content")

	got, err := f.wf.Enrich(context.Background(), 1, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AITimestamp)
	assert.Equal(t, models.AIStatusPending, got.AIStatus)
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture()
	_, _, err := f.wf.Update(context.Background(), 1, "missing", models.EntryPatch{}, nil, false)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUpdateNewImageWinsOverRemovalFlag(t *testing.T) {
	f := newFixture()
	img := &ImageUpload{Name: "old.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("old")}
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("hello"), img)
	require.NoError(t, err)
	oldKey := ObjectKeyFromURL(created.ImageURL)

	newImg := &ImageUpload{Name: "new.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("new")}
	updated, _, err := f.wf.Update(context.Background(), 1, created.ID, models.EntryPatch{}, newImg, true)
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ImageURL)
	assert.NotEqual(t, created.ImageURL, updated.ImageURL, "new upload wins over stale removal flag")
	assert.Contains(t, f.objects.deleted, oldKey, "replaced image scheduled for deletion")
}

func TestUpdateFailedReplacementKeepsPreviousImage(t *testing.T) {
	f := newFixture()
	img := &ImageUpload{Name: "old.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("old")}
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("hello"), img)
	require.NoError(t, err)

	f.objects.uploadErr = errors.New("bucket down")
	newImg := &ImageUpload{Name: "new.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("new")}
	updated, warnings, err := f.wf.Update(context.Background(), 1, created.ID, models.EntryPatch{}, newImg, false)
	require.NoError(t, err)
	assert.Equal(t, created.ImageURL, updated.ImageURL)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "previous image kept")
	assert.Empty(t, f.objects.deleted, "old image must not be deleted when replacement failed")
}

func TestUpdateRemoveImage(t *testing.T) {
	f := newFixture()
	img := &ImageUpload{Name: "a.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("png")}
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("hello"), img)
	require.NoError(t, err)

	updated, warnings, err := f.wf.Update(context.Background(), 1, created.ID, models.EntryPatch{}, nil, true)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, updated.ImageURL)
	assert.Equal(t, []string{ObjectKeyFromURL(created.ImageURL)}, f.objects.deleted)
}

func TestUpdateTypeSwitchClearsInactiveField(t *testing.T) {
	f := newFixture()
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("prose body"), nil)
	require.NoError(t, err)

	listType := models.EntryTypeList
	items := []models.ListItem{{Text: "one"}}
	updated, _, err := f.wf.Update(context.Background(), 1, created.ID, models.EntryPatch{
		EntryType: &listType,
		ListItems: &items,
	}, nil, false)
	require.NoError(t, err)
	assert.Empty(t, updated.Content, "inactive field cleared on type switch")
	assert.Len(t, updated.ListItems, 1)
	assert.NotNil(t, updated.LastEdited)
}

func TestUpdateUntouchedFieldsSurvive(t *testing.T) {
	f := newFixture()
	created, _, err := f.wf.Create(context.Background(), 1, models.EntryDraft{
		EntryType: models.EntryTypeText, UserTitle: "Title", Content: "body", Tags: []string{"work"},
	}, nil)
	require.NoError(t, err)

	newTitle := "Renamed"
	updated, _, err := f.wf.Update(context.Background(), 1, created.ID, models.EntryPatch{UserTitle: &newTitle}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.UserTitle)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, []string{"work"}, updated.Tags)
}

func TestDeleteCascadesImageBestEffort(t *testing.T) {
	f := newFixture()
	img := &ImageUpload{Name: "a.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("png")}
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("hello"), img)
	require.NoError(t, err)
	key := ObjectKeyFromURL(created.ImageURL)

	f.objects.deleteErr = errors.New("storage offline")
	warnings, err := f.wf.Delete(context.Background(), 1, created.ID)
	require.NoError(t, err, "document deletion completes even when image cleanup fails")
	assert.Equal(t, []string{key}, f.objects.deleted, "image delete called with the derived key")
	require.Len(t, warnings, 1)

	gone, err := f.docs.Get(context.Background(), 1, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.wf.Delete(context.Background(), 1, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestAddAvailableTagIdempotent(t *testing.T) {
	f := newFixture()
	for i := 0; i < 2; i++ {
		n, err := f.wf.AddAvailableTag(context.Background(), 1, "Work")
		require.NoError(t, err)
		assert.Equal(t, "work", n)
	}
	tags, err := f.tags.ListAvailableTags(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, tags)
}

func TestObjectKeyFromURL(t *testing.T) {
	assert.Equal(t, "img-1", ObjectKeyFromURL("http://minio.local/journal-images/img-1"))
	assert.Equal(t, "", ObjectKeyFromURL("http://minio.local/"))
	assert.Equal(t, "", ObjectKeyFromURL("::bad::url"))
}

func TestEntryOwnershipScoping(t *testing.T) {
	f := newFixture()
	created, _, err := f.wf.Create(context.Background(), 1, textDraft("mine"), nil)
	require.NoError(t, err)

	// Another user cannot see or delete the entry.
	_, _, err = f.wf.Update(context.Background(), 2, created.ID, models.EntryPatch{}, nil, false)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = f.wf.Delete(context.Background(), 2, created.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

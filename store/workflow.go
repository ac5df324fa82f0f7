package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"time"

	"moodweaver-api/models"
	"moodweaver-api/pkg/insights"
	"moodweaver-api/pkg/notify"
	"moodweaver-api/pkg/score"
)

// ErrEntryNotFound is returned when an operation targets an entry that no
// longer exists (precondition failure; no write is attempted).
var ErrEntryNotFound = errors.New("entry not found")

// Documents is the entry document collaborator. Absent entries are
// reported as (nil, nil) from Get, matching the repository convention.
type Documents interface {
	Create(ctx context.Context, entry *models.JournalEntry) (*models.JournalEntry, error)
	Get(ctx context.Context, userID int, id string) (*models.JournalEntry, error)
	Update(ctx context.Context, userID int, id string, upd models.EntryUpdate) (*models.JournalEntry, error)
	Delete(ctx context.Context, userID int, id string) error
	ListByUser(ctx context.Context, userID int) ([]*models.JournalEntry, error)
	SetInsights(ctx context.Context, userID int, id string, ins *insights.Insights, at time.Time) error
	SetInsightsError(ctx context.Context, userID int, id string, message string, at time.Time) error
}

// Objects is the object storage collaborator. Upload returns a retrievable
// public URL; Delete takes the object key (the URL's trailing path segment).
type Objects interface {
	Upload(ctx context.Context, name, contentType string, size int64, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// Tags is the per-user available-tag collaborator. Ensure must be an
// idempotent upsert keyed by the normalized tag name.
type Tags interface {
	EnsureAvailableTag(ctx context.Context, userID int, name string) error
	ListAvailableTags(ctx context.Context, userID int) ([]string, error)
}

// ImageUpload describes an incoming image file.
type ImageUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Workflow performs entry mutations as short multi-step sequences. No step
// is transactional with another: the document write is the durability
// point, and image handling and AI enrichment are best-effort decoration
// whose failures are surfaced as warnings or persisted as aiError.
type Workflow struct {
	docs     Documents
	objects  Objects
	tags     Tags
	analyzer insights.Analyzer
	notifier notify.Notifier

	// SyncEnrich makes enrichment run inline instead of in a background
	// goroutine. Tests rely on it for determinism.
	SyncEnrich bool
}

func NewWorkflow(docs Documents, objects Objects, tags Tags, analyzer insights.Analyzer, notifier notify.Notifier) *Workflow {
	return &Workflow{docs: docs, objects: objects, tags: tags, analyzer: analyzer, notifier: notifier}
}

// Create uploads the image (optional, non-fatal), writes the entry
// document, registers new available tags, and triggers AI enrichment.
// The returned error reflects only the document write; everything else
// comes back as warnings.
func (w *Workflow) Create(ctx context.Context, userID int, draft models.EntryDraft, image *ImageUpload) (*models.JournalEntry, []string, error) {
	var warnings []string

	entryType := draft.EntryType
	if entryType != models.EntryTypeList {
		entryType = models.EntryTypeText
	}

	imageURL := ""
	if image != nil {
		u, err := w.objects.Upload(ctx, image.Name, image.ContentType, image.Size, image.Reader)
		if err != nil {
			slog.Warn("image upload failed during create", "userId", userID, "err", err)
			warnings = append(warnings, "image upload failed; entry saved without image")
		} else {
			imageURL = u
		}
	}

	entry := &models.JournalEntry{
		UserID:    userID,
		EntryType: entryType,
		UserTitle: draft.UserTitle,
		Tags:      models.NormalizeTags(draft.Tags),
		ImageURL:  imageURL,
	}
	if entryType == models.EntryTypeList {
		entry.ListItems = draft.ListItems
	} else {
		entry.Content = draft.Content
	}
	entry.MoodScore = score.Keyword(entry.AnalysisText())

	created, err := w.docs.Create(ctx, entry)
	if err != nil {
		return nil, warnings, err
	}

	for _, tag := range created.Tags {
		if err := w.tags.EnsureAvailableTag(ctx, userID, tag); err != nil {
			slog.Warn("failed to save available tag", "userId", userID, "tag", tag, "err", err)
			warnings = append(warnings, fmt.Sprintf("could not save tag %q for later reuse", tag))
		}
	}

	created.AIStatus = created.ComputeAIStatus()
	w.notifier.EntriesChanged(userID, created.ID)
	w.maybeEnrich(userID, created.ID, created.AnalysisText())
	return created, warnings, nil
}

// Update resolves the net image outcome (new upload > removal flag > keep),
// merges only the provided fields, clears the entryType-inactive field,
// and performs a single document update with a fresh lastEdited stamp.
func (w *Workflow) Update(ctx context.Context, userID int, id string, patch models.EntryPatch, image *ImageUpload, removeImage bool) (*models.JournalEntry, []string, error) {
	var warnings []string

	cur, err := w.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if cur == nil {
		return nil, nil, ErrEntryNotFound
	}

	// Image precedence: a new upload wins over a stale removal flag; a
	// failed replacement upload keeps the previous image.
	finalURL := cur.ImageURL
	if image != nil {
		u, err := w.objects.Upload(ctx, image.Name, image.ContentType, image.Size, image.Reader)
		if err != nil {
			slog.Warn("replacement image upload failed", "userId", userID, "entryId", id, "err", err)
			warnings = append(warnings, "new image upload failed; previous image kept")
		} else {
			finalURL = u
			warnings = append(warnings, w.deleteImage(ctx, cur.ImageURL)...)
		}
	} else if removeImage {
		warnings = append(warnings, w.deleteImage(ctx, cur.ImageURL)...)
		finalURL = ""
	}

	entryType := cur.EntryType
	if patch.EntryType != nil {
		if *patch.EntryType == models.EntryTypeList {
			entryType = models.EntryTypeList
		} else {
			entryType = models.EntryTypeText
		}
	}
	title := cur.UserTitle
	if patch.UserTitle != nil {
		title = *patch.UserTitle
	}
	content := cur.Content
	if patch.Content != nil {
		content = *patch.Content
	}
	items := cur.ListItems
	if patch.ListItems != nil {
		items = *patch.ListItems
	}
	tags := cur.Tags
	if patch.Tags != nil {
		tags = models.NormalizeTags(*patch.Tags)
	}

	// The inactive content field is cleared so stale data never survives
	// an entryType switch.
	if entryType == models.EntryTypeList {
		content = ""
	} else {
		items = nil
	}

	contentChanged := patch.Content != nil || patch.ListItems != nil || patch.EntryType != nil
	probe := models.JournalEntry{EntryType: entryType, Content: content, ListItems: items}
	moodScore := cur.MoodScore
	if contentChanged {
		moodScore = score.Keyword(probe.AnalysisText())
	}

	upd := models.EntryUpdate{
		EntryType:  entryType,
		UserTitle:  title,
		Content:    content,
		ListItems:  items,
		Tags:       tags,
		ImageURL:   finalURL,
		MoodScore:  moodScore,
		LastEdited: time.Now().UTC(),
	}
	updated, err := w.docs.Update(ctx, userID, id, upd)
	if err != nil {
		return nil, warnings, err
	}

	if patch.Tags != nil {
		for _, tag := range updated.Tags {
			if err := w.tags.EnsureAvailableTag(ctx, userID, tag); err != nil {
				slog.Warn("failed to save available tag", "userId", userID, "tag", tag, "err", err)
			}
		}
	}

	updated.AIStatus = updated.ComputeAIStatus()
	w.notifier.EntriesChanged(userID, id)
	if contentChanged {
		w.maybeEnrich(userID, id, probe.AnalysisText())
	}
	return updated, warnings, nil
}

// Delete removes the entry document and then requests best-effort deletion
// of its image. An image cleanup failure never reverses the completed
// document deletion.
func (w *Workflow) Delete(ctx context.Context, userID int, id string) ([]string, error) {
	cur, err := w.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrEntryNotFound
	}
	if err := w.docs.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	warnings := w.deleteImage(ctx, cur.ImageURL)
	w.notifier.EntriesChanged(userID, id)
	return warnings, nil
}

// Enrich runs (or re-runs) AI analysis for an entry and persists the
// outcome. An analysis failure is not an error: it is written to the
// document as aiError, with aiTimestamp set either way so the UI can tell
// "analyzed with error" from "not yet analyzed". A retry clears whichever
// of aiError / insight fields the previous attempt left behind.
func (w *Workflow) Enrich(ctx context.Context, userID int, id string) (*models.JournalEntry, error) {
	cur, err := w.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrEntryNotFound
	}
	text := cur.AnalysisText()
	if text == "" {
		cur.AIStatus = cur.ComputeAIStatus()
		return cur, nil
	}

	now := time.Now().UTC()
	ins, aerr := w.analyzer.Analyze(ctx, text, cur.EntryType)
	if aerr != nil {
		slog.Warn("entry analysis failed", "userId", userID, "entryId", id, "err", aerr)
		if err := w.docs.SetInsightsError(ctx, userID, id, aerr.Error(), now); err != nil {
			return nil, err
		}
	} else {
		if err := w.docs.SetInsights(ctx, userID, id, ins, now); err != nil {
			return nil, err
		}
	}
	w.notifier.EntriesChanged(userID, id)

	updated, err := w.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrEntryNotFound
	}
	updated.AIStatus = updated.ComputeAIStatus()
	return updated, nil
}

// AddAvailableTag normalizes and idempotently saves a tag for the user.
func (w *Workflow) AddAvailableTag(ctx context.Context, userID int, name string) (string, error) {
	n := models.NormalizeTag(name)
	if n == "" {
		return "", fmt.Errorf("tag name is empty")
	}
	if err := w.tags.EnsureAvailableTag(ctx, userID, n); err != nil {
		return "", err
	}
	return n, nil
}

func (w *Workflow) maybeEnrich(userID int, id, analysisText string) {
	if analysisText == "" {
		return
	}
	if w.SyncEnrich {
		_, _ = w.Enrich(context.Background(), userID, id)
		return
	}
	go func() {
		// Detached from the request: create/update already answered the
		// caller, but the error state must still be persisted.
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		if _, err := w.Enrich(ctx, userID, id); err != nil {
			slog.Error("background enrichment failed", "userId", userID, "entryId", id, "err", err)
		}
	}()
}

func (w *Workflow) deleteImage(ctx context.Context, imageURL string) []string {
	if imageURL == "" {
		return nil
	}
	key := ObjectKeyFromURL(imageURL)
	if key == "" {
		return []string{"stored image reference is malformed; image not removed"}
	}
	if err := w.objects.Delete(ctx, key); err != nil {
		slog.Warn("image delete failed", "key", key, "err", err)
		return []string{"stored image could not be removed"}
	}
	return nil
}

// ObjectKeyFromURL derives the storage key from a previously returned
// image URL: its trailing path segment.
func ObjectKeyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	key := path.Base(u.Path)
	if key == "." || key == "/" {
		return ""
	}
	return key
}
